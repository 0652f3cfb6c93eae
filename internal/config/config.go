package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full service configuration. Values come from the
// environment; main loads .env first via godotenv.
type Config struct {
	// Server
	Port        string `envconfig:"PORT" default:"5000"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	// PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBPassword    string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	MigrationsDir string        `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	// Redis (session id cache). Empty address disables the cache.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// RabbitMQ (session lifecycle events). Empty URL disables publishing.
	RabbitMQURL          string `envconfig:"RABBITMQ_URL" default:""`
	SessionEventExchange string `envconfig:"SESSION_EVENT_EXCHANGE" default:"session_events"`

	// AI backend
	AIClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIAPIKey     string        `envconfig:"OPENAI_API_KEY" default:""`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel      string        `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	AITemp       float64       `envconfig:"OPENAI_TEMPERATURE" default:"0.7"`
	AIMaxTokens  int           `envconfig:"OPENAI_MAX_TOKENS" default:"300"`

	// Story library
	StoryDir string `envconfig:"STORY_DIR" default:"stories"`

	// Moderation pacing
	MinParticipantsToStart   int           `envconfig:"MIN_PARTICIPANTS_TO_START" default:"1"`
	RoomCapacity             int           `envconfig:"ROOM_CAPACITY" default:"3"`
	ActiveStoryStep          int           `envconfig:"ACTIVE_STORY_STEP" default:"1"`
	PassiveStoryStep         int           `envconfig:"PASSIVE_STORY_STEP" default:"1"`
	StoryChunkInterval       time.Duration `envconfig:"STORY_CHUNK_INTERVAL" default:"10s"`
	MonitorPollInterval      time.Duration `envconfig:"MONITOR_POLL_INTERVAL" default:"5s"`
	ActiveInterventionWindow time.Duration `envconfig:"ACTIVE_INTERVENTION_WINDOW_SECONDS" default:"20s"`
	AdvanceFallbackAfter     time.Duration `envconfig:"ADVANCE_FALLBACK_AFTER" default:"60s"`
	ChatHistoryLimit         int           `envconfig:"CHAT_HISTORY_LIMIT" default:"20"`
	PromptTokenBudget        int           `envconfig:"PROMPT_TOKEN_BUDGET" default:"2000"`

	// Moderator voice
	WelcomeMessage       string `envconfig:"WELCOME_MESSAGE" default:"Welcome everyone! I'm the Moderator."`
	ActiveEndingMessage  string `envconfig:"ACTIVE_ENDING_MESSAGE" default:"We have reached the end of the story."`
	PassiveEndingMessage string `envconfig:"PASSIVE_ENDING_MESSAGE" default:"And that is where our story ends."`
	PassiveEndingStyle   string `envconfig:"PASSIVE_ENDING_STYLE" default:"question"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Validate rejects configurations the advancement loops cannot run with. A
// zero or negative step would loop forever without reaching the final
// sentence, so it is fatal at startup rather than detectable at runtime.
func (c *Config) Validate() error {
	if c.ActiveStoryStep < 1 {
		return fmt.Errorf("ACTIVE_STORY_STEP must be >= 1, got %d", c.ActiveStoryStep)
	}
	if c.PassiveStoryStep < 1 {
		return fmt.Errorf("PASSIVE_STORY_STEP must be >= 1, got %d", c.PassiveStoryStep)
	}
	if c.StoryChunkInterval <= 0 {
		return fmt.Errorf("STORY_CHUNK_INTERVAL must be positive, got %v", c.StoryChunkInterval)
	}
	if c.MonitorPollInterval <= 0 {
		return fmt.Errorf("MONITOR_POLL_INTERVAL must be positive, got %v", c.MonitorPollInterval)
	}
	if c.ActiveInterventionWindow <= 0 {
		return fmt.Errorf("ACTIVE_INTERVENTION_WINDOW_SECONDS must be positive, got %v", c.ActiveInterventionWindow)
	}
	if c.MinParticipantsToStart < 1 {
		return fmt.Errorf("MIN_PARTICIPANTS_TO_START must be >= 1, got %d", c.MinParticipantsToStart)
	}
	if c.RoomCapacity < c.MinParticipantsToStart {
		return fmt.Errorf("ROOM_CAPACITY (%d) must be >= MIN_PARTICIPANTS_TO_START (%d)", c.RoomCapacity, c.MinParticipantsToStart)
	}
	switch strings.ToLower(c.PassiveEndingStyle) {
	case "question", "pause", "end", "plain":
	default:
		return fmt.Errorf("PASSIVE_ENDING_STYLE must be one of question|pause|end|plain, got %q", c.PassiveEndingStyle)
	}
	return nil
}

// LoadConfig loads and validates the configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
