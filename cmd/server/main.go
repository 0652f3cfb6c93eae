package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-moderator/internal/broadcast"
	"story-moderator/internal/config"
	"story-moderator/internal/database"
	"story-moderator/internal/handler"
	"story-moderator/internal/interfaces"
	"story-moderator/internal/logger"
	"story-moderator/internal/messaging"
	"story-moderator/internal/narrator"
	"story-moderator/internal/service"
	"story-moderator/internal/story"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg, log); err != nil {
		return err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MaxConnIdleTime = cfg.DBIdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("Connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	// Repositories.
	roomRepo := database.NewPgRoomRepository(pool, log)
	participantRepo := database.NewPgParticipantRepository(pool, log)
	messageRepo := database.NewPgMessageRepository(pool, log)
	sessionRepo := database.NewPgSessionRepository(pool, log)

	var sessionCache interfaces.SessionCache = database.NoopSessionCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		sessionCache = database.NewRedisSessionCache(redisClient, log)
		log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Info("Redis not configured, session cache disabled")
	}

	var publisher messaging.SessionEventPublisher = messaging.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := messaging.NewAmqpPublisher(cfg.RabbitMQURL, cfg.SessionEventExchange, log)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer func() { _ = amqpPublisher.Close() }()
		publisher = amqpPublisher
	} else {
		log.Info("RabbitMQ not configured, session events disabled")
	}

	// Narrator.
	aiClient, err := narrator.NewClient(narrator.ClientConfig{
		Type:        cfg.AIClientType,
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Timeout:     cfg.AITimeout,
		Temperature: cfg.AITemp,
		MaxTokens:   cfg.AIMaxTokens,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create AI client: %w", err)
	}
	storyNarrator := narrator.New(aiClient, narrator.Options{
		Model:                cfg.AIModel,
		HistoryLimit:         cfg.ChatHistoryLimit,
		TokenBudget:          cfg.PromptTokenBudget,
		PassiveEndingStyle:   cfg.PassiveEndingStyle,
		PassiveEndingMessage: cfg.PassiveEndingMessage,
		AdvanceFallbackAfter: cfg.AdvanceFallbackAfter,
	}, log)

	// Domain wiring.
	library := story.NewLibrary(cfg.StoryDir, log)
	hub := broadcast.NewHub(log)
	registry := service.NewLoopRegistry(log)
	sessionService := service.NewSessionService(
		ctx,
		roomRepo, participantRepo, messageRepo, sessionRepo, sessionCache,
		library, storyNarrator, hub, publisher, registry, cfg, log,
	)

	httpHandler := handler.NewHTTPHandler(sessionService, cfg, log)
	wsHandler := handler.NewWSHandler(hub, sessionService, log)
	router := handler.NewRouter(httpHandler, wsHandler, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	sessionService.Shutdown()
	log.Info("Server stopped")
	return nil
}

// runMigrations applies pending schema migrations at startup.
func runMigrations(cfg *config.Config, log *zap.Logger) error {
	// golang-migrate selects the pgx/v5 driver via the URL scheme.
	dsn := strings.Replace(cfg.GetDSN(), "postgres://", "pgx5://", 1)
	m, err := migrate.New("file://"+cfg.MigrationsDir, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Database schema up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Info("Database migrations applied")
	return nil
}
