package narrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed wraps any backend failure so callers can fall back to
// deterministic output.
var ErrGenerationFailed = errors.New("ai generation failed")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderator_ai_requests_total",
			Help: "Total number of requests to the AI backend.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderator_ai_request_duration_seconds",
			Help:    "Histogram of AI backend request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

// Client is the minimal chat completion contract the narrator needs.
type Client interface {
	// GenerateText runs one completion over a system prompt and user input.
	GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error)
}

// ClientConfig selects and tunes the AI backend.
type ClientConfig struct {
	Type        string // "openai" or "ollama"
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// NewClient creates the configured AI backend. It returns nil (no error) when
// the backend is unusable, e.g. an openai type without an API key; the
// narrator then runs on deterministic fallbacks only.
func NewClient(cfg ClientConfig, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.Type) {
	case "openai":
		if cfg.APIKey == "" {
			logger.Warn("OPENAI_API_KEY is empty, AI generation disabled")
			return nil, nil
		}
		clientCfg := openaigo.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		logger.Info("OpenAI client created",
			zap.String("base_url", clientCfg.BaseURL), zap.String("model", cfg.Model))
		return &openAIClient{
			client:      openaigo.NewClientWithConfig(clientCfg),
			model:       cfg.Model,
			temperature: float32(cfg.Temperature),
			maxTokens:   cfg.MaxTokens,
		}, nil
	case "ollama":
		// api.NewClient wants the server root without the /v1 suffix.
		baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
		parsedURL, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama base URL %q: %w", baseURL, err)
		}
		logger.Info("Ollama client created",
			zap.String("base_url", baseURL), zap.String("model", cfg.Model))
		return &ollamaClient{
			client:      api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
			model:       cfg.Model,
			timeout:     cfg.Timeout,
			temperature: cfg.Temperature,
			maxTokens:   cfg.MaxTokens,
		}, nil
	default:
		return nil, fmt.Errorf("unknown AI client type: %s", cfg.Type)
	}
}

type openAIClient struct {
	client      *openaigo.Client
	model       string
	temperature float32
	maxTokens   int
}

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(time.Since(start).Seconds())
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	return resp.Choices[0].Message.Content, nil
}

type ollamaClient struct {
	client      *api.Client
	model       string
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content strings.Builder
	start := time.Now()
	err := c.client.Chat(requestCtx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(time.Since(start).Seconds())
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if content.Len() == 0 {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	return content.String(), nil
}
