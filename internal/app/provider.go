package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sevigo/docsum/config"
	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/llms/anthropic"
	"github.com/sevigo/docsum/llms/gemini"
	"github.com/sevigo/docsum/llms/ollama"
	"github.com/sevigo/docsum/llms/openai"
	"github.com/sevigo/docsum/llms/resilient"
)

var ErrUnknownProvider = errors.New("app: unknown provider")

// NewModel builds the backend named by cfg.LLM and wraps it with retry and,
// when enabled, a circuit breaker. hook observes breaker state changes.
func NewModel(ctx context.Context, cfg *config.Config, logger *slog.Logger, hook func(name, from, to string)) (llms.Model, error) {
	backend, err := newBackend(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	breaker := resilient.DefaultBreakerConfig(cfg.LLM.Provider)
	breaker.MinRequests = cfg.Breaker.MinRequests
	breaker.FailureThreshold = cfg.Breaker.FailureThreshold
	breaker.Timeout = cfg.Breaker.Timeout
	if !cfg.Breaker.Enabled {
		// A ratio above one is never reached.
		breaker.FailureThreshold = 2
	}

	retry := resilient.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.InitialDelay = cfg.Retry.InitialDelay
	retry.MaxDelay = cfg.Retry.MaxDelay
	retry.Multiplier = cfg.Retry.Multiplier

	return resilient.New(backend,
		resilient.WithRetry(retry),
		resilient.WithBreaker(breaker),
		resilient.WithLogger(logger),
		resilient.WithStateChangeHook(hook),
	), nil
}

func newBackend(ctx context.Context, c config.LLMConfig, logger *slog.Logger) (llms.Model, error) {
	httpClient := &http.Client{Timeout: c.Timeout}
	model := c.ModelName()
	logger.Debug("Creating model backend", "provider", c.Provider, "model", model)

	switch c.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(c.BaseURL),
			ollama.WithHTTPClient(httpClient),
			ollama.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama backend: %w", err)
		}
		if c.PullModel {
			if err := llm.EnsureModel(ctx); err != nil {
				return nil, fmt.Errorf("failed to ensure ollama model %s: %w", model, err)
			}
		}
		return llm, nil

	case config.ProviderGemini:
		opts := []gemini.Option{
			gemini.WithModel(model),
			gemini.WithAPIKey(c.APIKey),
			gemini.WithHTTPClient(httpClient),
			gemini.WithLogger(logger),
		}
		if c.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(c.BaseURL))
		}
		llm, err := gemini.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini backend: %w", err)
		}
		return llm, nil

	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithAPIKey(c.APIKey),
			openai.WithHTTPClient(httpClient),
			openai.WithLogger(logger),
		}
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai backend: %w", err)
		}
		return llm, nil

	case config.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithModel(model),
			anthropic.WithAPIKey(c.APIKey),
			anthropic.WithHTTPClient(httpClient),
			anthropic.WithLogger(logger),
		}
		if c.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.BaseURL))
		}
		llm, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic backend: %w", err)
		}
		return llm, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
}
