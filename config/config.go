// Package config loads docsum settings from a YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Supported providers.
const (
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var defaultModels = map[string]string{
	ProviderOllama:    "llama3.2",
	ProviderGemini:    "gemini-2.5-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-haiku-latest",
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Summary  SummaryConfig  `yaml:"summary"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Retry    RetryConfig    `yaml:"retry"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	// PullModel lets the ollama backend download a missing model on startup.
	PullModel bool `yaml:"pull_model"`
}

// ModelName returns the configured model or the provider's default.
func (c LLMConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Provider]
}

type SummaryConfig struct {
	MaxLength int `yaml:"max_length"`
	MinLength int `yaml:"min_length"`
}

type PipelineConfig struct {
	ChunkSize             int `yaml:"chunk_size"`
	MinChunkChars         int `yaml:"min_chunk_chars"`
	CollapseWordThreshold int `yaml:"collapse_word_threshold"`
	MaxCollapseDepth      int `yaml:"max_collapse_depth"`
	Concurrency           int `yaml:"concurrency"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MinRequests      uint32        `yaml:"min_requests"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: ProviderOllama,
			Timeout:  2 * time.Minute,
		},
		Summary: SummaryConfig{
			MaxLength: 130,
			MinLength: 30,
		},
		Pipeline: PipelineConfig{
			ChunkSize:             1024,
			MinChunkChars:         50,
			CollapseWordThreshold: 200,
			MaxCollapseDepth:      1,
			Concurrency:           1,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MinRequests:      5,
			FailureThreshold: 0.6,
			Timeout:          60 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
			RequestTimeout: 10 * time.Minute,
		},
	}
}

// Load reads path over the defaults (an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays DOCSUM_* variables and the provider's own variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOCSUM_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("DOCSUM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DOCSUM_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	c.applyProviderEnv()
}

// UseProvider switches to another provider. The model, API key and base URL
// configured for the previous provider are dropped and re-resolved from the
// environment.
func (c *Config) UseProvider(provider string) {
	provider = strings.ToLower(provider)
	if provider == c.LLM.Provider {
		return
	}
	c.LLM.Provider = provider
	c.LLM.Model = ""
	c.LLM.APIKey = ""
	c.LLM.BaseURL = ""
	c.applyProviderEnv()
}

func (c *Config) applyProviderEnv() {
	switch c.LLM.Provider {
	case ProviderOllama:
		if v := os.Getenv("OLLAMA_HOST"); v != "" && c.LLM.BaseURL == "" {
			c.LLM.BaseURL = v
		}
	case ProviderGemini:
		c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("GEMINI_API_KEY"))
	case ProviderOpenAI:
		c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("OPENAI_API_KEY"))
	case ProviderAnthropic:
		c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	_, known := defaultModels[c.LLM.Provider]
	check(known, "llm.provider: unsupported provider %q", c.LLM.Provider)
	check(c.LLM.Timeout >= 0, "llm.timeout must not be negative")
	if c.LLM.Provider != ProviderOllama && known {
		check(c.LLM.APIKey != "", "llm.api_key is required for provider %q", c.LLM.Provider)
	}

	check(c.Summary.MaxLength > 0, "summary.max_length must be positive, got %d", c.Summary.MaxLength)
	check(c.Summary.MinLength >= 0, "summary.min_length must not be negative, got %d", c.Summary.MinLength)
	check(c.Summary.MinLength <= c.Summary.MaxLength,
		"summary.min_length (%d) must not exceed summary.max_length (%d)", c.Summary.MinLength, c.Summary.MaxLength)

	check(c.Pipeline.ChunkSize > 0, "pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	check(c.Pipeline.MinChunkChars >= 0, "pipeline.min_chunk_chars must not be negative")
	check(c.Pipeline.CollapseWordThreshold > 0, "pipeline.collapse_word_threshold must be positive")
	check(c.Pipeline.MaxCollapseDepth >= 0, "pipeline.max_collapse_depth must not be negative")
	check(c.Pipeline.Concurrency >= 1, "pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)

	check(c.Retry.MaxAttempts >= 1, "retry.max_attempts must be at least 1")
	check(c.Retry.Multiplier >= 1, "retry.multiplier must be at least 1")
	check(c.Breaker.FailureThreshold > 0 && c.Breaker.FailureThreshold <= 1,
		"breaker.failure_threshold must be in (0, 1], got %v", c.Breaker.FailureThreshold)

	check(slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level),
		"log.level: unsupported level %q", c.Log.Level)
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format: unsupported format %q", c.Log.Format)

	check(c.Server.MaxUploadBytes > 0, "server.max_upload_bytes must be positive")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
