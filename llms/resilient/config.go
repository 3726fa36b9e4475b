package resilient

import (
	"log/slog"
	"time"
)

// RetryConfig controls exponential backoff between attempts.
type RetryConfig struct {
	// MaxAttempts includes the first call.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFraction is the share of the delay added as random jitter (0.0 to 1.0).
	JitterFraction float64
}

// DefaultRetryConfig suits hosted model APIs: few attempts, seconds apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// BreakerConfig configures the circuit breaker guarding a backend.
type BreakerConfig struct {
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts; Timeout is the open-state cool down.
	Interval time.Duration
	Timeout  time.Duration

	// FailureThreshold is the failure ratio that trips the breaker once MinRequests were seen.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns breaker settings for a named backend.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type options struct {
	retry         RetryConfig
	breaker       BreakerConfig
	logger        *slog.Logger
	onStateChange func(name, from, to string)
}

// Option configures the resilient wrapper.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		retry:   DefaultRetryConfig(),
		breaker: DefaultBreakerConfig("llm"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retry.MaxAttempts < 1 {
		o.retry.MaxAttempts = 1
	}
	if o.retry.Multiplier < 1 {
		o.retry.Multiplier = 1
	}
	return o
}

// WithRetry replaces the retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(o *options) {
		o.retry = cfg
	}
}

// WithBreaker replaces the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(o *options) {
		o.breaker = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStateChangeHook is called whenever the breaker changes state.
func WithStateChangeHook(fn func(name, from, to string)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}
