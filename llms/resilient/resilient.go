// Package resilient wraps an llms.Model with retries and a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/schema"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("resilient: circuit breaker open")

// Model retries temporary backend failures with backoff and stops calling a
// backend that keeps failing.
type Model struct {
	next    llms.Model
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
	logger  *slog.Logger
}

var _ llms.Model = (*Model)(nil)

// New wraps next.
func New(next llms.Model, opts ...Option) *Model {
	o := applyOptions(opts...)
	logger := o.logger.With("component", "resilient_llm", "circuit", o.breaker.Name)

	cfg := o.breaker
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		// Client errors say nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if o.onStateChange != nil {
				o.onStateChange(name, from.String(), to.String())
			}
		},
	}

	return &Model{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		retry:   o.retry,
		logger:  logger,
	}
}

// Call runs a single prompt.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// GenerateContent calls the wrapped model through the breaker, retrying temporary failures.
func (m *Model) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	var resp *schema.ContentResponse
	err := m.withBackoff(ctx, func() error {
		out, err := m.breaker.Execute(func() (interface{}, error) {
			return m.next.GenerateContent(ctx, messages, options...)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				m.logger.WarnContext(ctx, "request rejected by open circuit",
					slog.String("state", m.breaker.State().String()))
				return ErrCircuitOpen
			}
			return err
		}
		resp = out.(*schema.ContentResponse)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State reports the breaker state: closed, half-open or open.
func (m *Model) State() string {
	return m.breaker.State().String()
}

func (m *Model) withBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := m.retry.InitialDelay

	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				m.logger.InfoContext(ctx, "operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == m.retry.MaxAttempts {
			break
		}

		m.logger.WarnContext(ctx, "operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", m.retry.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay = time.Duration(float64(delay) * m.retry.Multiplier)
		if m.retry.MaxDelay > 0 && delay > m.retry.MaxDelay {
			delay = m.retry.MaxDelay
		}
		delay = addJitter(delay, m.retry.JitterFraction)
	}

	if m.retry.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("max retry attempts (%d) exceeded: %w", m.retry.MaxAttempts, lastErr)
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var perr *llms.ProviderError
	if errors.As(err, &perr) && perr.Temporary() {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	jitter := time.Duration(float64(d) * fraction * rand.Float64())
	return d + jitter
}
