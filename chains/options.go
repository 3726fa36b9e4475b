package chains

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/docsum/textsplitter"
)

const (
	DefaultMaxLength             = 130
	DefaultMinLength             = 30
	DefaultMinChunkChars         = 50
	DefaultCollapseWordThreshold = 200
	DefaultMaxCollapseDepth      = 1
)

// Bounds for summary lengths chosen by a user.
const (
	MinMaxLength = 50
	MaxMaxLength = 250
	MinMinLength = 10
	MaxMinLength = 100
)

var ErrInvalidLength = errors.New("chains: invalid summary length")

// ValidateLengths checks user-chosen bounds against the accepted ranges.
func ValidateLengths(maxLength, minLength int) error {
	switch {
	case maxLength < MinMaxLength || maxLength > MaxMaxLength:
		return fmt.Errorf("%w: max_length must be between %d and %d", ErrInvalidLength, MinMaxLength, MaxMaxLength)
	case minLength < MinMinLength || minLength > MaxMinLength:
		return fmt.Errorf("%w: min_length must be between %d and %d", ErrInvalidLength, MinMinLength, MaxMinLength)
	case minLength > maxLength:
		return fmt.Errorf("%w: min_length (%d) must not exceed max_length (%d)", ErrInvalidLength, minLength, maxLength)
	}
	return nil
}

type options struct {
	maxLength         int
	minLength         int
	chunkSize         int
	minChunkChars     int
	collapseThreshold int
	maxCollapseDepth  int
	concurrency       int
	logger            *slog.Logger
	metrics           MetricsRecorder
}

// Option configures a Summarizer.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		maxLength:         DefaultMaxLength,
		minLength:         DefaultMinLength,
		chunkSize:         textsplitter.DefaultChunkSize,
		minChunkChars:     DefaultMinChunkChars,
		collapseThreshold: DefaultCollapseWordThreshold,
		maxCollapseDepth:  DefaultMaxCollapseDepth,
		concurrency:       1,
		logger:            slog.Default(),
		metrics:           nopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxLength sets the upper bound passed to the primitive, in words.
// Values below one are ignored.
func WithMaxLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// WithMinLength sets the lower bound passed to the primitive, in words.
// Negative values are ignored.
func WithMinLength(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.minLength = n
		}
	}
}

// WithChunkSize sets the chunk budget handed to textsplitter.SplitWords.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if textsplitter.ValidateChunkSize(n) == nil {
			o.chunkSize = n
		}
	}
}

// WithMinChunkChars sets the viability threshold for the whole text and for each chunk.
func WithMinChunkChars(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.minChunkChars = n
		}
	}
}

// WithCollapseThreshold sets the word count above which combined summaries are collapsed.
func WithCollapseThreshold(words int) Option {
	return func(o *options) {
		if words > 0 {
			o.collapseThreshold = words
		}
	}
}

// WithMaxCollapseDepth bounds how many collapse passes run. Zero disables collapsing.
func WithMaxCollapseDepth(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.maxCollapseDepth = depth
		}
	}
}

// WithConcurrency sets how many chunks are summarized in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
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

// WithMetrics records chunk, collapse and run outcomes.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
