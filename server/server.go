// Package server exposes the summarizer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sevigo/docsum/chains"
	"github.com/sevigo/docsum/documentloaders"
	"github.com/sevigo/docsum/parsers"
)

const (
	DefaultMaxUploadBytes = 32 << 20
	DefaultRequestTimeout = 10 * time.Minute

	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Recorder receives request and extraction metrics. metrics.Recorder implements it.
type Recorder interface {
	documentloaders.ExtractionRecorder
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordExtraction(string, error)                       {}
func (nopRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}

type options struct {
	logger         *slog.Logger
	metrics        Recorder
	gatherer       prometheus.Gatherer
	maxUploadBytes int64
	requestTimeout time.Duration
	maxLength      int
	minLength      int
}

// Option configures a Server.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		logger:         slog.Default(),
		metrics:        nopRecorder{},
		gatherer:       prometheus.DefaultGatherer,
		maxUploadBytes: DefaultMaxUploadBytes,
		requestTimeout: DefaultRequestTimeout,
		maxLength:      chains.DefaultMaxLength,
		minLength:      chains.DefaultMinLength,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records request and extraction metrics.
func WithMetrics(m Recorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithGatherer sets the source served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		if g != nil {
			o.gatherer = g
		}
	}
}

// WithMaxUploadBytes limits the request body size.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxUploadBytes = n
		}
	}
}

// WithRequestTimeout bounds how long one summarization may take.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithDefaultLengths sets the summary bounds used when a request names none.
func WithDefaultLengths(maxLength, minLength int) Option {
	return func(o *options) {
		if maxLength > 0 && minLength >= 0 && minLength <= maxLength {
			o.maxLength = maxLength
			o.minLength = minLength
		}
	}
}

// Server serves document summaries.
type Server struct {
	summarizer *chains.Summarizer
	registry   *parsers.Registry
	opts       options
	logger     *slog.Logger
}

func New(summarizer *chains.Summarizer, registry *parsers.Registry, opts ...Option) *Server {
	o := applyOptions(opts...)
	return &Server{
		summarizer: summarizer,
		registry:   registry,
		opts:       o,
		logger:     o.logger.With("component", "http_server"),
	}
}

// Handler returns the routed handler with request ID, logging, recovery and
// metrics middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/summaries", s.handleSummarize)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.gatherer, promhttp.HandlerOpts{}))

	return requestIDMiddleware(s.logging(s.recover(mux)))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

type healthResponse struct {
	Status     string   `json:"status"`
	Extractors []string `json:"extractors"`
	MediaTypes []string `json:"media_types"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	extractors := s.registry.All()
	names := make([]string, 0, len(extractors))
	for _, e := range extractors {
		names = append(names, e.Name())
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Extractors: names,
		MediaTypes: s.registry.MediaTypes(),
	})
}
