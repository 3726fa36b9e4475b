// Package app assembles docsum components from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sevigo/docsum/chains"
	"github.com/sevigo/docsum/config"
	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/metrics"
	"github.com/sevigo/docsum/parsers"
	"github.com/sevigo/docsum/server"
)

// App holds the wired components shared by the CLI commands.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Registry   *parsers.Registry
	Model      llms.Model
	Summarizer *chains.Summarizer
	Metrics    *metrics.Recorder
	Gatherer   prometheus.Gatherer
}

// New builds every component from cfg. A nil reg uses a fresh registry.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*App, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	recorder := metrics.NewRecorder(reg)

	registry, err := parsers.NewDefaultRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor registry: %w", err)
	}

	model, err := NewModel(ctx, cfg, logger, recorder.SetCircuitState)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   registry,
		Model:      model,
		Summarizer: NewSummarizer(model, cfg, logger, recorder),
		Metrics:    recorder,
		Gatherer:   reg,
	}, nil
}

// NewSummarizer builds a summarizer over model using the summary and pipeline settings.
func NewSummarizer(model llms.Model, cfg *config.Config, logger *slog.Logger, recorder chains.MetricsRecorder) *chains.Summarizer {
	p := cfg.Pipeline
	return chains.NewSummarizer(chains.NewLLMSummarizeFunc(model),
		chains.WithMaxLength(cfg.Summary.MaxLength),
		chains.WithMinLength(cfg.Summary.MinLength),
		chains.WithChunkSize(p.ChunkSize),
		chains.WithMinChunkChars(p.MinChunkChars),
		chains.WithCollapseThreshold(p.CollapseWordThreshold),
		chains.WithMaxCollapseDepth(p.MaxCollapseDepth),
		chains.WithConcurrency(p.Concurrency),
		chains.WithLogger(logger),
		chains.WithMetrics(recorder),
	)
}

// Server returns the HTTP server for this app.
func (a *App) Server() *server.Server {
	return server.New(a.Summarizer, a.Registry,
		server.WithLogger(a.Logger),
		server.WithMetrics(a.Metrics),
		server.WithGatherer(a.Gatherer),
		server.WithMaxUploadBytes(a.Config.Server.MaxUploadBytes),
		server.WithRequestTimeout(a.Config.Server.RequestTimeout),
		server.WithDefaultLengths(a.Config.Summary.MaxLength, a.Config.Summary.MinLength),
	)
}
