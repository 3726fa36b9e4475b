// Package metrics exposes summarizer and extraction metrics to Prometheus.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docsum"

// Recorder records pipeline metrics. It satisfies chains.MetricsRecorder.
type Recorder struct {
	chunks       *prometheus.CounterVec
	collapses    *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	summaryWords prometheus.Histogram
	extractions  *prometheus.CounterVec
	circuitState *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewRecorder registers the collectors on reg. Collectors already registered
// on reg are reused, so building two recorders on one registry is safe.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Recorder{
		chunks: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks processed, by outcome (summarized, skipped, failed).",
		}, []string{"outcome"})),
		collapses: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collapses_total",
			Help:      "Collapse passes over combined summaries, by outcome (collapsed, failed).",
		}, []string{"outcome"})),
		runs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Summarization runs, by status.",
		}, []string{"status"})),
		runDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time taken by one summarization run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		})),
		summaryWords: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_length_words",
			Help:      "Distribution of final summary lengths in words.",
			Buckets:   []float64{10, 30, 50, 100, 130, 200, 300, 500},
		})),
		extractions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Document text extractions, by extractor and outcome.",
		}, []string{"extractor", "outcome"})),
		circuitState: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_circuit_state",
			Help:      "Circuit breaker state per backend (0 closed, 1 half-open, 2 open).",
		}, []string{"circuit"})),
		httpRequests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "status"})),
		httpDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"method", "route"})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Recorder) RecordChunk(outcome string) {
	r.chunks.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCollapse(outcome string) {
	r.collapses.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordRun(status string, duration time.Duration, summaryWords int) {
	r.runs.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration.Seconds())
	r.summaryWords.Observe(float64(summaryWords))
}

// RecordExtraction counts an extraction attempt.
func (r *Recorder) RecordExtraction(extractor string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.extractions.WithLabelValues(extractor, outcome).Inc()
}

// SetCircuitState has the signature of resilient.WithStateChangeHook.
func (r *Recorder) SetCircuitState(name, _, to string) {
	var v float64
	switch to {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	r.circuitState.WithLabelValues(name).Set(v)
}

// RecordHTTPRequest counts a served request. route is the mux pattern, not
// the raw path.
func (r *Recorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
