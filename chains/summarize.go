package chains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sevigo/docsum/textsplitter"
)

const (
	TooShortMessage  = "Text is too short to summarize."
	NoSummaryMessage = "Unable to generate summary."
)

// SummarizeFunc summarizes one bounded piece of text. A returned error is a
// summarization failure of that piece only. So is a panic, and so is a
// summary that is empty or only whitespace: the piece is dropped rather than
// joined as an empty string.
type SummarizeFunc func(ctx context.Context, text string, maxLength, minLength int) (string, error)

// Status classifies the outcome of a run.
type Status string

const (
	StatusOK        Status = "ok"
	StatusTooShort  Status = "too_short"
	StatusNoSummary Status = "no_summary"
)

// Chunk and collapse outcome labels reported to MetricsRecorder.
const (
	OutcomeSummarized = "summarized"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeCollapsed  = "collapsed"
)

// MetricsRecorder observes summarizer runs.
type MetricsRecorder interface {
	RecordChunk(outcome string)
	RecordCollapse(outcome string)
	RecordRun(status string, duration time.Duration, summaryWords int)
}

// ErrNoSummarizeFunc fails every call of a Summarizer built without a SummarizeFunc.
var ErrNoSummarizeFunc = errors.New("chains: no summarize function")

type nopMetrics struct{}

func (nopMetrics) RecordChunk(string)                   {}
func (nopMetrics) RecordCollapse(string)                {}
func (nopMetrics) RecordRun(string, time.Duration, int) {}

// Result describes one run. Summary is always set, sentinels included.
type Result struct {
	RunID          string
	Summary        string
	Status         Status
	Chunks         int
	Summarized     int
	Skipped        int
	Failed         int
	Collapses      int
	CollapseFailed bool
	Duration       time.Duration
}

// Summarizer condenses text of any length with a primitive that only takes
// bounded input. The text is split into chunks, each chunk is summarized, the
// partial summaries are joined in order, and the join is summarized again
// while it stays above the collapse threshold. Failures degrade the result
// instead of surfacing as errors.
type Summarizer struct {
	fn     SummarizeFunc
	opts   options
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer around fn. A nil fn yields a Summarizer
// whose every chunk fails with ErrNoSummarizeFunc.
func NewSummarizer(fn SummarizeFunc, opts ...Option) *Summarizer {
	o := applyOptions(opts...)
	if fn == nil {
		fn = func(context.Context, string, int, int) (string, error) {
			return "", ErrNoSummarizeFunc
		}
	}
	return &Summarizer{
		fn:     fn,
		opts:   o,
		logger: o.logger.With("component", "summarizer"),
	}
}

// WithLengths returns a copy of s that requests summaries between minLength and maxLength words.
// A maxLength below one or a negative minLength keeps the current value; use
// ValidateLengths to reject user input instead.
func (s *Summarizer) WithLengths(maxLength, minLength int) *Summarizer {
	c := *s
	WithMaxLength(maxLength)(&c.opts)
	WithMinLength(minLength)(&c.opts)
	return &c
}

// Summarize returns the summary of text, or one of TooShortMessage and NoSummaryMessage.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	return s.Run(ctx, text).Summary
}

// Summarize is the one-shot form of Summarizer.Summarize. Lengths out of
// range fall back to DefaultMaxLength and DefaultMinLength, see WithLengths.
func Summarize(ctx context.Context, text string, fn SummarizeFunc, maxLength, minLength int, opts ...Option) string {
	all := append([]Option{WithMaxLength(maxLength), WithMinLength(minLength)}, opts...)
	return NewSummarizer(fn, all...).Summarize(ctx, text)
}

type chunkResult struct {
	summary string
	outcome string
	err     error
}

// Run summarizes text and reports how each stage went.
func (s *Summarizer) Run(ctx context.Context, text string) (res Result) {
	start := time.Now()
	res.RunID = uuid.NewString()
	logger := s.logger.With("run_id", res.RunID)

	defer func() {
		res.Duration = time.Since(start)
		s.opts.metrics.RecordRun(string(res.Status), res.Duration, textsplitter.WordCount(res.Summary))
	}()

	if s.tooShort(text) {
		logger.DebugContext(ctx, "Text below viability threshold", "chars", utf8.RuneCountInString(strings.TrimSpace(text)))
		res.Status = StatusTooShort
		res.Summary = TooShortMessage
		return res
	}

	chunks := textsplitter.SplitWords(text, s.opts.chunkSize)
	res.Chunks = len(chunks)
	logger.InfoContext(ctx, "Summarization started",
		"chunks", len(chunks),
		"max_length", s.opts.maxLength,
		"min_length", s.opts.minLength)

	results := s.summarizeChunks(ctx, logger, chunks)

	summaries := make([]string, 0, len(results))
	for _, r := range results {
		s.opts.metrics.RecordChunk(r.outcome)
		switch r.outcome {
		case OutcomeSummarized:
			res.Summarized++
			summaries = append(summaries, r.summary)
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeFailed:
			res.Failed++
		}
	}

	if len(summaries) == 0 {
		logger.WarnContext(ctx, "No chunk produced a summary", "skipped", res.Skipped, "failed", res.Failed)
		res.Status = StatusNoSummary
		res.Summary = NoSummaryMessage
		return res
	}

	res.Summary = s.collapse(ctx, logger, strings.Join(summaries, " "), &res)
	res.Status = StatusOK

	logger.InfoContext(ctx, "Summarization completed",
		"summarized", res.Summarized,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"collapses", res.Collapses,
		"duration", time.Since(start))
	return res
}

func (s *Summarizer) tooShort(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < s.opts.minChunkChars
}

// summarizeChunks returns one result per chunk, in chunk order.
func (s *Summarizer) summarizeChunks(ctx context.Context, logger *slog.Logger, chunks []string) []chunkResult {
	results := make([]chunkResult, len(chunks))

	if s.opts.concurrency <= 1 {
		for i, chunk := range chunks {
			results[i] = s.summarizeChunk(ctx, logger, i, chunk)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.opts.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = s.summarizeChunk(ctx, logger, i, chunk)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Summarizer) summarizeChunk(ctx context.Context, logger *slog.Logger, index int, chunk string) chunkResult {
	if s.tooShort(chunk) {
		logger.DebugContext(ctx, "Skipping short chunk", "chunk", index)
		return chunkResult{outcome: OutcomeSkipped}
	}

	summary, err := s.call(ctx, chunk)
	if err != nil {
		logger.WarnContext(ctx, "Chunk summarization failed", "chunk", index, "error", err)
		return chunkResult{outcome: OutcomeFailed, err: err}
	}
	return chunkResult{outcome: OutcomeSummarized, summary: summary}
}

// collapse re-summarizes combined while it exceeds the word threshold, up to
// the configured depth. A failed pass keeps the last good text.
func (s *Summarizer) collapse(ctx context.Context, logger *slog.Logger, combined string, res *Result) string {
	for depth := 0; depth < s.opts.maxCollapseDepth; depth++ {
		words := textsplitter.WordCount(combined)
		if words <= s.opts.collapseThreshold {
			break
		}

		logger.DebugContext(ctx, "Collapsing combined summary", "words", words, "pass", depth+1)
		collapsed, err := s.call(ctx, combined)
		if err != nil {
			logger.WarnContext(ctx, "Collapse failed, keeping uncollapsed summary", "error", err)
			s.opts.metrics.RecordCollapse(OutcomeFailed)
			res.CollapseFailed = true
			break
		}

		s.opts.metrics.RecordCollapse(OutcomeCollapsed)
		res.Collapses++
		combined = collapsed
	}
	return combined
}

// call invokes the primitive once. Panics and blank output become errors.
func (s *Summarizer) call(ctx context.Context, text string) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary, err = "", fmt.Errorf("%w: panic: %v", ErrSummarizationFailed, r)
		}
	}()

	summary, err = s.fn(ctx, text, s.opts.maxLength, s.opts.minLength)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = ErrEmptySummary
	}
	return summary, err
}
