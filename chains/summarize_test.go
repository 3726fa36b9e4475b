package chains_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/docsum/chains"
	"github.com/sevigo/docsum/internal/testutil"
	"github.com/sevigo/docsum/textsplitter"
)

// words returns n distinct seven-character words, so 128 of them fill one
// default-sized chunk exactly.
func words(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("word%03d", i)
	}
	return out
}

func testLogger(t *testing.T) chains.Option {
	logger, _ := testutil.NewTestLogger(t)
	return chains.WithLogger(logger)
}

type countingFunc struct {
	calls atomic.Int32
	fn    chains.SummarizeFunc
}

func (c *countingFunc) summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	c.calls.Add(1)
	return c.fn(ctx, text, maxLength, minLength)
}

func echo(_ context.Context, text string, _, _ int) (string, error) {
	return text, nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	chunks    map[string]int
	collapses map[string]int
	runs      []string
	words     []int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{chunks: map[string]int{}, collapses: map[string]int{}}
}

func (m *recordingMetrics) RecordChunk(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[outcome]++
}

func (m *recordingMetrics) RecordCollapse(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collapses[outcome]++
}

func (m *recordingMetrics) RecordRun(status string, _ time.Duration, summaryWords int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, status)
	m.words = append(m.words, summaryWords)
}

func TestSummarize_ShortInput(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"two characters", "hi"},
		{"whitespace padded", "   \n\t short text that is not long enough    "},
		{"49 characters", strings.Repeat("x", 49)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &countingFunc{fn: echo}
			out := chains.Summarize(ctx, tt.text, counter.summarize, 130, 30, testLogger(t))
			assert.Equal(t, chains.TooShortMessage, out)
			assert.Zero(t, counter.calls.Load(), "primitive must not be invoked")
		})
	}
}

func TestSummarize_SingleChunk(t *testing.T) {
	text := strings.Repeat("The committee reviewed the annual budget. ", 5)

	var gotMax, gotMin int
	fn := func(_ context.Context, in string, maxLength, minLength int) (string, error) {
		gotMax, gotMin = maxLength, minLength
		return "Budget reviewed.", nil
	}

	out := chains.Summarize(context.Background(), text, fn, 130, 30, testLogger(t))
	assert.Equal(t, "Budget reviewed.", out)
	assert.Equal(t, 130, gotMax)
	assert.Equal(t, 30, gotMin)
}

func TestSummarizer_CollapseTrigger(t *testing.T) {
	input := words(300)
	counter := &countingFunc{fn: echo}
	s := chains.NewSummarizer(counter.summarize, testLogger(t))

	res := s.Run(context.Background(), strings.Join(input, " "))

	assert.Equal(t, chains.StatusOK, res.Status)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.Summarized)
	assert.Equal(t, 1, res.Collapses)
	assert.False(t, res.CollapseFailed)
	assert.Equal(t, int32(4), counter.calls.Load(), "one call per chunk plus exactly one collapse")
	assert.Equal(t, strings.Join(input, " "), res.Summary)
	assert.NotEmpty(t, res.RunID)
}

func TestSummarizer_NoCollapseUnderThreshold(t *testing.T) {
	counter := &countingFunc{fn: echo}
	s := chains.NewSummarizer(counter.summarize, testLogger(t))

	res := s.Run(context.Background(), strings.Join(words(150), " "))
	assert.Equal(t, 0, res.Collapses)
	assert.Equal(t, int32(2), counter.calls.Load())
}

func TestSummarizer_AllChunksFail(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	fail := func(context.Context, string, int, int) (string, error) {
		return "", chains.ErrSummarizationFailed
	}
	s := chains.NewSummarizer(fail, chains.WithLogger(logger))

	res := s.Run(context.Background(), strings.Join(words(300), " "))
	assert.Equal(t, chains.NoSummaryMessage, res.Summary)
	assert.Equal(t, chains.StatusNoSummary, res.Status)
	assert.Equal(t, 3, res.Failed)
	assert.Contains(t, logs.String(), "Chunk summarization failed")
}

func TestSummarizer_EmptySummaryCountsAsFailure(t *testing.T) {
	blank := func(context.Context, string, int, int) (string, error) {
		return "   ", nil
	}
	res := chains.NewSummarizer(blank, testLogger(t)).Run(context.Background(), strings.Join(words(20), " "))
	assert.Equal(t, chains.StatusNoSummary, res.Status)
	assert.Equal(t, 1, res.Failed)
}

func TestSummarizer_PanicIsContained(t *testing.T) {
	explode := func(context.Context, string, int, int) (string, error) {
		panic("backend exploded")
	}

	t.Run("single chunk", func(t *testing.T) {
		var out string
		require.NotPanics(t, func() {
			out = chains.Summarize(context.Background(), strings.Repeat("lorem ipsum ", 20), explode, 130, 30, testLogger(t))
		})
		assert.Equal(t, chains.NoSummaryMessage, out)
	})

	t.Run("concurrent chunks", func(t *testing.T) {
		logger, logs := testutil.NewTestLogger(t)
		fn := func(_ context.Context, text string, _, _ int) (string, error) {
			if strings.Fields(text)[0] == "word128" {
				panic("backend exploded")
			}
			return strings.Fields(text)[0], nil
		}
		s := chains.NewSummarizer(fn, chains.WithConcurrency(4), chains.WithLogger(logger))

		var res chains.Result
		require.NotPanics(t, func() {
			res = s.Run(context.Background(), strings.Join(words(500), " "))
		})
		assert.Equal(t, chains.StatusOK, res.Status)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, "word000 word256 word384", res.Summary)
		assert.Contains(t, logs.String(), "backend exploded")
	})

	t.Run("collapse keeps uncollapsed summary", func(t *testing.T) {
		input := strings.Join(words(300), " ")
		fn := func(_ context.Context, text string, _, _ int) (string, error) {
			if textsplitter.WordCount(text) > 200 {
				panic("backend exploded")
			}
			return text, nil
		}
		res := chains.NewSummarizer(fn, testLogger(t)).Run(context.Background(), input)
		assert.Equal(t, chains.StatusOK, res.Status)
		assert.True(t, res.CollapseFailed)
		assert.Equal(t, input, res.Summary)
	})
}

func TestSummarizer_NilFunc(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	var res chains.Result
	require.NotPanics(t, func() {
		res = chains.NewSummarizer(nil, chains.WithLogger(logger)).Run(context.Background(), strings.Join(words(300), " "))
	})
	assert.Equal(t, chains.StatusNoSummary, res.Status)
	assert.Equal(t, 3, res.Failed)
	assert.Contains(t, logs.String(), chains.ErrNoSummarizeFunc.Error())

	assert.Equal(t, chains.NoSummaryMessage,
		chains.Summarize(context.Background(), strings.Repeat("lorem ipsum ", 20), nil, 130, 30, testLogger(t)))
}

func TestSummarize_OutOfRangeLengthsUseDefaults(t *testing.T) {
	var gotMax, gotMin int
	fn := func(_ context.Context, text string, maxLength, minLength int) (string, error) {
		gotMax, gotMin = maxLength, minLength
		return text, nil
	}

	chains.Summarize(context.Background(), strings.Join(words(20), " "), fn, 0, -1, testLogger(t))
	assert.Equal(t, chains.DefaultMaxLength, gotMax)
	assert.Equal(t, chains.DefaultMinLength, gotMin)
}

func TestSummarizer_FailedChunkIsDropped(t *testing.T) {
	fn := func(_ context.Context, text string, _, _ int) (string, error) {
		first := strings.Fields(text)[0]
		if first == "word128" {
			return "", errors.New("backend error")
		}
		return "from-" + first, nil
	}
	res := chains.NewSummarizer(fn, testLogger(t)).Run(context.Background(), strings.Join(words(300), " "))

	assert.Equal(t, chains.StatusOK, res.Status)
	assert.Equal(t, "from-word000 from-word256", res.Summary)
	assert.Equal(t, 2, res.Summarized)
	assert.Equal(t, 1, res.Failed)
}

func TestSummarizer_ShortChunkIsSkipped(t *testing.T) {
	text := strings.Join(append(words(128), "tail"), " ")
	counter := &countingFunc{fn: func(_ context.Context, text string, _, _ int) (string, error) {
		return "summary of " + strings.Fields(text)[0], nil
	}}

	res := chains.NewSummarizer(counter.summarize, testLogger(t)).Run(context.Background(), text)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Summarized)
	assert.Equal(t, "summary of word000", res.Summary)
	assert.Equal(t, int32(1), counter.calls.Load())
}

func TestSummarizer_OrderPreservedUnderConcurrency(t *testing.T) {
	input := words(1000)
	chunks := textsplitter.SplitWords(strings.Join(input, " "), textsplitter.DefaultChunkSize)
	require.Len(t, chunks, 8)

	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, text string, _, _ int) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		first := strings.Fields(text)[0]
		// Later chunks finish first.
		var idx int
		_, _ = fmt.Sscanf(first, "word%03d", &idx)
		time.Sleep(time.Duration(1000-idx) * 10 * time.Microsecond)
		return first, nil
	}

	res := chains.NewSummarizer(fn, chains.WithConcurrency(4), chains.WithMaxCollapseDepth(0), testLogger(t)).
		Run(context.Background(), strings.Join(input, " "))

	expected := make([]string, len(chunks))
	for i, c := range chunks {
		expected[i] = strings.Fields(c)[0]
	}
	assert.Equal(t, strings.Join(expected, " "), res.Summary)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestSummarizer_CollapseFailureFallsBack(t *testing.T) {
	input := strings.Join(words(300), " ")
	fn := func(_ context.Context, text string, _, _ int) (string, error) {
		if textsplitter.WordCount(text) > 200 {
			return "", errors.New("input too large")
		}
		return text, nil
	}
	metrics := newRecordingMetrics()

	res := chains.NewSummarizer(fn, chains.WithMetrics(metrics), testLogger(t)).Run(context.Background(), input)
	assert.Equal(t, chains.StatusOK, res.Status)
	assert.True(t, res.CollapseFailed)
	assert.Equal(t, 0, res.Collapses)
	assert.Equal(t, input, res.Summary)
	assert.Equal(t, 1, metrics.collapses[chains.OutcomeFailed])
}

func TestSummarizer_MaxCollapseDepth(t *testing.T) {
	input := strings.Join(words(600), " ")

	// Chunks are echoed; anything longer than a chunk is halved.
	halve := func(_ context.Context, text string, _, _ int) (string, error) {
		fields := strings.Fields(text)
		if len(fields) <= 128 {
			return text, nil
		}
		return strings.Join(fields[:len(fields)/2], " "), nil
	}

	tests := []struct {
		depth     int
		collapses int
		words     int
	}{
		{depth: 0, collapses: 0, words: 600},
		{depth: 1, collapses: 1, words: 300},
		{depth: 2, collapses: 2, words: 150},
		{depth: 5, collapses: 2, words: 150},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("depth %d", tt.depth), func(t *testing.T) {
			res := chains.NewSummarizer(halve, chains.WithMaxCollapseDepth(tt.depth), testLogger(t)).Run(context.Background(), input)
			assert.Equal(t, tt.collapses, res.Collapses)
			assert.Equal(t, tt.words, textsplitter.WordCount(res.Summary))
		})
	}
}

func TestSummarizer_Metrics(t *testing.T) {
	metrics := newRecordingMetrics()
	s := chains.NewSummarizer(echo, chains.WithMetrics(metrics), testLogger(t))

	s.Run(context.Background(), strings.Join(append(words(300), "x"), " "))
	s.Run(context.Background(), "hi")

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 3, metrics.chunks[chains.OutcomeSummarized])
	assert.Equal(t, 1, metrics.collapses[chains.OutcomeCollapsed])
	assert.Equal(t, []string{string(chains.StatusOK), string(chains.StatusTooShort)}, metrics.runs)
	assert.Equal(t, 301, metrics.words[0])
}

func TestSummarizer_WithLengths(t *testing.T) {
	var gotMax, gotMin int
	fn := func(_ context.Context, text string, maxLength, minLength int) (string, error) {
		gotMax, gotMin = maxLength, minLength
		return text, nil
	}
	base := chains.NewSummarizer(fn, testLogger(t))
	text := strings.Join(words(20), " ")

	base.WithLengths(200, 50).Summarize(context.Background(), text)
	assert.Equal(t, 200, gotMax)
	assert.Equal(t, 50, gotMin)

	base.Summarize(context.Background(), text)
	assert.Equal(t, chains.DefaultMaxLength, gotMax, "WithLengths must not mutate the original")
	assert.Equal(t, chains.DefaultMinLength, gotMin)
}

func TestSummarizer_CustomThresholds(t *testing.T) {
	counter := &countingFunc{fn: echo}
	s := chains.NewSummarizer(counter.summarize,
		chains.WithChunkSize(64),
		chains.WithMinChunkChars(10),
		chains.WithCollapseThreshold(5),
		testLogger(t),
	)

	res := s.Run(context.Background(), strings.Join(words(16), " "))
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 1, res.Collapses)
	assert.Equal(t, int32(3), counter.calls.Load())
}

func TestValidateLengths(t *testing.T) {
	tests := []struct {
		name     string
		max, min int
		wantErr  bool
	}{
		{"defaults", chains.DefaultMaxLength, chains.DefaultMinLength, false},
		{"range edges", chains.MaxMaxLength, chains.MinMinLength, false},
		{"equal bounds", 60, 60, false},
		{"max too small", 49, 10, true},
		{"max too large", 251, 30, true},
		{"min too small", 130, 9, true},
		{"min too large", 200, 101, true},
		{"min above max", 50, 60, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := chains.ValidateLengths(tt.max, tt.min)
			if tt.wantErr {
				assert.ErrorIs(t, err, chains.ErrInvalidLength)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
