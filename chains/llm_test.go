package chains_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/docsum/chains"
	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/llms/fake"
	"github.com/sevigo/docsum/prompts"
)

func TestNewLLMSummarizeFunc(t *testing.T) {
	ctx := context.Background()

	t.Run("prompt and call options", func(t *testing.T) {
		model := fake.NewFakeLLM([]string{"  A concise summary.  "})
		fn := chains.NewLLMSummarizeFunc(model)

		out, err := fn(ctx, "The original text.", 130, 30)
		require.NoError(t, err)
		assert.Equal(t, "A concise summary.", out)

		prompt, ok := model.LastPrompt()
		require.True(t, ok)
		assert.Contains(t, prompt, "in 30 to 130 words")
		assert.Contains(t, prompt, "The original text.")

		opts := model.LastOptions()
		require.NotNil(t, opts.Temperature)
		assert.InDelta(t, 0.0, *opts.Temperature, 1e-9)
		assert.Equal(t, 260, opts.MaxTokens)
	})

	t.Run("custom prompt and extra options", func(t *testing.T) {
		model := fake.NewFakeLLM([]string{"ok"})
		fn := chains.NewLLMSummarizeFunc(model,
			chains.WithPrompt(prompts.NewPromptTemplate("TL;DR ({{.max_length}}): {{.text}}")),
			chains.WithSystemPrompt(""),
			chains.WithCallOptions(llms.WithModel("small-model")),
		)

		_, err := fn(ctx, "body", 50, 10)
		require.NoError(t, err)

		prompt, _ := model.LastPrompt()
		assert.Equal(t, "TL;DR (50): body", prompt)
		assert.Equal(t, "small-model", model.LastOptions().Model)
	})

	t.Run("model error wraps sentinel", func(t *testing.T) {
		backendErr := errors.New("backend down")
		model := fake.NewEchoLLM()
		model.FailWith = func(string) error { return backendErr }

		_, err := chains.NewLLMSummarizeFunc(model)(ctx, "text", 130, 30)
		require.Error(t, err)
		assert.ErrorIs(t, err, chains.ErrSummarizationFailed)
		assert.ErrorIs(t, err, backendErr)
	})

	t.Run("blank output is a failure", func(t *testing.T) {
		model := fake.NewFakeLLM([]string{"   "})
		_, err := chains.NewLLMSummarizeFunc(model)(ctx, "text", 130, 30)
		assert.ErrorIs(t, err, chains.ErrSummarizationFailed)
		assert.ErrorIs(t, err, chains.ErrEmptySummary)
	})
}

func TestSummarizer_WithLLM(t *testing.T) {
	model := fake.NewFakeLLM([]string{"First part.", "Second part.", "Third part."})
	s := chains.NewSummarizer(chains.NewLLMSummarizeFunc(model), testLogger(t))

	res := s.Run(context.Background(), strings.Join(words(300), " "))
	assert.Equal(t, "First part. Second part. Third part.", res.Summary)
	assert.Equal(t, 3, model.GetCallCount())
}
