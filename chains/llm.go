package chains

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/prompts"
	"github.com/sevigo/docsum/schema"
)

var (
	ErrSummarizationFailed = errors.New("chains: summarization failed")
	ErrEmptySummary        = errors.New("chains: model returned an empty summary")
)

// Words are capped at roughly two tokens each so the model is not cut off
// mid-sentence when it overshoots max_length.
const tokensPerWord = 2

type llmOptions struct {
	prompt       prompts.PromptTemplate
	systemPrompt string
	callOptions  []llms.CallOption
}

// LLMOption configures NewLLMSummarizeFunc.
type LLMOption func(*llmOptions)

// WithPrompt replaces the user prompt. It must use the text, min_length and max_length variables.
func WithPrompt(p prompts.PromptTemplate) LLMOption {
	return func(o *llmOptions) {
		o.prompt = p
	}
}

// WithSystemPrompt replaces the system prompt. An empty string sends none.
func WithSystemPrompt(system string) LLMOption {
	return func(o *llmOptions) {
		o.systemPrompt = system
	}
}

// WithCallOptions appends options to every model call.
func WithCallOptions(opts ...llms.CallOption) LLMOption {
	return func(o *llmOptions) {
		o.callOptions = append(o.callOptions, opts...)
	}
}

// NewLLMSummarizeFunc turns a chat model into a SummarizeFunc. Calls use
// temperature 0 and a token cap derived from maxLength. Every failure wraps
// ErrSummarizationFailed.
func NewLLMSummarizeFunc(model llms.Model, opts ...LLMOption) SummarizeFunc {
	o := llmOptions{
		prompt:       prompts.DefaultSummaryPrompt,
		systemPrompt: prompts.DefaultSummarySystemPrompt,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, text string, maxLength, minLength int) (string, error) {
		userPrompt := o.prompt.Format(map[string]string{
			"text":       text,
			"max_length": strconv.Itoa(maxLength),
			"min_length": strconv.Itoa(minLength),
		})

		messages := make([]schema.MessageContent, 0, 2)
		if o.systemPrompt != "" {
			messages = append(messages, schema.NewSystemMessage(o.systemPrompt))
		}
		messages = append(messages, schema.NewHumanMessage(userPrompt))

		callOpts := []llms.CallOption{
			llms.WithTemperature(0),
			llms.WithMaxTokens(maxLength * tokensPerWord),
		}
		callOpts = append(callOpts, o.callOptions...)

		resp, err := model.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSummarizationFailed, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: %w", ErrSummarizationFailed, llms.ErrEmptyResponse)
		}

		summary := strings.TrimSpace(resp.Choices[0].Content)
		if summary == "" {
			return "", fmt.Errorf("%w: %w", ErrSummarizationFailed, ErrEmptySummary)
		}
		return summary, nil
	}
}
