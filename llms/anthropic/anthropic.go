// Package anthropic adapts the Claude Messages API to llms.Model.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/schema"
)

const providerName = "anthropic"

var (
	ErrNoAPIKey      = errors.New("anthropic: API key is required")
	ErrEmptyResponse = errors.New("anthropic: empty response received")
)

// LLM implements llms.Model for Claude.
type LLM struct {
	client  sdk.Client
	options options
	logger  *slog.Logger
}

var _ llms.Model = (*LLM)(nil)

// New creates a Claude backed model. Retries are left to llms/resilient.
func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)
	if o.apiKey == "" {
		o.apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(o.apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:  sdk.NewClient(reqOpts...),
		options: o,
		logger:  o.logger.With("component", "anthropic_llm", "model", o.model),
	}, nil
}

// Call runs a single prompt.
func (l *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}

// GenerateContent sends the conversation to the Messages API.
func (l *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	opts := llms.ApplyCallOptions(options...)

	params, err := l.buildParams(messages, opts)
	if err != nil {
		return nil, err
	}

	if opts.StreamingFunc != nil {
		return l.stream(ctx, params, opts, start)
	}

	msg, err := l.client.Messages.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		l.logger.ErrorContext(ctx, "Claude request failed", "error", err, "duration", duration)
		return nil, wrapError(err)
	}
	return toResponse(msg, duration)
}

func (l *LLM) buildParams(messages []schema.MessageContent, opts llms.CallOptions) (sdk.MessageNewParams, error) {
	system, rest, err := llms.SplitSystem(messages)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}
	if len(rest) == 0 {
		return sdk.MessageNewParams{}, llms.ErrNoMessages
	}

	model := l.options.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := l.options.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  make([]sdk.MessageParam, 0, len(rest)),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}

	for _, mc := range rest {
		block := sdk.NewTextBlock(mc.GetTextContent())
		if mc.Role == schema.ChatMessageTypeAI {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, sdk.NewUserMessage(block))
		}
	}
	return params, nil
}

func (l *LLM) stream(
	ctx context.Context,
	params sdk.MessageNewParams,
	opts llms.CallOptions,
	start time.Time,
) (*schema.ContentResponse, error) {
	stream := l.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream event: %w", err)
		}
		delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text, ok := delta.Delta.AsAny().(sdk.TextDelta)
		if !ok || text.Text == "" {
			continue
		}
		if err := opts.StreamingFunc(ctx, []byte(text.Text)); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, wrapError(err)
	}
	return toResponse(&message, time.Since(start))
}

func toResponse(msg *sdk.Message, duration time.Duration) (*schema.ContentResponse, error) {
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, ErrEmptyResponse
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    b.String(),
				StopReason: string(msg.StopReason),
				GenerationInfo: map[string]any{
					"CompletionTokens": msg.Usage.OutputTokens,
					"PromptTokens":     msg.Usage.InputTokens,
					"TotalTokens":      msg.Usage.InputTokens + msg.Usage.OutputTokens,
					"Duration":         duration,
					"Model":            string(msg.Model),
				},
			},
		},
	}, nil
}

func wrapError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llms.NewProviderError(providerName, apiErr.StatusCode, err)
	}
	return llms.NewProviderError(providerName, 0, err)
}
