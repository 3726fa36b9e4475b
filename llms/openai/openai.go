// Package openai adapts the OpenAI chat completions API to llms.Model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/schema"
)

const providerName = "openai"

var (
	ErrNoAPIKey      = errors.New("openai: API key is required")
	ErrEmptyResponse = errors.New("openai: empty response received")
)

// LLM implements llms.Model using go-openai.
type LLM struct {
	client  *goopenai.Client
	options options
	logger  *slog.Logger
}

var _ llms.Model = (*LLM)(nil)

// New creates an OpenAI backed model.
func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)
	if o.apiKey == "" {
		o.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	cfg := goopenai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &LLM{
		client:  goopenai.NewClientWithConfig(cfg),
		options: o,
		logger:  o.logger.With("component", "openai_llm", "model", o.model),
	}, nil
}

// Call runs a single prompt.
func (l *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}

// GenerateContent sends the conversation as a chat completion request.
func (l *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	opts := llms.ApplyCallOptions(options...)

	chatMsgs, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	model := l.options.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := goopenai.ChatCompletionRequest{
		Model:     model,
		Messages:  chatMsgs,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}

	if opts.StreamingFunc != nil {
		return l.stream(ctx, req, opts, start)
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)
	if err != nil {
		l.logger.ErrorContext(ctx, "OpenAI chat completion failed", "error", err, "duration", duration)
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	l.logger.DebugContext(ctx, "Content generation completed",
		"duration", duration, "completion_tokens", resp.Usage.CompletionTokens)

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    resp.Choices[0].Message.Content,
				StopReason: string(resp.Choices[0].FinishReason),
				GenerationInfo: map[string]any{
					"CompletionTokens": resp.Usage.CompletionTokens,
					"PromptTokens":     resp.Usage.PromptTokens,
					"TotalTokens":      resp.Usage.TotalTokens,
					"Duration":         duration,
					"Model":            resp.Model,
				},
			},
		},
	}, nil
}

func (l *LLM) stream(
	ctx context.Context,
	req goopenai.ChatCompletionRequest,
	opts llms.CallOptions,
	start time.Time,
) (*schema.ContentResponse, error) {
	req.Stream = true
	stream, err := l.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, wrapError(err)
	}
	defer stream.Close()

	var full strings.Builder
	var stopReason string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if chunk.Choices[0].FinishReason != "" {
			stopReason = string(chunk.Choices[0].FinishReason)
		}
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := opts.StreamingFunc(ctx, []byte(delta)); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}

	if strings.TrimSpace(full.String()) == "" {
		return nil, ErrEmptyResponse
	}
	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    full.String(),
				StopReason: stopReason,
				GenerationInfo: map[string]any{
					"Duration": time.Since(start),
					"Model":    req.Model,
				},
			},
		},
	}, nil
}

func convertMessages(messages []schema.MessageContent) ([]goopenai.ChatCompletionMessage, error) {
	if len(messages) == 0 {
		return nil, llms.ErrNoMessages
	}
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, mc := range messages {
		for _, p := range mc.Parts {
			if _, ok := p.(schema.TextContent); !ok {
				return nil, fmt.Errorf("unsupported content part type: %T", p)
			}
		}
		role := goopenai.ChatMessageRoleUser
		switch mc.Role {
		case schema.ChatMessageTypeSystem:
			role = goopenai.ChatMessageRoleSystem
		case schema.ChatMessageTypeAI:
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: mc.GetTextContent()})
	}
	return out, nil
}

func wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llms.NewProviderError(providerName, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return llms.NewProviderError(providerName, reqErr.HTTPStatusCode, err)
	}
	return llms.NewProviderError(providerName, 0, err)
}
