package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/schema"
)

const providerName = "ollama"

// Common errors returned by the Ollama LLM implementation.
var (
	ErrEmptyResponse = errors.New("ollama: empty response received")
	ErrInvalidModel  = errors.New("ollama: invalid model specified")
	ErrNoTextParts   = errors.New("ollama: no text parts found in message")
)

// LLM talks to an Ollama server through the upstream api client.
type LLM struct {
	client  *api.Client
	options options
	logger  *slog.Logger
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Ollama LLM instance. Without WithServerURL the server is
// resolved from OLLAMA_HOST.
func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)

	if o.model == "" {
		return nil, ErrInvalidModel
	}

	var client *api.Client
	if o.ollamaServerURL != nil {
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(o.ollamaServerURL, httpClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	llm := &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "ollama_llm", "model", o.model),
	}

	llm.logger.Debug("Ollama LLM initialized")
	return llm, nil
}

// Call implements simple prompt-based text generation.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent handles structured message-based content generation.
func (o *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	opts := llms.ApplyCallOptions(options...)
	model := o.determineModel(opts)

	chatMsgs, err := convertToOllamaMessages(messages)
	if err != nil {
		return nil, err
	}

	isStreaming := opts.StreamingFunc != nil
	req := &api.ChatRequest{
		Model:    model,
		Messages: chatMsgs,
		Stream:   &isStreaming,
		Options:  requestOptions(opts),
	}
	if o.options.keepAlive != "" {
		if d, perr := time.ParseDuration(o.options.keepAlive); perr == nil {
			req.KeepAlive = &api.Duration{Duration: d}
		}
	}

	var fullResponse strings.Builder
	var finalResp api.ChatResponse

	fn := func(response api.ChatResponse) error {
		fullResponse.WriteString(response.Message.Content)
		if opts.StreamingFunc != nil && response.Message.Content != "" {
			if errStream := opts.StreamingFunc(ctx, []byte(response.Message.Content)); errStream != nil {
				return fmt.Errorf("streaming function returned an error: %w", errStream)
			}
		}
		if response.Done {
			finalResp = response
		}
		return nil
	}

	err = o.client.Chat(ctx, req, fn)
	duration := time.Since(start)
	if err != nil {
		o.logger.ErrorContext(ctx, "Ollama chat failed", "error", err, "duration", duration)
		return nil, wrapError(err)
	}

	content := fullResponse.String()
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyResponse
	}

	o.logger.DebugContext(ctx, "Content generation completed",
		"duration", duration, "completion_tokens", finalResp.EvalCount)

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    content,
				StopReason: finalResp.DoneReason,
				GenerationInfo: map[string]any{
					"CompletionTokens": finalResp.EvalCount,
					"PromptTokens":     finalResp.PromptEvalCount,
					"TotalTokens":      finalResp.EvalCount + finalResp.PromptEvalCount,
					"Duration":         duration,
					"Model":            model,
				},
			},
		},
	}, nil
}

// EnsureModel ensures the model is available locally, pulling it if necessary.
func (o *LLM) EnsureModel(ctx context.Context) error {
	exists, err := o.ModelExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	o.logger.InfoContext(ctx, "Model not found locally, initiating pull")

	pullStart := time.Now()
	err = o.client.Pull(ctx, &api.PullRequest{Model: o.options.model}, func(progress api.ProgressResponse) error {
		if progress.Total > 0 {
			percent := (float64(progress.Completed) / float64(progress.Total)) * 100
			o.logger.DebugContext(ctx, "Model pull progress",
				"status", progress.Status,
				"percent", fmt.Sprintf("%.1f%%", percent))
		} else {
			o.logger.DebugContext(ctx, "Model pull status", "status", progress.Status)
		}
		return nil
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "Model pull failed", "error", err, "duration", time.Since(pullStart))
		return fmt.Errorf("model pull failed: %w", wrapError(err))
	}

	o.logger.InfoContext(ctx, "Model pull completed", "duration", time.Since(pullStart))
	return nil
}

// ModelExists checks if the configured model is available locally.
func (o *LLM) ModelExists(ctx context.Context) (bool, error) {
	_, err := o.client.Show(ctx, &api.ShowRequest{Model: o.options.model})
	if err == nil {
		return true, nil
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "not found") {
		return false, nil
	}
	return false, fmt.Errorf("model existence check failed: %w", wrapError(err))
}

func (o *LLM) determineModel(opts llms.CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.options.model
}

func requestOptions(opts llms.CallOptions) map[string]any {
	out := map[string]any{}
	if opts.Temperature != nil {
		out["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		out["num_predict"] = opts.MaxTokens
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// convertToOllamaMessages converts schema messages to the api wire format.
func convertToOllamaMessages(messages []schema.MessageContent) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, llms.ErrNoMessages
	}
	chatMsgs := make([]api.Message, 0, len(messages))
	for _, mc := range messages {
		texts := make([]string, 0, len(mc.Parts))
		for _, p := range mc.Parts {
			switch part := p.(type) {
			case schema.TextContent:
				texts = append(texts, part.Text)
			default:
				return nil, fmt.Errorf("unsupported content part type: %T", part)
			}
		}
		if len(texts) == 0 {
			return nil, ErrNoTextParts
		}
		chatMsgs = append(chatMsgs, api.Message{
			Role:    typeToRole(mc.Role),
			Content: strings.Join(texts, "\n"),
		})
	}
	return chatMsgs, nil
}

func typeToRole(typ schema.ChatMessageType) string {
	switch typ {
	case schema.ChatMessageTypeSystem:
		return "system"
	case schema.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}

func wrapError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llms.NewProviderError(providerName, statusErr.StatusCode, err)
	}
	return llms.NewProviderError(providerName, 0, err)
}
