package llms

import (
	"context"

	"github.com/sevigo/docsum/schema"
)

// Model is implemented by every text-generation backend.
type Model interface {
	GenerateContent(ctx context.Context, messages []schema.MessageContent, options ...CallOption) (*schema.ContentResponse, error)
	Call(ctx context.Context, prompt string, options ...CallOption) (string, error)
}

func GenerateFromSinglePrompt(ctx context.Context, llm Model, prompt string, options ...CallOption) (string, error) {
	msg := schema.NewHumanMessage(prompt)

	resp, err := llm.GenerateContent(ctx, []schema.MessageContent{msg}, options...)
	if err != nil {
		return "", err
	}

	choices := resp.Choices
	if len(choices) < 1 {
		return "", ErrEmptyResponse
	}
	return choices[0].Content, nil
}

func TextParts(role schema.ChatMessageType, parts ...string) schema.MessageContent {
	result := schema.MessageContent{
		Role:  role,
		Parts: make([]schema.ContentPart, 0, len(parts)),
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, schema.TextContent{Text: part})
	}
	return result
}

// SplitSystem separates a leading system message from the rest of the conversation.
// Backends that take the system prompt out of band use it.
func SplitSystem(messages []schema.MessageContent) (string, []schema.MessageContent, error) {
	var system string
	rest := make([]schema.MessageContent, 0, len(messages))
	for i, msg := range messages {
		if msg.Role != schema.ChatMessageTypeSystem {
			rest = append(rest, msg)
			continue
		}
		if i != 0 {
			return "", nil, ErrSystemMessage
		}
		system = msg.GetTextContent()
	}
	return system, rest, nil
}
