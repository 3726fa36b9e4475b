package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/schema"
)

var ErrNoResponses = errors.New("fake: no responses configured")

// LLM is a scripted llms.Model for tests. It cycles through canned responses,
// or echoes the prompt back when built with NewEchoLLM. FailWith decides per
// prompt whether a call should fail.
type LLM struct {
	mu          sync.Mutex
	responses   []string
	echo        bool
	index       int
	prompts     []string
	lastOptions llms.CallOptions
	callCount   int

	// FailWith, when set, is consulted before each call; a non-nil result is returned as the error.
	FailWith func(prompt string) error
}

var _ llms.Model = (*LLM)(nil)

func NewFakeLLM(responses []string) *LLM {
	return &LLM{
		responses: responses,
	}
}

// NewEchoLLM returns a fake whose response is the prompt itself.
func NewEchoLLM() *LLM {
	return &LLM{echo: true}
}

// GenerateContent returns the next predefined response in the cycle.
func (f *LLM) GenerateContent(
	_ context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prompt string
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].GetTextContent()
	}
	f.prompts = append(f.prompts, prompt)
	f.lastOptions = llms.ApplyCallOptions(options...)
	f.callCount++

	if f.FailWith != nil {
		if err := f.FailWith(prompt); err != nil {
			return nil, err
		}
	}

	var response string
	switch {
	case f.echo:
		response = prompt
	case len(f.responses) == 0:
		return nil, ErrNoResponses
	default:
		response = f.responses[f.index]
		f.index = (f.index + 1) % len(f.responses)
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{Content: response},
		},
	}, nil
}

// Call is a simplified interface for generating responses from a string prompt.
func (f *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// Reset resets the response index, call count and recorded prompts.
func (f *LLM) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.callCount = 0
	f.prompts = nil
	f.lastOptions = llms.CallOptions{}
}

// AddResponse appends a new response to the list.
func (f *LLM) AddResponse(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

// LastPrompt returns the last prompt sent to the LLM.
func (f *LLM) LastPrompt() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return "", false
	}
	return f.prompts[len(f.prompts)-1], true
}

// Prompts returns every prompt received, in call order.
func (f *LLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// LastOptions returns the call options of the most recent call.
func (f *LLM) LastOptions() llms.CallOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOptions
}

// GetCallCount returns the number of times the LLM was called.
func (f *LLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
