package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/docsum/internal/testutil"
	"github.com/sevigo/docsum/llms"
	"github.com/sevigo/docsum/llms/openai"
	"github.com/sevigo/docsum/schema"
)

type recorder struct {
	mu   sync.Mutex
	body map[string]any
}

func (r *recorder) get() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

func newServer(t *testing.T, handler func(w http.ResponseWriter)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.body = body
		rec.mu.Unlock()
		handler(w)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func newLLM(t *testing.T, srv *httptest.Server) *openai.LLM {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	llm, err := openai.New(
		openai.WithAPIKey("sk-test"),
		openai.WithModel("gpt-4o-mini"),
		openai.WithBaseURL(srv.URL+"/v1"),
		openai.WithHTTPClient(srv.Client()),
		openai.WithLogger(logger),
	)
	require.NoError(t, err)
	return llm
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := openai.New()
	assert.ErrorIs(t, err, openai.ErrNoAPIKey)
}

func TestLLM_GenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("chat completion", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprint(w, `{
				"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o-mini",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Condensed."}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 20, "completion_tokens": 2, "total_tokens": 22}
			}`)
		})
		llm := newLLM(t, srv)

		resp, err := llm.GenerateContent(ctx, []schema.MessageContent{
			schema.NewSystemMessage("You summarize."),
			schema.NewHumanMessage("Text to condense."),
		}, llms.WithMaxTokens(200))
		require.NoError(t, err)
		assert.Equal(t, "Condensed.", resp.Choices[0].Content)
		assert.Equal(t, "stop", resp.Choices[0].StopReason)
		assert.Equal(t, 22, resp.Choices[0].GenerationInfo["TotalTokens"])

		body := rec.get()
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.InDelta(t, 200.0, body["max_tokens"], 1e-9)
		messages, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	})

	t.Run("streaming", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Part one\"}}]}\n\n")
			_, _ = fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\", part two\"},\"finish_reason\":\"stop\"}]}\n\n")
			_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		})
		llm := newLLM(t, srv)

		var chunks []string
		resp, err := llm.GenerateContent(ctx, []schema.MessageContent{schema.NewHumanMessage("go")},
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				chunks = append(chunks, string(chunk))
				return nil
			}))
		require.NoError(t, err)
		assert.Equal(t, "Part one, part two", resp.Choices[0].Content)
		assert.Equal(t, "stop", resp.Choices[0].StopReason)
		assert.Equal(t, []string{"Part one", ", part two"}, chunks)
		assert.Equal(t, true, rec.get()["stream"])
	})

	t.Run("rate limit is a temporary provider error", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = fmt.Fprint(w, `{"error": {"message": "slow down", "type": "rate_limit_exceeded"}}`)
		})
		llm := newLLM(t, srv)

		_, err := llm.Call(ctx, "hi")
		var perr *llms.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "openai", perr.Provider)
		assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
		assert.True(t, perr.Temporary())
	})

	t.Run("empty choices", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprint(w, `{"id": "x", "choices": []}`)
		})
		llm := newLLM(t, srv)

		_, err := llm.Call(ctx, "hi")
		assert.ErrorIs(t, err, openai.ErrEmptyResponse)
	})
}
