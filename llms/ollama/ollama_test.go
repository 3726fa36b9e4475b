package ollama_test

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
	"github.com/sevigo/docsum/llms/ollama"
	"github.com/sevigo/docsum/schema"
)

type chatCapture struct {
	mu   sync.Mutex
	body map[string]any
}

func (c *chatCapture) set(body map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = body
}

func (c *chatCapture) get() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func newServer(t *testing.T, capture *chatCapture, chatStatus int, lines ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		capture.set(body)
		if chatStatus != http.StatusOK {
			w.WriteHeader(chatStatus)
			_, _ = fmt.Fprint(w, "service unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			_, _ = fmt.Fprintln(w, line)
		}
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"error":"model 'missing' not found"}`)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		_, _ = fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
		_, _ = fmt.Fprintln(w, `{"status":"success"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newLLM(t *testing.T, srv *httptest.Server) *ollama.LLM {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	llm, err := ollama.New(
		ollama.WithModel("llama3.2"),
		ollama.WithServerURL(srv.URL),
		ollama.WithHTTPClient(srv.Client()),
		ollama.WithLogger(logger),
	)
	require.NoError(t, err)
	return llm
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := ollama.New()
	assert.ErrorIs(t, err, ollama.ErrInvalidModel)
}

func TestLLM_GenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("non streaming", func(t *testing.T) {
		capture := &chatCapture{}
		srv := newServer(t, capture, http.StatusOK,
			`{"model":"llama3.2","message":{"role":"assistant","content":"A short summary."},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":5}`)
		llm := newLLM(t, srv)

		resp, err := llm.GenerateContent(ctx, []schema.MessageContent{
			schema.NewSystemMessage("You summarize."),
			schema.NewHumanMessage("Some long text."),
		}, llms.WithTemperature(0), llms.WithMaxTokens(64))
		require.NoError(t, err)
		require.Len(t, resp.Choices, 1)
		assert.Equal(t, "A short summary.", resp.Choices[0].Content)
		assert.Equal(t, "stop", resp.Choices[0].StopReason)
		assert.Equal(t, 17, resp.Choices[0].GenerationInfo["TotalTokens"])

		body := capture.get()
		assert.Equal(t, "llama3.2", body["model"])
		assert.Equal(t, false, body["stream"])
		messages, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])
		options, ok := body["options"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 0.0, options["temperature"], 1e-9)
		assert.InDelta(t, 64.0, options["num_predict"], 1e-9)
	})

	t.Run("streaming", func(t *testing.T) {
		capture := &chatCapture{}
		srv := newServer(t, capture, http.StatusOK,
			`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
			`{"message":{"role":"assistant","content":" world"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"eval_count":2}`)
		llm := newLLM(t, srv)

		var streamed []string
		resp, err := llm.GenerateContent(ctx, []schema.MessageContent{schema.NewHumanMessage("hi")},
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				streamed = append(streamed, string(chunk))
				return nil
			}))
		require.NoError(t, err)
		assert.Equal(t, "Hello world", resp.Choices[0].Content)
		assert.Equal(t, []string{"Hello", " world"}, streamed)
		assert.Equal(t, true, capture.get()["stream"])
	})

	t.Run("server error is a provider error", func(t *testing.T) {
		srv := newServer(t, &chatCapture{}, http.StatusServiceUnavailable)
		llm := newLLM(t, srv)

		_, err := llm.Call(ctx, "hi")
		require.Error(t, err)
		var perr *llms.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "ollama", perr.Provider)
		assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
		assert.True(t, perr.Temporary())
	})

	t.Run("empty content", func(t *testing.T) {
		srv := newServer(t, &chatCapture{}, http.StatusOK,
			`{"message":{"role":"assistant","content":"  "},"done":true}`)
		llm := newLLM(t, srv)

		_, err := llm.Call(ctx, "hi")
		assert.ErrorIs(t, err, ollama.ErrEmptyResponse)
	})

	t.Run("no messages", func(t *testing.T) {
		srv := newServer(t, &chatCapture{}, http.StatusOK)
		llm := newLLM(t, srv)

		_, err := llm.GenerateContent(ctx, nil)
		assert.ErrorIs(t, err, llms.ErrNoMessages)
	})

	t.Run("model override", func(t *testing.T) {
		capture := &chatCapture{}
		srv := newServer(t, capture, http.StatusOK,
			`{"message":{"role":"assistant","content":"ok"},"done":true}`)
		llm := newLLM(t, srv)

		_, err := llm.Call(ctx, "hi", llms.WithModel("mistral"))
		require.NoError(t, err)
		assert.Equal(t, "mistral", capture.get()["model"])
	})
}

func TestLLM_EnsureModel(t *testing.T) {
	srv := newServer(t, &chatCapture{}, http.StatusOK)
	llm := newLLM(t, srv)

	exists, err := llm.ModelExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, llm.EnsureModel(context.Background()))
}
