package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

	return body
}

func TestClient_CreateEmbedding(t *testing.T) {
	t.Run("returns vector", func(t *testing.T) {
		var gotBody map[string]any

		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			gotBody = decodeBody(t, r)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","model":"all-MiniLM-L6-v2","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],"usage":{"prompt_tokens":3,"total_tokens":3}}`))
		})

		c := NewClient("key", WithBaseURL(srv.URL+"/v1"), WithEmbeddingModel("all-MiniLM-L6-v2"))

		vec, err := c.CreateEmbedding(context.Background(), "  quiet room  ")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, -0.25, 1}, vec)

		assert.Equal(t, "quiet room", gotBody["input"])
		assert.Equal(t, "all-MiniLM-L6-v2", gotBody["model"])
		_, hasDims := gotBody["dimensions"]
		assert.False(t, hasDims, "dimensions must not be sent when unset")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1,2]}]}`))
		})

		c := NewClient("key", WithBaseURL(srv.URL+"/v1"), WithDimensions(3))

		_, err := c.CreateEmbedding(context.Background(), "q")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("empty data", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[]}`))
		})

		c := NewClient("key", WithBaseURL(srv.URL+"/v1"))

		_, err := c.CreateEmbedding(context.Background(), "q")
		assert.ErrorIs(t, err, ErrNoEmbeddingInResponse)
	})

	t.Run("empty input", func(t *testing.T) {
		c := NewClient("key")

		_, err := c.CreateEmbedding(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestClient_Generate(t *testing.T) {
	t.Run("returns first choice", func(t *testing.T) {
		var gotBody map[string]any

		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

			gotBody = decodeBody(t, r)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gemini-2.0-flash","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Quiet and close to campus."}}]}`))
		})

		c := NewClient("key", WithBaseURL(srv.URL+"/v1beta/openai"), WithMaxTokens(150))

		text, err := c.Generate(context.Background(), "why?")
		require.NoError(t, err)
		assert.Equal(t, "Quiet and close to campus.", text)

		assert.Equal(t, DefaultChatModel, gotBody["model"])
		assert.InDelta(t, 150, gotBody["max_tokens"], 0)

		msgs, ok := gotBody["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 1)

		msg, ok := msgs[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "user", msg["role"])
		assert.Equal(t, "why?", msg["content"])
	})

	t.Run("no choices", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
		})

		c := NewClient("key", WithBaseURL(srv.URL+"/v1"))

		_, err := c.Generate(context.Background(), "why?")
		assert.ErrorIs(t, err, ErrNoChoices)
	})

	t.Run("server error is not retried by default", func(t *testing.T) {
		var calls atomic.Int32

		srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
		})

		c := NewClient("key", WithBaseURL(srv.URL+"/v1"))

		_, err := c.Generate(context.Background(), "why?")
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
