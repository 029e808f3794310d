package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

func TestDisabledProviders(t *testing.T) {
	ctx := context.Background()

	_, err := NewDisabledEmbedder().Embed(ctx, "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingDisabled)

	_, err = NewDisabledGenerator().Generate(ctx, "hello")
	assert.ErrorIs(t, err, domain.ErrGenerationDisabled)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, 384, e.Dimensions())

	a, err := e.Embed(context.Background(), "Latency dashboards")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "latency   DASHBOARDS!")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	blank, err := e.Embed(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestLocalEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello world", req.Input)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer server.Close()

	e, err := NewLocalEmbedder(server.URL, "nomic-embed-text", 3, time.Second)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, domain.ProviderLocal, e.Kind())
}

func TestLocalEmbedder_LegacyFallback(t *testing.T) {
	var embedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			embedCalls.Add(1)
			http.NotFound(w, r)
		case "/api/embeddings":
			var req legacyEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hello", req.Prompt)
			json.NewEncoder(w).Encode(legacyEmbedResponse{Embedding: []float32{1, 0}})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	e, err := NewLocalEmbedder(server.URL, "m", 2, time.Second)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		vec, err := e.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, vec)
	}
	assert.Equal(t, int32(1), embedCalls.Load(), "batch endpoint is not retried once missing")
}

func TestLocalEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	e, err := NewLocalEmbedder(server.URL, "m", 2, time.Second)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestLocalEmbedder_EmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{}})
	}))
	defer server.Close()

	e, err := NewLocalEmbedder(server.URL, "m", 2, time.Second)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestLocalEmbedder_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	e, err := NewLocalEmbedder(url, "m", 2, time.Second)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, e.HealthCheck(context.Background()), domain.ErrServiceUnavailable)
}

type hostedEmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func TestHostedEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(256), body["dimensions"])

		resp := hostedEmbeddingResponse{Object: "list", Model: "text-embedding-3-small"}
		resp.Data = append(resp.Data, struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{Object: "embedding", Embedding: []float32{0.5, 0.5}})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e, err := NewHostedEmbedder("test-key", "text-embedding-3-small", server.URL, 256)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Equal(t, 256, e.Dimensions())
}

func TestHostedEmbedder_DefaultDimensions(t *testing.T) {
	e, err := NewHostedEmbedder("k", "text-embedding-3-large", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimensions())

	_, err = NewHostedEmbedder("", "text-embedding-3-large", "", 0)
	assert.Error(t, err)
}

func TestHostedEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	e, err := NewHostedEmbedder("bad", "text-embedding-3-small", server.URL, 0)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad key")
}

func TestHostedGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"fast\nquick"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	g, err := NewHostedGenerator("test-key", "gpt-test", server.URL)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "rewrite: speed")
	require.NoError(t, err)
	assert.Equal(t, "fast\nquick", out)
}

func TestLocalGenerator_New(t *testing.T) {
	g, err := NewLocalGenerator("http://localhost:11434/", "llama3.2", 0)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", g.Model())
	assert.Equal(t, domain.ProviderLocal, g.Kind())

	_, err = NewLocalGenerator("", "", 0)
	assert.Error(t, err)
}

func TestLocalGenerator_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	g, err := NewLocalGenerator(server.URL, "llama3.2", time.Second)
	require.NoError(t, err)
	assert.NoError(t, g.Ping(context.Background()))
}
