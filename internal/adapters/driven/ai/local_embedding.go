package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure LocalEmbedder implements EmbeddingProvider
var _ driven.EmbeddingProvider = (*LocalEmbedder)(nil)

// errEndpointMissing marks a 404 from the batch endpoint
var errEndpointMissing = errors.New("endpoint not found")

// LocalEmbedder implements EmbeddingProvider against a self-hosted model
// server speaking the Ollama API. It prefers /api/embed and falls back to
// the older /api/embeddings when the server does not have it.
type LocalEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client

	// set once /api/embed has returned 404
	legacyOnly atomic.Bool
}

// NewLocalEmbedder creates a new local embedding provider
func NewLocalEmbedder(baseURL, model string, dimensions int, timeout time.Duration) (*LocalEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("local embedding model is required")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LocalEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// embedRequest is the body for /api/embed
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// legacyEmbedRequest is the body for /api/embeddings
type legacyEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type legacyEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func (e *LocalEmbedder) Kind() domain.ProviderKind {
	return domain.ProviderLocal
}

// Embed generates an embedding for a single text. An empty vector from the
// server is returned as nil.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.legacyOnly.Load() {
		var resp embedResponse
		err := e.post(ctx, "/api/embed", embedRequest{Model: e.model, Input: text}, &resp)
		switch {
		case err == nil:
			if resp.Error != "" {
				return nil, fmt.Errorf("local embedding error: %s", resp.Error)
			}
			if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
				return nil, nil
			}
			return resp.Embeddings[0], nil
		case errors.Is(err, errEndpointMissing):
			e.legacyOnly.Store(true)
		default:
			return nil, err
		}
	}

	var resp legacyEmbedResponse
	if err := e.post(ctx, "/api/embeddings", legacyEmbedRequest{Model: e.model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("local embedding error: %s", resp.Error)
	}
	if len(resp.Embedding) == 0 {
		return nil, nil
	}
	return resp.Embedding, nil
}

// Dimensions returns the configured embedding dimension size
func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *LocalEmbedder) Model() string {
	return e.model
}

// HealthCheck verifies the model server is reachable
func (e *LocalEmbedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: model server returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections
func (e *LocalEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// post sends a JSON request and decodes the JSON response into out
func (e *LocalEmbedder) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && path == "/api/embed" {
		return errEndpointMissing
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local embedding server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
