package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure HostedEmbedder implements EmbeddingProvider
var _ driven.EmbeddingProvider = (*HostedEmbedder)(nil)

// Model dimensions for OpenAI embedding models
var hostedModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// HostedEmbedder implements EmbeddingProvider using an OpenAI-compatible
// embeddings API
type HostedEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewHostedEmbedder creates a new hosted embedding provider. A zero
// dimension selects the model's native size.
func NewHostedEmbedder(apiKey, model, baseURL string, dimensions int) (*HostedEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("hosted embedding API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimensions <= 0 {
		if d, ok := hostedModelDimensions[model]; ok {
			dimensions = d
		} else {
			dimensions = 1536
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &HostedEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

func (e *HostedEmbedder) Kind() domain.ProviderKind {
	return domain.ProviderHosted
}

// Embed generates an embedding for a single text
func (e *HostedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	// Only the v3 models accept a shortened output size
	if strings.HasPrefix(e.model, "text-embedding-3") && e.dimensions != hostedModelDimensions[e.model] {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, nil
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the embedding dimension size
func (e *HostedEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *HostedEmbedder) Model() string {
	return e.model
}

// HealthCheck verifies API availability via ListModels
func (e *HostedEmbedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

// Close is a no-op; the client holds no resources
func (e *HostedEmbedder) Close() error {
	return nil
}

// parseAPIError turns go-openai errors into readable messages. Transport
// failures wrap domain.ErrServiceUnavailable.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("hosted API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = strings.TrimSpace(string(reqErr.Body))
		}
		return fmt.Errorf("hosted API error %d: %s", reqErr.HTTPStatusCode, detail)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}

// extractDetail reads the "detail" field some compatible servers use for errors
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
