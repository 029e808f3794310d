package driven

import (
	"context"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// EmbeddingProvider turns text into a fixed-length vector
type EmbeddingProvider interface {
	// Kind returns which provider variant this is
	Kind() domain.ProviderKind

	// Embed generates an embedding for a single text.
	// The disabled provider returns domain.ErrEmbeddingDisabled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the provider is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the provider
	Close() error
}
