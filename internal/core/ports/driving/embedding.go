package driving

import (
	"context"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// EmbeddingService computes and persists memory vectors
type EmbeddingService interface {
	// Enabled reports whether a real embedding provider is configured
	Enabled() bool

	// EmbedText embeds trimmed text. Blank text returns nil without
	// calling the provider.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// AttachEmbedding computes the memory's vector in place. Provider
	// failures leave the previous value untouched and are not returned.
	// Reports whether the embedding changed.
	AttachEmbedding(ctx context.Context, m *domain.Memory, saveEmpty bool) bool

	// BackfillMissingEmbeddings embeds stored memories that lack a vector
	// and returns how many were updated
	BackfillMissingEmbeddings(ctx context.Context, batchSize int) (int, error)
}
