package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
)

// Seed stores the dataset's memories, computing embeddings when a provider
// is enabled. Timestamps default to now.
func Seed(ctx context.Context, store driven.MemoryStore, embeddings driving.EmbeddingService, memories []*domain.Memory) error {
	now := time.Now().UTC()
	for _, m := range memories {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}
		if embeddings != nil && embeddings.Enabled() {
			embeddings.AttachEmbedding(ctx, m, false)
		}
		if err := store.Save(ctx, m); err != nil {
			return fmt.Errorf("seed memory %s: %w", m.ID, err)
		}
	}
	return nil
}
