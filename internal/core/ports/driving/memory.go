package driving

import (
	"context"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// MemoryService is the write path for memories. It keeps embeddings in step
// with content.
type MemoryService interface {
	// Create records a new memory owned by the caller
	Create(ctx context.Context, caller *domain.Caller, req domain.CreateMemoryRequest) (*domain.Memory, error)

	// Get retrieves a memory the caller may see
	Get(ctx context.Context, caller *domain.Caller, id string) (*domain.Memory, error)

	// UpdateContent patches textual fields and refreshes the embedding
	UpdateContent(ctx context.Context, caller *domain.Caller, id string, req domain.UpdateMemoryRequest) (*domain.Memory, error)

	// AdjustFeedback changes the feedback score of a memory the caller may
	// see and returns the updated memory
	AdjustFeedback(ctx context.Context, caller *domain.Caller, id string, req domain.FeedbackRequest) (*domain.Memory, error)

	// Archive hides a memory from searches that do not include archived rows
	Archive(ctx context.Context, caller *domain.Caller, id string) error
}
