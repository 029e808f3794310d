package driven

import (
	"context"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// MemoryStore is the relational store the retrieval core runs against.
// Every read ANDs the filters' visibility predicate into its WHERE clause
// and excludes archived rows unless IncludeArchived is set.
type MemoryStore interface {
	// Dialect returns the SQL dialect name ("postgres", "sqlite")
	Dialect() string

	// SupportsVectorSearch reports whether the store can run vector
	// distance queries. Probed once per store and cached.
	SupportsVectorSearch(ctx context.Context) bool

	// SearchFulltext ranks rows with the store's native weighted full-text
	// rank (content > lessons > errors). Hit scores are in [0,1).
	SearchFulltext(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error)

	// SearchVector orders rows with an embedding by cosine distance to the
	// given vector. Hit scores are raw distances, smallest first.
	// Returns domain.ErrVectorUnsupported if the store has no vector operators.
	SearchVector(ctx context.Context, embedding []float32, q domain.StoreQuery) ([]*domain.MemoryHit, error)

	// SearchBasic performs a case-insensitive substring match over the
	// textual fields, newest first
	SearchBasic(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error)

	// Get retrieves a memory by ID
	Get(ctx context.Context, id string) (*domain.Memory, error)

	// Save creates or updates a memory, including its embedding
	Save(ctx context.Context, m *domain.Memory) error

	// Archive marks a memory archived at the given time
	Archive(ctx context.Context, id string, at time.Time) error

	// UpdateEmbedding replaces the stored vector of a memory
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error

	// ListMissingEmbeddings returns up to limit non-archived memories without
	// a vector whose ID sorts after afterID, ordered by ID
	ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]*domain.Memory, error)

	// AdjustFeedback adds delta to a memory's feedback score and returns
	// the new score. Returns domain.ErrNotFound for an unknown ID.
	AdjustFeedback(ctx context.Context, id string, delta int) (int, error)

	// IncrementRetrievalCount bumps the retrieval counter of each memory
	IncrementRetrievalCount(ctx context.Context, ids []string) error

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error
}
