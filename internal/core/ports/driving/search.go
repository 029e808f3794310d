package driving

import (
	"context"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// SearchService retrieves memories by relevance
type SearchService interface {
	// Search dispatches to the modality named by req.Mode
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)

	// SearchFulltext ranks by the store's weighted full-text rank.
	// An empty query is a CallerError.
	SearchFulltext(ctx context.Context, query string, filters domain.SearchFilters, limit int, minScore float64) (*domain.SearchResponse, error)

	// SearchSemantic ranks by cosine similarity, falling back to basic
	// search when embeddings or vector operators are unavailable
	SearchSemantic(ctx context.Context, query string, filters domain.SearchFilters, limit int, threshold float64) (*domain.SearchResponse, error)

	// SearchHybrid fuses fulltext and semantic results with weighted min-max
	// normalization. Zero weights select the configured defaults.
	SearchHybrid(ctx context.Context, query string, filters domain.SearchFilters, limit int, opts domain.HybridOptions) (*domain.SearchResponse, error)
}

// QueryExpander produces variants of a query to improve recall
type QueryExpander interface {
	// Expand returns the trace for a query. It never fails; strategy
	// errors are recorded in the trace.
	Expand(ctx context.Context, query string) *domain.ExpansionTrace

	// Enabled reports whether expansion is switched on
	Enabled() bool
}
