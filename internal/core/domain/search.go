package domain

import "time"

// SearchMode determines the retrieval strategy requested by the caller
type SearchMode string

const (
	SearchModeFulltext SearchMode = "fulltext" // Store-native lexical ranking
	SearchModeSemantic SearchMode = "semantic" // Vector similarity
	SearchModeHybrid   SearchMode = "hybrid"   // Weighted fusion of both (default)
)

// IsValid returns true if this is a known search mode
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeFulltext, SearchModeSemantic, SearchModeHybrid:
		return true
	default:
		return false
	}
}

// Modality labels which retrieval strategy actually produced a result.
// A degraded result always carries its true modality.
type Modality string

const (
	ModalityFulltext Modality = "fulltext"
	ModalitySemantic Modality = "semantic"
	ModalityHybrid   Modality = "hybrid"
	ModalityBasic    Modality = "basic"
)

// Scope is the caller's active visibility scope, used by the scope boost
type Scope string

const (
	ScopeAll          Scope = ""
	ScopePersonal     Scope = "personal"
	ScopeOrganization Scope = "organization"
	ScopePublic       Scope = "public"
)

// Fallback reasons recorded in SearchMetadata.FallbackReason
const (
	ReasonEmbeddingDisabled    = "embedding_provider_disabled"
	ReasonEmbeddingUnavailable = "query_embedding_unavailable"
	ReasonVectorUnsupported    = "vector_search_unsupported"
	ReasonSemanticQueryError   = "semantic_query_error"
	ReasonFulltextQueryError   = "fulltext_query_error"
	ReasonBasicQueryError      = "basic_query_error"
	ReasonEmptyQuery           = "empty_query"
	ReasonTimeout              = "timeout"
)

// SearchFilters narrows a search
type SearchFilters struct {
	AgentID         string `json:"agent_id,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	Scope           Scope  `json:"scope,omitempty"`

	// Visibility is injected by the access-control collaborator; nil means
	// unrestricted and is reserved for trusted in-process callers.
	Visibility VisibilityPredicate `json:"-"`
}

// StoreQuery is what the search core hands to the store for one retrieval
type StoreQuery struct {
	Filters SearchFilters
	Limit   int
}

// SearchRequest is the public search API input
type SearchRequest struct {
	Mode    SearchMode    `json:"mode"`
	Query   string        `json:"query"`
	Filters SearchFilters `json:"filters"`
	Limit   int           `json:"limit"`

	// Fulltext
	MinScore float64 `json:"min_score,omitempty"`

	// Semantic
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`

	// Hybrid
	Hybrid HybridOptions `json:"hybrid"`
}

// HybridOptions are the per-call knobs for hybrid search.
// Zero weights select the configured defaults.
type HybridOptions struct {
	FulltextWeight   float64 `json:"fulltext_weight"`
	SemanticWeight   float64 `json:"semantic_weight"`
	MinCombinedScore float64 `json:"min_combined_score"`
}

// ScoredResult is a read-only projection of a memory with its ranking.
// Score is modality-relative and only comparable across modalities after fusion.
type ScoredResult struct {
	Memory          *Memory            `json:"memory"`
	Score           float64            `json:"score"`
	Modality        Modality           `json:"modality"`
	Explanation     string             `json:"explanation"`
	ScoreComponents map[string]float64 `json:"score_components,omitempty"`
	MatchedQuery    string             `json:"matched_query,omitempty"` // Set when an expanded query produced the hit
}

// ID returns the identifier of the underlying memory
func (r *ScoredResult) ID() string {
	return r.Memory.ID
}

// ComponentSummary reports candidate counts at each hybrid fusion stage
type ComponentSummary struct {
	FulltextCandidates int `json:"fulltext_candidates"`
	SemanticCandidates int `json:"semantic_candidates"`
	UnionSize          int `json:"union_size"`
	PostThresholdSize  int `json:"post_threshold_size"`
	Returned           int `json:"returned"`
}

// SearchMetadata holds per-call diagnostics. It is transient and never persisted.
type SearchMetadata struct {
	Query             string             `json:"query"`
	SearchType        string             `json:"search_type"`
	FallbackReason    string             `json:"fallback_reason,omitempty"`
	TotalSearchTimeMS float64            `json:"total_search_time_ms"`
	TimingsMS         map[string]float64 `json:"timings_ms,omitempty"`
	Counts            map[string]int     `json:"counts,omitempty"`
	Weights           *HybridOptions     `json:"weights,omitempty"`
	ComponentSummary  *ComponentSummary  `json:"component_summary,omitempty"`
	Expansion         *ExpansionTrace    `json:"expansion,omitempty"`
	QueriesRun        int                `json:"queries_run,omitempty"`
}

// NewSearchMetadata creates metadata with initialized maps
func NewSearchMetadata(query, searchType string) *SearchMetadata {
	return &SearchMetadata{
		Query:      query,
		SearchType: searchType,
		TimingsMS:  make(map[string]float64),
		Counts:     make(map[string]int),
	}
}

// RecordTiming adds elapsed time for a named stage
func (m *SearchMetadata) RecordTiming(stage string, d time.Duration) {
	if m.TimingsMS == nil {
		m.TimingsMS = make(map[string]float64)
	}
	m.TimingsMS[stage] += durationMS(d)
}

// RecordCount adds a result count for a named stage
func (m *SearchMetadata) RecordCount(stage string, n int) {
	if m.Counts == nil {
		m.Counts = make(map[string]int)
	}
	m.Counts[stage] += n
}

// SearchResponse is the public search API output
type SearchResponse struct {
	Items    []*ScoredResult `json:"items"`
	Metadata *SearchMetadata `json:"metadata"`
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// DurationMS converts a duration to fractional milliseconds
func DurationMS(d time.Duration) float64 {
	return durationMS(d)
}
