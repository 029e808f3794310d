package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// basicMatchScore is the constant score of substring fallback results
const basicMatchScore = 0.5

// Search types reported for degraded responses
const (
	searchTypeFulltextFallback = "fulltext_fallback"
	searchTypeSemanticFallback = "semantic_fallback"
	searchTypeHybridFallback   = "hybrid_fallback"
)

// SearchConfig configures the search service
type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int

	// Timeout applies when the caller's context has no deadline
	Timeout time.Duration

	Fusion domain.FusionConfig

	// ExpansionParallelism bounds concurrent expanded-query runs
	ExpansionParallelism int

	Logger *slog.Logger

	// Now is the clock used for recency decay; defaults to time.Now
	Now func() time.Time
}

// searchService implements the SearchService interface
type searchService struct {
	store      driven.MemoryStore
	embeddings driving.EmbeddingService
	expander   driving.QueryExpander // may be nil
	cfg        SearchConfig
	logger     *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(
	store driven.MemoryStore,
	embeddings driving.EmbeddingService,
	expander driving.QueryExpander,
	cfg SearchConfig,
) driving.SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.ExpansionParallelism <= 0 {
		cfg.ExpansionParallelism = 4
	}
	if cfg.Fusion.CandidateMultiplier <= 0 {
		cfg.Fusion.CandidateMultiplier = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &searchService{
		store:      store,
		embeddings: embeddings,
		expander:   expander,
		cfg:        cfg,
		logger:     logger.With("component", "search"),
	}
}

// Search dispatches to the modality named by the request
func (s *searchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.SearchModeHybrid
	}

	switch mode {
	case domain.SearchModeFulltext:
		return s.SearchFulltext(ctx, req.Query, req.Filters, req.Limit, req.MinScore)
	case domain.SearchModeSemantic:
		return s.SearchSemantic(ctx, req.Query, req.Filters, req.Limit, req.SimilarityThreshold)
	case domain.SearchModeHybrid:
		return s.SearchHybrid(ctx, req.Query, req.Filters, req.Limit, req.Hybrid)
	default:
		return nil, domain.NewCallerError("mode", fmt.Errorf("unknown search mode %q", req.Mode))
	}
}

// SearchFulltext ranks memories by the store's weighted full-text rank
func (s *searchService) SearchFulltext(ctx context.Context, query string, filters domain.SearchFilters, limit int, minScore float64) (*domain.SearchResponse, error) {
	start := time.Now()
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, domain.NewCallerError("query", domain.ErrEmptyQuery)
	}
	if err := domain.ValidateUnitInterval("min_score", minScore); err != nil {
		return nil, err
	}
	limit = s.clampLimit(limit)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ladder := fallbackLadder{
		tiers: []fallbackTier{
			{name: string(domain.ModalityFulltext), searchType: string(domain.SearchModeFulltext), run: s.fulltextTier(filters, limit, minScore)},
			{name: string(domain.ModalityBasic), searchType: searchTypeFulltextFallback, run: s.basicTier(filters, limit)},
		},
		logger: s.logger,
	}

	resp, err := s.runWithExpansion(ctx, q, limit, nil, ladderRunner(ladder), string(domain.ModalityFulltext))
	if err != nil {
		return nil, err
	}
	s.finish(ctx, domain.SearchModeFulltext, resp, start)
	return resp, nil
}

// SearchSemantic ranks memories by cosine similarity to the query embedding.
// Any missing capability degrades to basic search.
func (s *searchService) SearchSemantic(ctx context.Context, query string, filters domain.SearchFilters, limit int, threshold float64) (*domain.SearchResponse, error) {
	start := time.Now()
	if err := domain.ValidateUnitInterval("similarity_threshold", threshold); err != nil {
		return nil, err
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return emptyResponse(query, string(domain.SearchModeSemantic)), nil
	}
	limit = s.clampLimit(limit)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ladder := fallbackLadder{
		tiers: []fallbackTier{
			{name: string(domain.ModalitySemantic), searchType: string(domain.SearchModeSemantic), run: s.semanticTier(filters, limit, threshold)},
			{name: string(domain.ModalityBasic), searchType: searchTypeSemanticFallback, run: s.basicTier(filters, limit)},
		},
		logger: s.logger,
	}

	resp, err := s.runWithExpansion(ctx, q, limit, nil, ladderRunner(ladder), string(domain.ModalitySemantic))
	if err != nil {
		return nil, err
	}
	s.finish(ctx, domain.SearchModeSemantic, resp, start)
	return resp, nil
}

// SearchHybrid runs fulltext and semantic search concurrently over the same
// expansion trace and fuses the results. A modality that fails is left out
// of the fusion; when both fail the response comes from basic search.
func (s *searchService) SearchHybrid(ctx context.Context, query string, filters domain.SearchFilters, limit int, opts domain.HybridOptions) (*domain.SearchResponse, error) {
	start := time.Now()
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"fulltext_weight", opts.FulltextWeight},
		{"semantic_weight", opts.SemanticWeight},
		{"min_combined_score", opts.MinCombinedScore},
	} {
		if err := domain.ValidateUnitInterval(f.name, f.value); err != nil {
			return nil, err
		}
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return emptyResponse(query, string(domain.SearchModeHybrid)), nil
	}
	limit = s.clampLimit(limit)

	cfg := s.cfg.Fusion
	if opts.FulltextWeight != 0 || opts.SemanticWeight != 0 {
		cfg.FulltextWeight = opts.FulltextWeight
		cfg.SemanticWeight = opts.SemanticWeight
	}
	if opts.MinCombinedScore > 0 {
		cfg.MinCombinedScore = opts.MinCombinedScore
	}
	candidates := limit * cfg.CandidateMultiplier

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	trace := s.expand(ctx, q)

	// Each side degrades on its own; neither fails the group
	var ftResp, semResp *domain.SearchResponse
	var g errgroup.Group
	g.Go(func() error {
		ftResp, _ = s.runWithExpansion(ctx, q, candidates, trace, ladderRunner(fallbackLadder{
			tiers:  []fallbackTier{{name: string(domain.ModalityFulltext), searchType: string(domain.SearchModeHybrid), run: s.fulltextTier(filters, candidates, 0)}},
			logger: s.logger,
		}), string(domain.ModalityFulltext))
		return nil
	})
	g.Go(func() error {
		semResp, _ = s.runWithExpansion(ctx, q, candidates, trace, ladderRunner(fallbackLadder{
			tiers:  []fallbackTier{{name: string(domain.ModalitySemantic), searchType: string(domain.SearchModeHybrid), run: s.semanticTier(filters, candidates, 0)}},
			logger: s.logger,
		}), string(domain.ModalitySemantic))
		return nil
	})
	_ = g.Wait()

	ftFailed, semFailed := sideFailed(ftResp), sideFailed(semResp)
	reasons := sideReasons(ftResp, semResp)

	if ftFailed && semFailed {
		s.logger.Warn("hybrid search degraded to basic", "reasons", reasons)
		resp, err := s.runWithExpansion(ctx, q, limit, trace, ladderRunner(fallbackLadder{
			tiers:  []fallbackTier{{name: string(domain.ModalityBasic), searchType: searchTypeHybridFallback, run: s.basicTier(filters, limit)}},
			logger: s.logger,
		}), string(domain.ModalityBasic))
		if err != nil {
			return nil, err
		}
		resp.Metadata.FallbackReason = reasons
		s.finish(ctx, domain.SearchModeHybrid, resp, start)
		return resp, nil
	}

	var ftItems, semItems []*domain.ScoredResult
	if !ftFailed {
		ftItems = ftResp.Items
	}
	if !semFailed {
		semItems = semResp.Items
	}

	// A lone surviving modality carries full weight; min-max would zero
	// its weakest hit and the combined threshold would drop it
	weights := &domain.HybridOptions{
		FulltextWeight:   cfg.FulltextWeight,
		SemanticWeight:   cfg.SemanticWeight,
		MinCombinedScore: cfg.MinCombinedScore,
	}
	fuseStart := time.Now()
	var fused []*domain.ScoredResult
	switch {
	case semFailed:
		fused = fuseSingleModality(ftItems, domain.ComponentFulltext, cfg, filters.Scope, s.cfg.Now())
		weights.FulltextWeight, weights.SemanticWeight = 1, 0
	case ftFailed:
		fused = fuseSingleModality(semItems, domain.ComponentSemantic, cfg, filters.Scope, s.cfg.Now())
		weights.FulltextWeight, weights.SemanticWeight = 0, 1
	default:
		fused = fuseResults(ftItems, semItems, cfg, filters.Scope, s.cfg.Now())
	}
	union := len(fused)
	if cfg.MinCombinedScore > 0 {
		kept := fused[:0]
		for _, r := range fused {
			if r.Score >= cfg.MinCombinedScore {
				kept = append(kept, r)
			}
		}
		fused = kept
	}
	postThreshold := len(fused)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	fuseElapsed := time.Since(fuseStart)

	meta := domain.NewSearchMetadata(q, string(domain.SearchModeHybrid))
	meta.FallbackReason = reasons
	meta.Expansion = trace
	meta.Weights = weights
	meta.ComponentSummary = &domain.ComponentSummary{
		FulltextCandidates: len(ftItems),
		SemanticCandidates: len(semItems),
		UnionSize:          union,
		PostThresholdSize:  postThreshold,
		Returned:           len(fused),
	}
	for _, side := range []*domain.SearchResponse{ftResp, semResp} {
		if side == nil {
			continue
		}
		for k, v := range side.Metadata.TimingsMS {
			meta.TimingsMS[k] += v
		}
		for k, v := range side.Metadata.Counts {
			meta.Counts[k] += v
		}
		meta.TotalSearchTimeMS += side.Metadata.TotalSearchTimeMS
		meta.QueriesRun += side.Metadata.QueriesRun
		if strings.HasSuffix(side.Metadata.SearchType, expandedSuffix) && !strings.HasSuffix(meta.SearchType, expandedSuffix) {
			meta.SearchType += expandedSuffix
		}
	}
	meta.RecordTiming("fusion", fuseElapsed)
	meta.TotalSearchTimeMS += domain.DurationMS(fuseElapsed)

	resp := &domain.SearchResponse{Items: fused, Metadata: meta}
	s.finish(ctx, domain.SearchModeHybrid, resp, start)
	return resp, nil
}

// fulltextTier queries the store's weighted full-text rank
func (s *searchService) fulltextTier(filters domain.SearchFilters, limit int, minScore float64) tierFunc {
	return func(ctx context.Context, query string) ([]*domain.ScoredResult, string, bool) {
		hits, err := s.store.SearchFulltext(ctx, query, domain.StoreQuery{Filters: filters, Limit: limit})
		if err != nil {
			s.logger.Warn("fulltext query failed", "query", query, "error", err)
			return nil, queryErrorReason(err, domain.ReasonFulltextQueryError), false
		}

		items := make([]*domain.ScoredResult, 0, len(hits))
		for _, h := range hits {
			// Hits arrive best first, so filtering before the store's cap
			// and after it select the same rows
			if minScore > 0 && h.Score < minScore {
				continue
			}
			explanation := "lexical match"
			if len(h.MatchedFields) > 0 {
				explanation = "Matched in " + strings.Join(h.MatchedFields, ", ")
			}
			items = append(items, &domain.ScoredResult{
				Memory:          h.Memory,
				Score:           h.Score,
				Modality:        domain.ModalityFulltext,
				Explanation:     explanation,
				ScoreComponents: map[string]float64{domain.ComponentFulltext: h.Score},
			})
		}
		return items, "", true
	}
}

// semanticTier embeds the query and ranks by cosine similarity. Each
// missing capability is reported with its own reason.
func (s *searchService) semanticTier(filters domain.SearchFilters, limit int, threshold float64) tierFunc {
	return func(ctx context.Context, query string) ([]*domain.ScoredResult, string, bool) {
		if !s.embeddings.Enabled() {
			return nil, domain.ReasonEmbeddingDisabled, false
		}

		vec, err := s.embeddings.EmbedText(ctx, query)
		if err != nil || vec == nil {
			s.logger.Debug("query embedding unavailable", "query", query, "error", err)
			return nil, domain.ReasonEmbeddingUnavailable, false
		}

		if !s.store.SupportsVectorSearch(ctx) {
			return nil, domain.ReasonVectorUnsupported, false
		}

		hits, err := s.store.SearchVector(ctx, vec, domain.StoreQuery{Filters: filters, Limit: limit})
		if errors.Is(err, domain.ErrVectorUnsupported) {
			return nil, domain.ReasonVectorUnsupported, false
		}
		if err != nil {
			s.logger.Warn("semantic query failed", "query", query, "error", err)
			return nil, queryErrorReason(err, domain.ReasonSemanticQueryError), false
		}

		items := make([]*domain.ScoredResult, 0, len(hits))
		for _, h := range hits {
			similarity := 1 - clamp01(h.Score)
			if threshold > 0 && similarity < threshold {
				continue
			}
			items = append(items, &domain.ScoredResult{
				Memory:          h.Memory,
				Score:           similarity,
				Modality:        domain.ModalitySemantic,
				Explanation:     fmt.Sprintf("Cosine similarity %.2f", similarity),
				ScoreComponents: map[string]float64{domain.ComponentSemantic: similarity},
			})
		}
		sortResults(items)
		return items, "", true
	}
}

// basicTier is the substring fallback every ladder ends with
func (s *searchService) basicTier(filters domain.SearchFilters, limit int) tierFunc {
	return func(ctx context.Context, query string) ([]*domain.ScoredResult, string, bool) {
		hits, err := s.store.SearchBasic(ctx, query, domain.StoreQuery{Filters: filters, Limit: limit})
		if err != nil {
			s.logger.Warn("basic query failed", "query", query, "error", err)
			return nil, queryErrorReason(err, domain.ReasonBasicQueryError), false
		}

		items := make([]*domain.ScoredResult, 0, len(hits))
		for _, h := range hits {
			items = append(items, &domain.ScoredResult{
				Memory:      h.Memory,
				Score:       basicMatchScore,
				Modality:    domain.ModalityBasic,
				Explanation: "Basic search",
			})
		}
		return items, "", true
	}
}

func (s *searchService) expand(ctx context.Context, query string) *domain.ExpansionTrace {
	if s.expander == nil {
		trace := domain.NewExpansionTrace(query)
		trace.DisabledReason = domain.ExpansionDisabledReason
		return trace
	}
	return s.expander.Expand(ctx, query)
}

// finish records metrics and retrieval counts for a completed search
func (s *searchService) finish(ctx context.Context, mode domain.SearchMode, resp *domain.SearchResponse, start time.Time) {
	metrics.SearchRequestsTotal.WithLabelValues(string(mode), resp.Metadata.SearchType).Inc()
	metrics.SearchDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	if len(resp.Items) == 0 {
		return
	}
	ids := make([]string, len(resp.Items))
	for i, r := range resp.Items {
		ids[i] = r.ID()
	}

	// The request deadline may already be spent; counting is best effort
	countCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.store.IncrementRetrievalCount(countCtx, ids); err != nil {
		s.logger.Warn("failed to increment retrieval counts", "error", err)
	}
}

func (s *searchService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

func (s *searchService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func ladderRunner(l fallbackLadder) searchRunner {
	return func(ctx context.Context, query string) (*domain.SearchResponse, error) {
		return l.run(ctx, query), nil
	}
}

func emptyResponse(query, searchType string) *domain.SearchResponse {
	meta := domain.NewSearchMetadata(query, searchType)
	meta.FallbackReason = domain.ReasonEmptyQuery
	return &domain.SearchResponse{Items: []*domain.ScoredResult{}, Metadata: meta}
}

// sideFailed reports whether a hybrid modality produced nothing because its
// tier could not run
func sideFailed(resp *domain.SearchResponse) bool {
	return resp == nil || (resp.Metadata.FallbackReason != "" && len(resp.Items) == 0)
}

func sideReasons(sides ...*domain.SearchResponse) string {
	var reasons []string
	for _, side := range sides {
		if side != nil && side.Metadata.FallbackReason != "" {
			reasons = append(reasons, side.Metadata.FallbackReason)
		}
	}
	return strings.Join(reasons, ",")
}

func queryErrorReason(err error, fallback string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	return fallback
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
