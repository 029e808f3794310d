package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
)

// tierFunc runs one retrieval strategy. When ok is false the tier could not
// answer and reason names why; the ladder moves on to the next tier.
type tierFunc func(ctx context.Context, query string) (items []*domain.ScoredResult, reason string, ok bool)

// fallbackTier is one rung of a fallback ladder
type fallbackTier struct {
	name       string // timing and count key
	searchType string // search_type reported when this tier answers
	run        tierFunc
}

// fallbackLadder evaluates tiers in order until one answers
type fallbackLadder struct {
	tiers  []fallbackTier
	logger *slog.Logger
}

// run returns the first tier's answer. FallbackReason holds the reason the
// first tier gave up, so a degraded response always says why. When no tier
// answers the response is empty and carries the last tier's search type.
func (l fallbackLadder) run(ctx context.Context, query string) *domain.SearchResponse {
	meta := domain.NewSearchMetadata(query, l.tiers[0].searchType)
	resp := &domain.SearchResponse{Items: []*domain.ScoredResult{}, Metadata: meta}

	var reason string
	for i, tier := range l.tiers {
		start := time.Now()
		items, r, ok := tier.run(ctx, query)
		elapsed := time.Since(start)
		meta.RecordTiming(tier.name, elapsed)
		meta.TotalSearchTimeMS += domain.DurationMS(elapsed)

		if ok {
			meta.SearchType = tier.searchType
			meta.FallbackReason = reason
			meta.RecordCount(tier.name, len(items))
			if items != nil {
				resp.Items = items
			}
			return resp
		}

		if reason == "" {
			reason = r
		}
		metrics.SearchFallbacksTotal.WithLabelValues(r).Inc()
		if i < len(l.tiers)-1 {
			l.logger.Warn("search tier unavailable, falling back",
				"tier", tier.name,
				"next", l.tiers[i+1].name,
				"reason", r)
		} else {
			l.logger.Warn("search tier unavailable, no tiers left",
				"tier", tier.name,
				"reason", r)
		}
		meta.SearchType = tier.searchType
	}

	meta.FallbackReason = reason
	return resp
}
