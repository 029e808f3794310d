package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// searchRunner runs one modality for a single query string
type searchRunner func(ctx context.Context, query string) (*domain.SearchResponse, error)

const expandedSuffix = "_expanded"

// runWithExpansion runs base, then each expanded query, and merges the
// results by memory ID keeping the best score. A nil trace is computed from
// the expander; hybrid search passes one trace to both modalities.
// label names the modality in logs.
func (s *searchService) runWithExpansion(
	ctx context.Context,
	base string,
	limit int,
	trace *domain.ExpansionTrace,
	runner searchRunner,
	label string,
) (*domain.SearchResponse, error) {
	baseResp, err := runner(ctx, base)
	if err != nil {
		return nil, err
	}

	if trace == nil {
		trace = s.expand(ctx, base)
	}

	meta := baseResp.Metadata
	meta.Expansion = trace
	meta.QueriesRun = 1
	if len(trace.ExpandedQueries) == 0 {
		return baseResp, nil
	}

	// Results are slotted by trace position so the merge is deterministic
	// regardless of completion order
	expanded := make([]*domain.SearchResponse, len(trace.ExpandedQueries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ExpansionParallelism)
	for i, q := range trace.ExpandedQueries {
		i, q := i, q
		g.Go(func() error {
			resp, err := runner(gctx, q)
			if err != nil {
				s.logger.Warn("expanded query failed",
					"modality", label,
					"query", q,
					"error", err)
				return nil
			}
			expanded[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	merged := newResultMerger()
	merged.add(baseResp.Items, "")

	contributed := false
	for i, resp := range expanded {
		if resp == nil {
			continue
		}
		meta.QueriesRun++
		meta.TotalSearchTimeMS += resp.Metadata.TotalSearchTimeMS
		for k, v := range resp.Metadata.TimingsMS {
			meta.TimingsMS[k] += v
		}
		for k, v := range resp.Metadata.Counts {
			meta.Counts[k] += v
		}
		if len(resp.Items) > 0 {
			contributed = true
			merged.add(resp.Items, trace.ExpandedQueries[i])
		}
	}

	if contributed {
		meta.SearchType += expandedSuffix
	}

	s.logger.Debug("expansion merged",
		"modality", label,
		"queries", meta.QueriesRun,
		"contributed", contributed)

	return &domain.SearchResponse{Items: merged.results(limit), Metadata: meta}, nil
}

// resultMerger keeps the best result per memory ID
type resultMerger struct {
	byID  map[string]*domain.ScoredResult
	order []string
	// raw explanation length before expansion labelling
	richness map[string]int
}

func newResultMerger() *resultMerger {
	return &resultMerger{
		byID:     make(map[string]*domain.ScoredResult),
		richness: make(map[string]int),
	}
}

// add merges results produced by query; a non-empty query labels them as
// coming from that expansion. Higher scores win; on equal scores the
// richer explanation wins and earlier results win remaining ties.
func (m *resultMerger) add(items []*domain.ScoredResult, query string) {
	for _, r := range items {
		id := r.ID()
		rich := len(r.Explanation)
		cur, ok := m.byID[id]
		if ok && (r.Score < cur.Score || (r.Score == cur.Score && rich <= m.richness[id])) {
			continue
		}

		out := *r
		if query != "" {
			out.MatchedQuery = query
			out.Explanation = fmt.Sprintf("%s (expanded query %q)", r.Explanation, query)
		}
		if !ok {
			m.order = append(m.order, id)
		}
		m.byID[id] = &out
		m.richness[id] = rich
	}
}

func (m *resultMerger) results(limit int) []*domain.ScoredResult {
	out := make([]*domain.ScoredResult, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	sortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
