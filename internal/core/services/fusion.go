package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// fuseResults combines fulltext and semantic results into one hybrid
// ranking. Each modality's scores are min-max normalized within its own
// returned set; a memory missing from a modality gets 0 for it.
// Results are sorted but neither thresholded nor capped.
func fuseResults(fulltext, semantic []*domain.ScoredResult, cfg domain.FusionConfig, scope domain.Scope, now time.Time) []*domain.ScoredResult {
	ftNorm := minMaxNormalize(fulltext)
	semNorm := minMaxNormalize(semantic)

	// Union in first-seen order; ordering is settled by the sort below
	byID := make(map[string]*domain.ScoredResult, len(fulltext)+len(semantic))
	var order []string
	for _, set := range [][]*domain.ScoredResult{fulltext, semantic} {
		for _, r := range set {
			if _, ok := byID[r.ID()]; !ok {
				byID[r.ID()] = r
				order = append(order, r.ID())
			}
		}
	}

	fused := make([]*domain.ScoredResult, 0, len(order))
	for _, id := range order {
		components := map[string]float64{
			domain.ComponentFulltext: cfg.FulltextWeight * ftNorm[id],
			domain.ComponentSemantic: cfg.SemanticWeight * semNorm[id],
		}
		note := fmt.Sprintf("fulltext %.2f + semantic %.2f", components[domain.ComponentFulltext], components[domain.ComponentSemantic])
		fused = append(fused, applyHeuristics(byID[id], components, note, cfg, scope, now))
	}

	sortResults(fused)
	return fused
}

// fuseSingleModality ranks the results of the only modality that completed.
// Scores are divided by the set's maximum and carry full weight, so every
// real hit keeps a nonzero base score. Only the surviving component is
// recorded.
func fuseSingleModality(results []*domain.ScoredResult, component string, cfg domain.FusionConfig, scope domain.Scope, now time.Time) []*domain.ScoredResult {
	norm := maxNormalize(results)

	fused := make([]*domain.ScoredResult, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if seen[r.ID()] {
			continue
		}
		seen[r.ID()] = true
		components := map[string]float64{component: norm[r.ID()]}
		note := fmt.Sprintf("%s only %.2f", component, norm[r.ID()])
		fused = append(fused, applyHeuristics(r, components, note, cfg, scope, now))
	}

	sortResults(fused)
	return fused
}

// applyHeuristics adds the recency, scope and feedback deltas to the base
// components and builds the hybrid result
func applyHeuristics(src *domain.ScoredResult, components map[string]float64, note string, cfg domain.FusionConfig, scope domain.Scope, now time.Time) *domain.ScoredResult {
	score := 0.0
	for _, v := range components {
		score += v
	}
	notes := []string{note}

	if cfg.RecencyDecay && cfg.RecencyHalfLife > 0 {
		delta := score*recencyMultiplier(src.Memory.CreatedAt, now, cfg) - score
		components[domain.ComponentRecency] = delta
		score += delta
		notes = append(notes, fmt.Sprintf("recency %+.3f", delta))
	}

	if cfg.ScopeBoost && scopeMatches(src.Memory, scope) {
		components[domain.ComponentScope] = cfg.ScopeBoostAmount
		score += cfg.ScopeBoostAmount
		notes = append(notes, fmt.Sprintf("%s scope %+.3f", scope, cfg.ScopeBoostAmount))
	}

	if cfg.FeedbackWeight && cfg.FeedbackScale > 0 && src.Memory.FeedbackScore != 0 {
		delta := cfg.FeedbackMaxDelta * math.Tanh(float64(src.Memory.FeedbackScore)/cfg.FeedbackScale)
		components[domain.ComponentFeedback] = delta
		score += delta
		notes = append(notes, fmt.Sprintf("feedback %+.3f", delta))
	}

	return &domain.ScoredResult{
		Memory:          src.Memory,
		Score:           math.Max(0, score),
		Modality:        domain.ModalityHybrid,
		Explanation:     "Hybrid: " + strings.Join(notes, ", "),
		ScoreComponents: components,
		MatchedQuery:    src.MatchedQuery,
	}
}

// maxNormalize divides scores by the set's maximum. Negative scores and
// sets whose maximum is not positive map to 0.
func maxNormalize(results []*domain.ScoredResult) map[string]float64 {
	norm := make(map[string]float64, len(results))
	hi := 0.0
	for _, r := range results {
		hi = math.Max(hi, r.Score)
	}
	for _, r := range results {
		if hi > 0 {
			norm[r.ID()] = math.Max(0, r.Score) / hi
		} else {
			norm[r.ID()] = 0
		}
	}
	return norm
}

// minMaxNormalize maps scores into [0,1] within the set. When every score
// is equal, positive scores map to 1 and the rest to 0.
func minMaxNormalize(results []*domain.ScoredResult) map[string]float64 {
	norm := make(map[string]float64, len(results))
	if len(results) == 0 {
		return norm
	}

	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		lo = math.Min(lo, r.Score)
		hi = math.Max(hi, r.Score)
	}

	for _, r := range results {
		switch {
		case hi == lo && r.Score > 0:
			norm[r.ID()] = 1
		case hi == lo:
			norm[r.ID()] = 0
		default:
			norm[r.ID()] = (r.Score - lo) / (hi - lo)
		}
	}
	return norm
}

// recencyMultiplier is (1-w) + w * 0.5^(age/halfLife), in [1-w, 1] and
// non-increasing in age
func recencyMultiplier(createdAt, now time.Time, cfg domain.FusionConfig) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	w := math.Min(math.Max(cfg.RecencyWeight, 0), 1)
	decay := math.Pow(0.5, float64(age)/float64(cfg.RecencyHalfLife))
	return (1 - w) + w*decay
}

func scopeMatches(m *domain.Memory, scope domain.Scope) bool {
	switch scope {
	case domain.ScopeOrganization, domain.ScopePublic:
		return string(m.Visibility) == string(scope)
	default:
		return false
	}
}

// sortResults orders by score, then newer first, then ID
func sortResults(results []*domain.ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
		return a.ID() < b.ID()
	})
}
