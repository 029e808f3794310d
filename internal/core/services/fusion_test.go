package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

func scored(m *domain.Memory, score float64, modality domain.Modality) *domain.ScoredResult {
	return &domain.ScoredResult{Memory: m, Score: score, Modality: modality}
}

func TestMinMaxNormalize(t *testing.T) {
	a, b, c := newMemory("a", "x", 0), newMemory("b", "x", 0), newMemory("c", "x", 0)

	t.Run("spread", func(t *testing.T) {
		norm := minMaxNormalize([]*domain.ScoredResult{scored(a, 0.2, ""), scored(b, 0.6, ""), scored(c, 0.4, "")})
		assert.InDelta(t, 0.0, norm["a"], 1e-9)
		assert.InDelta(t, 1.0, norm["b"], 1e-9)
		assert.InDelta(t, 0.5, norm["c"], 1e-9)
	})

	t.Run("equal positive scores", func(t *testing.T) {
		norm := minMaxNormalize([]*domain.ScoredResult{scored(a, 0.3, ""), scored(b, 0.3, "")})
		assert.Equal(t, 1.0, norm["a"])
		assert.Equal(t, 1.0, norm["b"])
	})

	t.Run("equal zero scores", func(t *testing.T) {
		norm := minMaxNormalize([]*domain.ScoredResult{scored(a, 0, "")})
		assert.Equal(t, 0.0, norm["a"])
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, minMaxNormalize(nil))
	})
}

func TestFuseResults_PureWeightedSum(t *testing.T) {
	a, b, c := newMemory("a", "x", time.Hour), newMemory("b", "x", 48*time.Hour), newMemory("c", "x", 0)
	a.FeedbackScore = 10
	b.Visibility = domain.VisibilityOrganization

	ft := []*domain.ScoredResult{scored(a, 0.8, domain.ModalityFulltext), scored(b, 0.4, domain.ModalityFulltext)}
	sem := []*domain.ScoredResult{scored(b, 0.9, domain.ModalitySemantic), scored(c, 0.5, domain.ModalitySemantic)}

	cfg := domain.DefaultFusionConfig().WithoutHeuristics()
	fused := fuseResults(ft, sem, cfg, domain.ScopeOrganization, testNow)

	require.Len(t, fused, 3)
	want := map[string]float64{
		"a": 0.7 * 1.0,         // top fulltext, absent from semantic
		"b": 0.7*0.0 + 0.3*1.0, // bottom fulltext, top semantic
		"c": 0.3 * 0.0,         // bottom semantic only
	}
	for _, r := range fused {
		assert.InDelta(t, want[r.ID()], r.Score, 1e-9, r.ID())
		assert.Equal(t, domain.ModalityHybrid, r.Modality)

		sum := 0.0
		for _, v := range r.ScoreComponents {
			sum += v
		}
		assert.InDelta(t, r.Score, sum, 1e-9, "components of %s must sum to its score", r.ID())
		assert.Len(t, r.ScoreComponents, 2)
	}
	assert.Equal(t, []string{"a", "b", "c"}, resultIDs(fused))
}

func TestFuseResults_Bounds(t *testing.T) {
	m := newMemory("a", "x", 400*24*time.Hour)
	m.FeedbackScore = -1000

	cfg := domain.DefaultFusionConfig()
	fused := fuseResults([]*domain.ScoredResult{scored(m, 0, domain.ModalityFulltext)}, nil, cfg, domain.ScopeAll, testNow)

	require.Len(t, fused, 1)
	assert.GreaterOrEqual(t, fused[0].Score, 0.0)
	assert.GreaterOrEqual(t, fused[0].ScoreComponents[domain.ComponentFeedback], -cfg.FeedbackMaxDelta)
}

func TestFuseResults_FeedbackBounded(t *testing.T) {
	m := newMemory("a", "x", 0)
	m.FeedbackScore = 1 << 20

	cfg := domain.DefaultFusionConfig().WithoutHeuristics()
	cfg.FeedbackWeight = true
	fused := fuseResults([]*domain.ScoredResult{scored(m, 0.5, domain.ModalityFulltext)}, nil, cfg, domain.ScopeAll, testNow)

	delta := fused[0].ScoreComponents[domain.ComponentFeedback]
	assert.Greater(t, delta, 0.0)
	assert.LessOrEqual(t, delta, cfg.FeedbackMaxDelta)
}

func TestFuseResults_RecencyNonIncreasing(t *testing.T) {
	cfg := domain.DefaultFusionConfig().WithoutHeuristics()
	cfg.RecencyDecay = true

	prev := 2.0
	for _, age := range []time.Duration{0, time.Hour, 24 * time.Hour, 30 * 24 * time.Hour, 365 * 24 * time.Hour} {
		m := newMemory("a", "x", age)
		fused := fuseResults([]*domain.ScoredResult{scored(m, 0.5, domain.ModalityFulltext)}, nil, cfg, domain.ScopeAll, testNow)
		assert.LessOrEqual(t, fused[0].Score, prev, "age %s", age)
		assert.LessOrEqual(t, fused[0].ScoreComponents[domain.ComponentRecency], 0.0)
		prev = fused[0].Score
	}
}

func TestFuseResults_ScopeBoost(t *testing.T) {
	org := newMemory("org", "x", 0)
	org.Visibility = domain.VisibilityOrganization
	pub := newMemory("pub", "x", 0)

	cfg := domain.DefaultFusionConfig().WithoutHeuristics()
	cfg.ScopeBoost = true
	ft := []*domain.ScoredResult{scored(org, 0.5, domain.ModalityFulltext), scored(pub, 0.5, domain.ModalityFulltext)}

	fused := fuseResults(ft, nil, cfg, domain.ScopeOrganization, testNow)

	require.Len(t, fused, 2)
	assert.Equal(t, "org", fused[0].ID())
	assert.InDelta(t, 0.7+cfg.ScopeBoostAmount, fused[0].Score, 1e-9)
	_, boosted := fused[1].ScoreComponents[domain.ComponentScope]
	assert.False(t, boosted)

	none := fuseResults(ft, nil, cfg, domain.ScopePersonal, testNow)
	assert.InDelta(t, none[0].Score, none[1].Score, 1e-9)
}

func TestSortResults_TieBreak(t *testing.T) {
	older := newMemory("a", "x", time.Hour)
	newerB := newMemory("b", "x", 0)
	newerC := newMemory("c", "x", 0)

	results := []*domain.ScoredResult{
		scored(older, 0.5, ""),
		scored(newerC, 0.5, ""),
		scored(newerB, 0.5, ""),
		scored(older.Clone(), 0.9, ""),
	}
	results[3].Memory.ID = "z"

	sortResults(results)

	assert.Equal(t, []string{"z", "b", "c", "a"}, resultIDs(results))
}

func TestFuseSingleModality(t *testing.T) {
	strong, weak := newMemory("strong", "x", 0), newMemory("weak", "x", 0)
	cfg := domain.DefaultFusionConfig().WithoutHeuristics()

	fused := fuseSingleModality([]*domain.ScoredResult{
		scored(weak, 0.27, domain.ModalityFulltext),
		scored(strong, 0.9, domain.ModalityFulltext),
	}, domain.ComponentFulltext, cfg, domain.ScopeAll, testNow)

	require.Len(t, fused, 2)
	assert.Equal(t, []string{"strong", "weak"}, resultIDs(fused))
	assert.InDelta(t, 1.0, fused[0].Score, 1e-9)
	assert.InDelta(t, 0.3, fused[1].Score, 1e-9)
	assert.Greater(t, fused[1].Score, cfg.MinCombinedScore)
	for _, r := range fused {
		assert.Equal(t, domain.ModalityHybrid, r.Modality)
		assert.Len(t, r.ScoreComponents, 1)
		assert.InDelta(t, r.Score, r.ScoreComponents[domain.ComponentFulltext], 1e-9)
	}
}

func TestMaxNormalize(t *testing.T) {
	a, b := newMemory("a", "x", 0), newMemory("b", "x", 0)

	norm := maxNormalize([]*domain.ScoredResult{scored(a, 0.4, ""), scored(b, 0.8, "")})
	assert.InDelta(t, 0.5, norm["a"], 1e-9)
	assert.InDelta(t, 1.0, norm["b"], 1e-9)

	norm = maxNormalize([]*domain.ScoredResult{scored(a, 0, ""), scored(b, -0.2, "")})
	assert.Zero(t, norm["a"])
	assert.Zero(t, norm["b"])
}
