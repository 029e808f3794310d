package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven/mocks"
)

func newTestExpander(t *testing.T, settings domain.ExpansionSettings, gen *mocks.MockTextGenerator, synonyms map[string][]string) *queryExpansionEngine {
	t.Helper()
	services := createTestServices(t, nil, nil)
	if gen != nil {
		services.SetTextGenerator(gen)
	}
	return NewQueryExpansionEngine(QueryExpansionConfig{
		Settings: settings,
		Synonyms: synonyms,
		Cache:    mocks.NewMockExpansionCache(),
	}, services).(*queryExpansionEngine)
}

func TestExpand_Disabled(t *testing.T) {
	e := newTestExpander(t, domain.ExpansionSettings{Enabled: false}, nil, nil)

	trace := e.Expand(context.Background(), "speed")

	assert.Equal(t, domain.ExpansionDisabledReason, trace.DisabledReason)
	assert.Empty(t, trace.ExpandedQueries)
	assert.False(t, trace.ExpansionApplied)
	assert.False(t, e.Enabled())
}

func TestExpand_EmptyQuery(t *testing.T) {
	e := newTestExpander(t, domain.DefaultExpansionSettings(), nil, nil)

	trace := e.Expand(context.Background(), "   ")

	assert.Empty(t, trace.ExpandedQueries)
	assert.Empty(t, trace.Steps)
	assert.Empty(t, trace.DisabledReason)
}

func TestExpand_Synonyms(t *testing.T) {
	e := newTestExpander(t, domain.DefaultExpansionSettings(), nil, nil)

	trace := e.Expand(context.Background(), "speed")

	assert.Equal(t, []string{"performance", "latency"}, trace.ExpandedQueries)
	assert.True(t, trace.ExpansionApplied)
	require.Len(t, trace.Steps, 1)
	assert.Equal(t, domain.ExpansionStepSynonyms, trace.Steps[0].Step)
	assert.Equal(t, "speed→performance, speed→latency", trace.Steps[0].Detail)
}

func TestExpand_SynonymsWholeWordOnly(t *testing.T) {
	e := newTestExpander(t, domain.ExpansionSettings{Enabled: true, Synonyms: true, MaxExpansions: 5},
		nil, map[string][]string{"db": {"database"}})

	assert.Empty(t, e.Expand(context.Background(), "dbadmin rotation").ExpandedQueries)
	assert.Equal(t, []string{"rotate database creds"},
		e.Expand(context.Background(), "rotate DB creds").ExpandedQueries)
}

func TestExpand_SynonymsOneSubstitutionAtATime(t *testing.T) {
	e := newTestExpander(t, domain.ExpansionSettings{Enabled: true, Synonyms: true, MaxExpansions: 10},
		nil, map[string][]string{"slow": {"laggy"}, "deploy": {"release"}})

	trace := e.Expand(context.Background(), "slow deploy")

	// Terms are visited in query order, never combined
	assert.Equal(t, []string{"laggy deploy", "slow release"}, trace.ExpandedQueries)
}

func TestExpand_Stemming(t *testing.T) {
	e := newTestExpander(t, domain.ExpansionSettings{Enabled: true, Stemming: true, MaxExpansions: 4}, nil, nil)

	trace := e.Expand(context.Background(), "Tuning notes")

	require.Len(t, trace.ExpandedQueries, 1)
	assert.Equal(t, "tune note", trace.ExpandedQueries[0])
	require.Len(t, trace.Steps, 1)
	assert.Equal(t, domain.ExpansionStepStemming, trace.Steps[0].Step)
	assert.Contains(t, trace.Steps[0].Detail, "tuning→tune")
}

func TestExpand_CapInvariant(t *testing.T) {
	gen := mocks.NewMockTextGenerator("quick fix\nfast patch\nhotfix steps")
	settings := domain.ExpansionSettings{
		Enabled: true, Stemming: true, Synonyms: true, LLMRewrite: true,
		MaxExpansions: 2, LLMMaxVariant: 5,
	}
	e := newTestExpander(t, settings, gen, nil)

	trace := e.Expand(context.Background(), "fixing slow deploy")

	assert.LessOrEqual(t, len(trace.ExpandedQueries), 2)
	// Cap reached before the LLM strategy, so it is never asked
	assert.Empty(t, gen.Prompts())
}

func TestExpand_DedupInvariant(t *testing.T) {
	gen := mocks.NewMockTextGenerator("Speed\nPERFORMANCE\nlatency\nthroughput\nthroughput")
	settings := domain.ExpansionSettings{
		Enabled: true, Synonyms: true, LLMRewrite: true,
		MaxExpansions: 10, LLMMaxVariant: 10,
	}
	e := newTestExpander(t, settings, gen,
		map[string][]string{"speed": {"Speed", "performance", "Performance", "latency"}})

	trace := e.Expand(context.Background(), "Speed")

	seen := map[string]bool{"speed": true}
	for _, q := range trace.ExpandedQueries {
		key := strings.ToLower(q)
		assert.False(t, seen[key], "duplicate expansion %q", q)
		seen[key] = true
	}
	assert.Equal(t, []string{"performance", "latency", "throughput"}, trace.ExpandedQueries)
}

func TestExpand_Deterministic(t *testing.T) {
	settings := domain.DefaultExpansionSettings()
	settings.MaxExpansions = 6
	e := newTestExpander(t, settings, nil, nil)

	first := e.Expand(context.Background(), "slow deploy crash fixing")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Expand(context.Background(), "slow deploy crash fixing"))
	}
}

func TestExpand_LLMRewrite(t *testing.T) {
	gen := mocks.NewMockTextGenerator("1. database latency\n- Speed\n\n* query slowness")
	settings := domain.ExpansionSettings{Enabled: true, LLMRewrite: true, MaxExpansions: 4, LLMMaxVariant: 3}
	e := newTestExpander(t, settings, gen, nil)

	trace := e.Expand(context.Background(), "speed")

	assert.Equal(t, []string{"database latency", "query slowness"}, trace.ExpandedQueries)
	require.Len(t, trace.Steps, 1)
	assert.Equal(t, domain.ExpansionStepLLMRewrite, trace.Steps[0].Step)
	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0], "Query: speed")
}

func TestExpand_LLMRewriteCached(t *testing.T) {
	gen := mocks.NewMockTextGenerator("database latency")
	settings := domain.ExpansionSettings{Enabled: true, LLMRewrite: true, MaxExpansions: 4, LLMMaxVariant: 3, CacheTTL: time.Minute}
	e := newTestExpander(t, settings, gen, nil)

	first := e.Expand(context.Background(), "Speed")
	second := e.Expand(context.Background(), "speed ")

	assert.Equal(t, first.ExpandedQueries, second.ExpandedQueries)
	assert.Len(t, gen.Prompts(), 1)
	assert.Contains(t, second.Steps[0].Detail, "(cached)")
}

func TestExpand_LLMFailureRecorded(t *testing.T) {
	gen := mocks.NewMockTextGenerator("")
	gen.SetError(errors.New("connection refused"))
	settings := domain.ExpansionSettings{Enabled: true, LLMRewrite: true, MaxExpansions: 4}
	e := newTestExpander(t, settings, gen, nil)

	trace := e.Expand(context.Background(), "speed")

	assert.Empty(t, trace.ExpandedQueries)
	require.Len(t, trace.Steps, 1)
	assert.Equal(t, domain.ExpansionStepLLMRewrite, trace.Steps[0].Step)
	assert.Contains(t, trace.Steps[0].Detail, "connection refused")
}

func TestParseRewrites(t *testing.T) {
	text := "1) first option\n2. \"second option\"\n  \n- first option\n• third\n* fourth"

	assert.Equal(t, []string{"first option", "second option", "third"}, parseRewrites(text, 3))
	assert.Len(t, parseRewrites(text, 0), 4)
}

func TestLoadSynonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speed:\n  - velocity\noncall: [pager, rotation]\n"), 0o600))

	table, err := LoadSynonyms(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"velocity"}, table["speed"])
	assert.Equal(t, []string{"pager", "rotation"}, table["oncall"])

	_, err = LoadSynonyms(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
