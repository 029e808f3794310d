package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/runtime"
)

// Ensure queryExpansionEngine implements QueryExpander
var _ driving.QueryExpander = (*queryExpansionEngine)(nil)

// QueryExpansionConfig configures the expansion engine
type QueryExpansionConfig struct {
	Settings domain.ExpansionSettings

	// Synonyms is the synonym table; nil selects DefaultSynonyms
	Synonyms map[string][]string

	// Cache stores LLM rewrites by normalized query; optional
	Cache driven.ExpansionCache

	// LLMTimeout bounds each rewrite call
	LLMTimeout time.Duration

	Logger *slog.Logger
}

// queryExpansionEngine produces query variants with stemming, synonym
// substitution and LLM rewriting, in that order
type queryExpansionEngine struct {
	cfg      QueryExpansionConfig
	synonyms *synonymSet
	services *runtime.Services
	logger   *slog.Logger
}

// NewQueryExpansionEngine creates a new QueryExpander.
// The text generator is read from runtime.Services on each call.
func NewQueryExpansionEngine(cfg QueryExpansionConfig, services *runtime.Services) driving.QueryExpander {
	if cfg.Synonyms == nil {
		cfg.Synonyms = DefaultSynonyms()
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 10 * time.Second
	}
	if cfg.Settings.LLMMaxVariant <= 0 {
		cfg.Settings.LLMMaxVariant = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &queryExpansionEngine{
		cfg:      cfg,
		synonyms: newSynonymSet(cfg.Synonyms),
		services: services,
		logger:   logger.With("component", "query_expansion"),
	}
}

// Enabled reports whether expansion is switched on
func (e *queryExpansionEngine) Enabled() bool {
	return e.cfg.Settings.Enabled
}

// Expand returns the expansion trace for a query
func (e *queryExpansionEngine) Expand(ctx context.Context, query string) *domain.ExpansionTrace {
	trace := domain.NewExpansionTrace(query)
	if !e.cfg.Settings.Enabled {
		trace.DisabledReason = domain.ExpansionDisabledReason
		return trace
	}

	q := strings.TrimSpace(query)
	if q == "" {
		return trace
	}

	acc := newCandidateSet(q, e.cfg.Settings.MaxExpansions)

	if e.cfg.Settings.Stemming && !acc.full() {
		if stemmed, detail := stemQuery(q); stemmed != "" && acc.add(stemmed) {
			trace.AddStep(domain.ExpansionStepStemming, detail)
			metrics.ExpansionCandidatesTotal.WithLabelValues(domain.ExpansionStepStemming).Inc()
		}
	}

	if e.cfg.Settings.Synonyms && !acc.full() {
		var applied []string
		for _, c := range e.synonyms.candidates(q) {
			if acc.full() {
				break
			}
			if acc.add(c.query) {
				applied = append(applied, c.detail)
			}
		}
		if len(applied) > 0 {
			trace.AddStep(domain.ExpansionStepSynonyms, strings.Join(applied, ", "))
			metrics.ExpansionCandidatesTotal.WithLabelValues(domain.ExpansionStepSynonyms).Add(float64(len(applied)))
		}
	}

	if e.cfg.Settings.LLMRewrite && !acc.full() {
		e.rewrite(ctx, q, acc, trace)
	}

	trace.ExpandedQueries = acc.list
	trace.ExpansionApplied = len(acc.list) > 0

	e.logger.Debug("query expanded",
		"query", q,
		"expansions", len(acc.list),
		"steps", len(trace.Steps))
	return trace
}

// rewrite asks the text generator for alternative phrasings
func (e *queryExpansionEngine) rewrite(ctx context.Context, q string, acc *candidateSet, trace *domain.ExpansionTrace) {
	if e.services == nil {
		return
	}
	gen := e.services.TextGenerator()
	if gen == nil || gen.Kind() == domain.ProviderDisabled {
		return
	}

	key := domain.NormalizeQuery(q)
	variants, cached := e.cachedRewrites(ctx, key)
	if !cached {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
		text, err := gen.Generate(callCtx, rewritePrompt(q, e.cfg.Settings.LLMMaxVariant))
		cancel()
		if err != nil {
			e.logger.Warn("llm rewrite failed", "query", q, "error", err)
			trace.AddStep(domain.ExpansionStepLLMRewrite, "error: "+err.Error())
			return
		}
		variants = parseRewrites(text, e.cfg.Settings.LLMMaxVariant)
		if e.cfg.Cache != nil && e.cfg.Settings.CacheTTL > 0 {
			if err := e.cfg.Cache.Set(ctx, key, variants, e.cfg.Settings.CacheTTL); err != nil {
				e.logger.Debug("expansion cache write failed", "error", err)
			}
		}
	}

	var added []string
	for _, v := range variants {
		if acc.full() {
			break
		}
		if acc.add(v) {
			added = append(added, domain.NormalizeQuery(v))
		}
	}
	if len(added) == 0 {
		return
	}

	detail := fmt.Sprintf("%d variant(s): %s", len(added), strings.Join(added, "; "))
	if cached {
		detail += " (cached)"
	}
	trace.AddStep(domain.ExpansionStepLLMRewrite, detail)
	metrics.ExpansionCandidatesTotal.WithLabelValues(domain.ExpansionStepLLMRewrite).Add(float64(len(added)))
}

func (e *queryExpansionEngine) cachedRewrites(ctx context.Context, key string) ([]string, bool) {
	if e.cfg.Cache == nil {
		return nil, false
	}
	variants, ok, err := e.cfg.Cache.Get(ctx, key)
	if err != nil {
		e.logger.Debug("expansion cache read failed", "error", err)
		return nil, false
	}
	if ok {
		metrics.ExpansionCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.ExpansionCacheTotal.WithLabelValues("miss").Inc()
	}
	return variants, ok
}

func rewritePrompt(query string, n int) string {
	return fmt.Sprintf("Rewrite the following search query into up to %d alternative phrasings "+
		"that mean the same thing. Return one phrasing per line with no numbering or commentary.\n\n"+
		"Query: %s", n, query)
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// parseRewrites splits a completion into distinct, non-empty lines, with list
// markers and wrapping quotes removed
func parseRewrites(text string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		key := domain.NormalizeQuery(line)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// candidateSet accumulates expansions under the global cap, deduplicating
// case-insensitively against the original query and earlier candidates
type candidateSet struct {
	max  int
	seen map[string]bool
	list []string
}

func newCandidateSet(original string, max int) *candidateSet {
	return &candidateSet{
		max:  max,
		seen: map[string]bool{domain.NormalizeQuery(original): true},
		list: []string{},
	}
}

func (c *candidateSet) full() bool {
	return len(c.list) >= c.max
}

func (c *candidateSet) add(candidate string) bool {
	key := domain.NormalizeQuery(candidate)
	if key == "" || c.seen[key] || c.full() {
		return false
	}
	c.seen[key] = true
	c.list = append(c.list, key)
	return true
}
