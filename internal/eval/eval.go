// Package eval measures how query expansion changes retrieval quality. Each
// labelled case runs once against a baseline search service and once against
// one with expansion enabled; precision and recall are compared per case and
// on average.
package eval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
)

// DefaultK is the cutoff used when a case sets none
const DefaultK = 10

// Scores are the retrieval metrics of one run of a case
type Scores struct {
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	Retrieved []string `json:"retrieved"`
}

// CaseResult compares the two runs of one case
type CaseResult struct {
	Name            string   `json:"name"`
	Query           string   `json:"query"`
	K               int      `json:"k"`
	Baseline        Scores   `json:"baseline"`
	Expanded        Scores   `json:"expanded"`
	ExpandedQueries []string `json:"expanded_queries,omitempty"`
	PrecisionDelta  float64  `json:"precision_delta"`
	RecallDelta     float64  `json:"recall_delta"`
}

// Summary aggregates means over all cases
type Summary struct {
	Cases                int     `json:"cases"`
	BaselinePrecision    float64 `json:"baseline_precision"`
	BaselineRecall       float64 `json:"baseline_recall"`
	ExpandedPrecision    float64 `json:"expanded_precision"`
	ExpandedRecall       float64 `json:"expanded_recall"`
	PrecisionDelta       float64 `json:"precision_delta"`
	RecallDelta          float64 `json:"recall_delta"`
	RecallImprovedCases  int     `json:"recall_improved_cases"`
	RecallRegressedCases int     `json:"recall_regressed_cases"`
}

// Report is the outcome of a harness run
type Report struct {
	Dataset string       `json:"dataset,omitempty"`
	Results []CaseResult `json:"results"`
	Summary Summary      `json:"summary"`
}

// Runner executes cases against a baseline and an expanded search service
type Runner struct {
	baseline driving.SearchService
	expanded driving.SearchService
	mode     domain.SearchMode
	logger   *slog.Logger
}

// NewRunner creates a Runner. Cases without a mode use the given mode
// (fulltext when empty).
func NewRunner(baseline, expanded driving.SearchService, mode domain.SearchMode, logger *slog.Logger) *Runner {
	if mode == "" {
		mode = domain.SearchModeFulltext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		baseline: baseline,
		expanded: expanded,
		mode:     mode,
		logger:   logger.With("component", "eval"),
	}
}

// Run evaluates every case. A search error aborts the run.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	report := &Report{Results: make([]CaseResult, 0, len(cases))}

	for _, c := range cases {
		result, err := r.runCase(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		r.logger.Debug("case evaluated",
			"case", c.Name,
			"baseline_recall", result.Baseline.Recall,
			"expanded_recall", result.Expanded.Recall,
		)
		report.Results = append(report.Results, result)
	}

	report.Summary = Summarize(report.Results)
	return report, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) (CaseResult, error) {
	k := c.K
	if k <= 0 {
		k = DefaultK
	}
	mode := c.Mode
	if mode == "" {
		mode = r.mode
	}
	req := domain.SearchRequest{Mode: mode, Query: c.Query, Limit: k}

	base, err := r.baseline.Search(ctx, req)
	if err != nil {
		return CaseResult{}, fmt.Errorf("baseline search: %w", err)
	}
	exp, err := r.expanded.Search(ctx, req)
	if err != nil {
		return CaseResult{}, fmt.Errorf("expanded search: %w", err)
	}

	result := CaseResult{
		Name:     c.Name,
		Query:    c.Query,
		K:        k,
		Baseline: score(base, c.RelevantIDs, k),
		Expanded: score(exp, c.RelevantIDs, k),
	}
	if exp.Metadata != nil && exp.Metadata.Expansion != nil {
		result.ExpandedQueries = exp.Metadata.Expansion.ExpandedQueries
	}
	result.PrecisionDelta = result.Expanded.Precision - result.Baseline.Precision
	result.RecallDelta = result.Expanded.Recall - result.Baseline.Recall
	return result, nil
}

func score(resp *domain.SearchResponse, relevant []string, k int) Scores {
	retrieved := make([]string, 0, len(resp.Items))
	for _, res := range resp.Items {
		if len(retrieved) == k {
			break
		}
		retrieved = append(retrieved, res.ID())
	}
	p, r := PrecisionRecall(retrieved, relevant)
	return Scores{Precision: p, Recall: r, Retrieved: retrieved}
}

// PrecisionRecall scores a ranked ID list against the relevant set.
// Duplicate retrieved IDs count once. Precision is 0 when nothing was
// retrieved; recall is 1 when nothing is relevant.
func PrecisionRecall(retrieved, relevant []string) (precision, recall float64) {
	want := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		want[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(retrieved))
	hits := 0
	for _, id := range retrieved {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := want[id]; ok {
			hits++
		}
	}

	if len(seen) > 0 {
		precision = float64(hits) / float64(len(seen))
	}
	if len(want) == 0 {
		recall = 1
	} else {
		recall = float64(hits) / float64(len(want))
	}
	return precision, recall
}

// Summarize computes means and deltas over case results
func Summarize(results []CaseResult) Summary {
	s := Summary{Cases: len(results)}
	if len(results) == 0 {
		return s
	}

	for _, r := range results {
		s.BaselinePrecision += r.Baseline.Precision
		s.BaselineRecall += r.Baseline.Recall
		s.ExpandedPrecision += r.Expanded.Precision
		s.ExpandedRecall += r.Expanded.Recall
		switch {
		case r.RecallDelta > 0:
			s.RecallImprovedCases++
		case r.RecallDelta < 0:
			s.RecallRegressedCases++
		}
	}

	n := float64(len(results))
	s.BaselinePrecision /= n
	s.BaselineRecall /= n
	s.ExpandedPrecision /= n
	s.ExpandedRecall /= n
	s.PrecisionDelta = s.ExpandedPrecision - s.BaselinePrecision
	s.RecallDelta = s.ExpandedRecall - s.BaselineRecall
	return s
}
