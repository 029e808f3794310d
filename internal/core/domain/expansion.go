package domain

import "strings"

// Expansion strategy names recorded in ExpansionStep.Step
const (
	ExpansionStepStemming   = "stemming"
	ExpansionStepSynonyms   = "synonyms"
	ExpansionStepLLMRewrite = "llm_rewrite"
	ExpansionStepCache      = "cache"
)

// ExpansionDisabledReason is set when expansion is turned off globally
const ExpansionDisabledReason = "expansion_disabled"

// ExpansionStep records what one expansion strategy produced
type ExpansionStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// ExpansionTrace is the result of expanding a query
type ExpansionTrace struct {
	OriginalQuery    string          `json:"original_query"`
	ExpandedQueries  []string        `json:"expanded_queries"`
	Steps            []ExpansionStep `json:"steps"`
	ExpansionApplied bool            `json:"expansion_applied"`
	DisabledReason   string          `json:"disabled_reason,omitempty"`
}

// NewExpansionTrace creates an empty trace for a query
func NewExpansionTrace(query string) *ExpansionTrace {
	return &ExpansionTrace{
		OriginalQuery:   query,
		ExpandedQueries: []string{},
		Steps:           []ExpansionStep{},
	}
}

// AddStep appends a strategy record
func (t *ExpansionTrace) AddStep(step, detail string) {
	t.Steps = append(t.Steps, ExpansionStep{Step: step, Detail: detail})
}

// Clone returns a deep copy of the trace
func (t *ExpansionTrace) Clone() *ExpansionTrace {
	if t == nil {
		return nil
	}
	c := *t
	c.ExpandedQueries = append([]string{}, t.ExpandedQueries...)
	c.Steps = append([]ExpansionStep{}, t.Steps...)
	return &c
}

// NormalizeQuery lowercases a query and collapses whitespace. Two queries
// are considered duplicates when their normalized forms are equal.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
