package domain

import "time"

// Score component names exposed in ScoredResult.ScoreComponents.
// Components of a fused result sum to its score before the clamp at zero.
const (
	ComponentFulltext = "fulltext"    // fulltext_weight * normalized fulltext score
	ComponentSemantic = "semantic"    // semantic_weight * normalized semantic score
	ComponentRecency  = "recency"     // delta applied by recency decay
	ComponentScope    = "scope_boost" // delta applied by the scope boost
	ComponentFeedback = "feedback"    // delta applied by feedback weight
)

// FusionConfig controls hybrid score fusion. It is passed by value into the
// fusion function; every heuristic can be switched off independently.
type FusionConfig struct {
	// FulltextWeight and SemanticWeight scale each modality's normalized score
	FulltextWeight float64 `yaml:"fulltext_weight" json:"fulltext_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// MinCombinedScore drops fused results below this score before capping
	MinCombinedScore float64 `yaml:"min_combined_score" json:"min_combined_score"`

	// CandidateMultiplier sets the per-modality limit fetched before fusion
	// (limit * multiplier). Normalization happens within each modality's
	// returned set, so this value changes how scores spread.
	CandidateMultiplier int `yaml:"candidate_multiplier" json:"candidate_multiplier"`

	// ScopeBoost adds ScopeBoostAmount to records whose visibility matches the
	// caller's active scope (organization or public)
	ScopeBoost       bool    `yaml:"scope_boost" json:"scope_boost"`
	ScopeBoostAmount float64 `yaml:"scope_boost_amount" json:"scope_boost_amount"`

	// RecencyDecay scales the score by (1 - RecencyWeight) + RecencyWeight * 0.5^(age/RecencyHalfLife)
	RecencyDecay    bool          `yaml:"recency_decay" json:"recency_decay"`
	RecencyWeight   float64       `yaml:"recency_weight" json:"recency_weight"`
	RecencyHalfLife time.Duration `yaml:"recency_half_life" json:"recency_half_life"`

	// FeedbackWeight adds FeedbackMaxDelta * tanh(feedback / FeedbackScale).
	// The delta is bounded by FeedbackMaxDelta in both directions.
	FeedbackWeight   bool    `yaml:"feedback_weight" json:"feedback_weight"`
	FeedbackMaxDelta float64 `yaml:"feedback_max_delta" json:"feedback_max_delta"`
	FeedbackScale    float64 `yaml:"feedback_scale" json:"feedback_scale"`
}

// DefaultFusionConfig returns the production fusion defaults
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		FulltextWeight:      0.7,
		SemanticWeight:      0.3,
		MinCombinedScore:    0.1,
		CandidateMultiplier: 2,
		ScopeBoost:          true,
		ScopeBoostAmount:    0.05,
		RecencyDecay:        true,
		RecencyWeight:       0.1,
		RecencyHalfLife:     30 * 24 * time.Hour,
		FeedbackWeight:      true,
		FeedbackMaxDelta:    0.05,
		FeedbackScale:       5,
	}
}

// WithoutHeuristics returns a copy with every heuristic disabled, leaving
// the pure weighted sum.
func (c FusionConfig) WithoutHeuristics() FusionConfig {
	c.ScopeBoost = false
	c.RecencyDecay = false
	c.FeedbackWeight = false
	return c
}
