package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Visibility determines who besides the owner can see a memory
type Visibility string

const (
	VisibilityPersonal     Visibility = "personal"
	VisibilityOrganization Visibility = "organization"
	VisibilityPublic       Visibility = "public"
)

// IsValid returns true if this is a known visibility scope
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPersonal, VisibilityOrganization, VisibilityPublic:
		return true
	default:
		return false
	}
}

// Searchable field names, in descending full-text weight
const (
	FieldContent = "content"
	FieldLessons = "lessons"
	FieldErrors  = "errors"
)

// Memory is the unit of retrieval: a free-text note plus structured metadata
type Memory struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Content        string         `json:"content"`
	Errors         string         `json:"errors,omitempty"`
	Lessons        string         `json:"lessons,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"` // Display only, never searched structurally
	FeedbackScore  int            `json:"feedback_score"`
	RetrievalCount int            `json:"retrieval_count"`
	Visibility     Visibility     `json:"visibility"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ArchivedAt     *time.Time     `json:"archived_at,omitempty"`
	Embedding      []float32      `json:"-"` // nil until computed
}

// IsArchived returns true if the memory has been archived
func (m *Memory) IsArchived() bool {
	return m.ArchivedAt != nil
}

// HasEmbedding returns true if a vector has been attached
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// EmbeddingText composes the text a memory's vector is computed from.
// Metadata is rendered as JSON, which orders map keys, so the result is
// stable for equal inputs.
func (m *Memory) EmbeddingText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{m.Content, m.Errors, m.Lessons} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(m.Metadata) > 0 {
		if data, err := json.Marshal(m.Metadata); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}

// MatchedFields returns the searchable fields containing any of the terms,
// ordered by full-text weight.
func (m *Memory) MatchedFields(terms []string) []string {
	fields := []struct {
		name string
		text string
	}{
		{FieldContent, m.Content},
		{FieldLessons, m.Lessons},
		{FieldErrors, m.Errors},
	}

	var matched []string
	for _, f := range fields {
		lower := strings.ToLower(f.text)
		for _, term := range terms {
			if term != "" && strings.Contains(lower, strings.ToLower(term)) {
				matched = append(matched, f.name)
				break
			}
		}
	}
	return matched
}

// Clone returns a shallow copy whose slices and maps can be modified safely
func (m *Memory) Clone() *Memory {
	c := *m
	if m.Embedding != nil {
		c.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	if m.ArchivedAt != nil {
		t := *m.ArchivedAt
		c.ArchivedAt = &t
	}
	return &c
}

// MemoryHit is a raw store match before the search core scores it.
// Score is the store's native value: full-text rank, or cosine distance
// for vector queries.
type MemoryHit struct {
	Memory        *Memory
	Score         float64
	MatchedFields []string
}

// CreateMemoryRequest holds the fields accepted when recording a memory
type CreateMemoryRequest struct {
	AgentID        string         `json:"agent_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Content        string         `json:"content"`
	Errors         string         `json:"errors,omitempty"`
	Lessons        string         `json:"lessons,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Visibility     Visibility     `json:"visibility,omitempty"`
}

// UpdateMemoryRequest patches the textual fields of a memory.
// Nil fields are left unchanged.
type UpdateMemoryRequest struct {
	Content  *string        `json:"content,omitempty"`
	Errors   *string        `json:"errors,omitempty"`
	Lessons  *string        `json:"lessons,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MaxFeedbackDelta bounds a single feedback adjustment
const MaxFeedbackDelta = 10

// FeedbackRequest adjusts a memory's feedback score by Delta.
// Positive values upvote, negative values downvote.
type FeedbackRequest struct {
	Delta int `json:"delta" example:"-1"`
}

// Validate checks the delta is non-zero and within MaxFeedbackDelta
func (r FeedbackRequest) Validate() error {
	if r.Delta == 0 || r.Delta > MaxFeedbackDelta || r.Delta < -MaxFeedbackDelta {
		return NewCallerError("delta", fmt.Errorf("must be non-zero and within [-%d, %d]", MaxFeedbackDelta, MaxFeedbackDelta))
	}
	return nil
}
