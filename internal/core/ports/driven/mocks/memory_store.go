package mocks

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// MockMemoryStore is an in-memory MemoryStore for testing. Full-text
// matching requires every query token to appear in some field; vector search
// computes exact cosine distance.
type MockMemoryStore struct {
	mu       sync.RWMutex
	memories map[string]*domain.Memory

	// Behaviour knobs
	VectorSupported bool
	FulltextErr     error
	VectorErr       error
	BasicErr        error
	SaveErr         error
	UpdateErr       map[string]error // per-ID UpdateEmbedding failures

	// Call tracking
	FulltextQueries []string
	VectorQueries   int
	BasicQueries    []string
	Retrievals      map[string]int
}

// NewMockMemoryStore creates a new MockMemoryStore with vector support
func NewMockMemoryStore() *MockMemoryStore {
	return &MockMemoryStore{
		memories:        make(map[string]*domain.Memory),
		VectorSupported: true,
		UpdateErr:       make(map[string]error),
		Retrievals:      make(map[string]int),
	}
}

func (m *MockMemoryStore) Dialect() string {
	return "mock"
}

func (m *MockMemoryStore) SupportsVectorSearch(ctx context.Context) bool {
	return m.VectorSupported
}

func (m *MockMemoryStore) SearchFulltext(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	m.mu.Lock()
	m.FulltextQueries = append(m.FulltextQueries, query)
	m.mu.Unlock()
	if m.FulltextErr != nil {
		return nil, m.FulltextErr
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}

	var hits []*domain.MemoryHit
	for _, mem := range m.visible(q.Filters) {
		score, ok := lexicalScore(mem, tokens)
		if !ok {
			continue
		}
		hits = append(hits, &domain.MemoryHit{
			Memory:        mem,
			Score:         score,
			MatchedFields: mem.MatchedFields(tokens),
		})
	}
	sortHits(hits, true)
	return capHits(hits, q.Limit), nil
}

func (m *MockMemoryStore) SearchVector(ctx context.Context, embedding []float32, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	m.mu.Lock()
	m.VectorQueries++
	m.mu.Unlock()
	if !m.VectorSupported {
		return nil, domain.ErrVectorUnsupported
	}
	if m.VectorErr != nil {
		return nil, m.VectorErr
	}

	var hits []*domain.MemoryHit
	for _, mem := range m.visible(q.Filters) {
		if !mem.HasEmbedding() || len(mem.Embedding) != len(embedding) {
			continue
		}
		hits = append(hits, &domain.MemoryHit{
			Memory: mem,
			Score:  1 - cosine(mem.Embedding, embedding),
		})
	}
	sortHits(hits, false)
	return capHits(hits, q.Limit), nil
}

func (m *MockMemoryStore) SearchBasic(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	m.mu.Lock()
	m.BasicQueries = append(m.BasicQueries, query)
	m.mu.Unlock()
	if m.BasicErr != nil {
		return nil, m.BasicErr
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var hits []*domain.MemoryHit
	for _, mem := range m.visible(q.Filters) {
		if needle == "" ||
			strings.Contains(strings.ToLower(mem.Content), needle) ||
			strings.Contains(strings.ToLower(mem.Errors), needle) ||
			strings.Contains(strings.ToLower(mem.Lessons), needle) {
			hits = append(hits, &domain.MemoryHit{Memory: mem})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].Memory, hits[j].Memory
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return capHits(hits, q.Limit), nil
}

func (m *MockMemoryStore) Get(ctx context.Context, id string) (*domain.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.memories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return mem.Clone(), nil
}

func (m *MockMemoryStore) Save(ctx context.Context, mem *domain.Memory) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memories[mem.ID] = mem.Clone()
	return nil
}

func (m *MockMemoryStore) Archive(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return domain.ErrNotFound
	}
	mem.ArchivedAt = &at
	mem.UpdatedAt = at
	return nil
}

func (m *MockMemoryStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateErr[id]; err != nil {
		return err
	}
	mem, ok := m.memories[id]
	if !ok {
		return domain.ErrNotFound
	}
	mem.Embedding = append([]float32(nil), embedding...)
	return nil
}

func (m *MockMemoryStore) ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]*domain.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Memory
	for _, mem := range m.memories {
		if mem.HasEmbedding() || mem.IsArchived() || mem.ID <= afterID {
			continue
		}
		out = append(out, mem.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockMemoryStore) AdjustFeedback(ctx context.Context, id string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	mem.FeedbackScore += delta
	return mem.FeedbackScore, nil
}

func (m *MockMemoryStore) IncrementRetrievalCount(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.Retrievals[id]++
		if mem, ok := m.memories[id]; ok {
			mem.RetrievalCount++
		}
	}
	return nil
}

func (m *MockMemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Add stores memories directly, bypassing SaveErr
func (m *MockMemoryStore) Add(mems ...*domain.Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range mems {
		m.memories[mem.ID] = mem.Clone()
	}
}

// RetrievalCount returns how often a memory was counted as retrieved
func (m *MockMemoryStore) RetrievalCount(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Retrievals[id]
}

func (m *MockMemoryStore) visible(f domain.SearchFilters) []*domain.Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Memory, 0, len(m.memories))
	for _, mem := range m.memories {
		if mem.IsArchived() && !f.IncludeArchived {
			continue
		}
		if f.AgentID != "" && mem.AgentID != f.AgentID {
			continue
		}
		if f.ConversationID != "" && mem.ConversationID != f.ConversationID {
			continue
		}
		if f.Visibility != nil && !f.Visibility.Allows(mem) {
			continue
		}
		out = append(out, mem.Clone())
	}
	return out
}

// lexicalScore weights token hits content 1.0, lessons 0.6, errors 0.3 and
// maps the mean into [0, 0.9]
func lexicalScore(mem *domain.Memory, tokens []string) (float64, bool) {
	fields := []struct {
		text   string
		weight float64
	}{
		{strings.ToLower(mem.Content), 1.0},
		{strings.ToLower(mem.Lessons), 0.6},
		{strings.ToLower(mem.Errors), 0.3},
	}

	total := 0.0
	for _, tok := range tokens {
		best := 0.0
		for _, f := range fields {
			if strings.Contains(f.text, tok) && f.weight > best {
				best = f.weight
			}
		}
		if best == 0 {
			return 0, false
		}
		total += best
	}
	return 0.9 * total / float64(len(tokens)), true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortHits(hits []*domain.MemoryHit, desc bool) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			if desc {
				return hits[i].Score > hits[j].Score
			}
			return hits[i].Score < hits[j].Score
		}
		return hits[i].Memory.ID < hits[j].Memory.ID
	})
}

func capHits(hits []*domain.MemoryHit, limit int) []*domain.MemoryHit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
