package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// MockEmbeddingProvider is a deterministic EmbeddingProvider for testing.
// Vectors are a hashed bag of words, so texts that share words are close.
type MockEmbeddingProvider struct {
	mu         sync.Mutex
	dimensions int
	model      string
	kind       domain.ProviderKind
	failNext   bool
	err        error
	returnNil  bool
	calls      []string
}

// NewMockEmbeddingProvider creates a new MockEmbeddingProvider
func NewMockEmbeddingProvider(dimensions int) *MockEmbeddingProvider {
	return &MockEmbeddingProvider{
		dimensions: dimensions,
		model:      "mock-embedding-model",
		kind:       domain.ProviderMock,
	}
}

func (m *MockEmbeddingProvider) Kind() domain.ProviderKind {
	return m.kind
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)

	if m.kind == domain.ProviderDisabled {
		return nil, domain.ErrEmbeddingDisabled
	}
	if m.failNext {
		m.failNext = false
		return nil, context.DeadlineExceeded
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.returnNil {
		return nil, nil
	}
	return BagOfWordsVector(text, m.dimensions), nil
}

func (m *MockEmbeddingProvider) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingProvider) Model() string {
	return m.model
}

func (m *MockEmbeddingProvider) HealthCheck(ctx context.Context) error {
	return m.err
}

func (m *MockEmbeddingProvider) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockEmbeddingProvider) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

func (m *MockEmbeddingProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockEmbeddingProvider) SetReturnNil(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnNil = v
}

func (m *MockEmbeddingProvider) SetKind(kind domain.ProviderKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = kind
}

func (m *MockEmbeddingProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// BagOfWordsVector hashes each lowercased word into a bucket and
// L2-normalizes the result
func BagOfWordsVector(text string, dimensions int) []float32 {
	vec := make([]float32, dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dimensions)] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
