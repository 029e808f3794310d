package mocks

import (
	"context"
	"sync"
	"time"
)

// MockExpansionCache is a map-backed ExpansionCache for testing
type MockExpansionCache struct {
	mu      sync.Mutex
	entries map[string][]string
	Sets    int
}

// NewMockExpansionCache creates a new MockExpansionCache
func NewMockExpansionCache() *MockExpansionCache {
	return &MockExpansionCache{entries: make(map[string][]string)}
}

func (m *MockExpansionCache) Get(ctx context.Context, query string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[query]
	return append([]string(nil), v...), ok, nil
}

func (m *MockExpansionCache) Set(ctx context.Context, query string, candidates []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[query] = append([]string(nil), candidates...)
	m.Sets++
	return nil
}
