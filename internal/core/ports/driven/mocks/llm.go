package mocks

import (
	"context"
	"sync"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// MockTextGenerator is a TextGenerator for testing that returns a canned
// completion
type MockTextGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

// NewMockTextGenerator creates a generator that always answers response
func NewMockTextGenerator(response string) *MockTextGenerator {
	return &MockTextGenerator{response: response}
}

func (m *MockTextGenerator) Kind() domain.ProviderKind {
	return domain.ProviderMock
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *MockTextGenerator) Model() string {
	return "mock-llm"
}

func (m *MockTextGenerator) Ping(ctx context.Context) error {
	return m.err
}

func (m *MockTextGenerator) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockTextGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockTextGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
