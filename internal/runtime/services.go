package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Services holds the process-wide AI provider handles. The composition root
// builds it once from configuration; handles are read-mostly and are only
// swapped by ResetForTests or the explicit setters.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	factory  driven.AIServiceFactory
	settings domain.AISettings

	embedder  driven.EmbeddingProvider
	generator driven.TextGenerator
}

// NewServices creates a Services registry and resolves both providers from
// settings
func NewServices(config *domain.RuntimeConfig, factory driven.AIServiceFactory, settings domain.AISettings) (*Services, error) {
	s := &Services{
		config:   config,
		factory:  factory,
		settings: settings,
	}
	if err := s.resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// Settings returns the settings the providers were resolved from
func (s *Services) Settings() domain.AISettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// EmbeddingProvider returns the current embedding provider (may be nil)
func (s *Services) EmbeddingProvider() driven.EmbeddingProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder
}

// TextGenerator returns the current text generator (may be nil)
func (s *Services) TextGenerator() driven.TextGenerator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator
}

// SetEmbeddingProvider replaces the embedding provider.
// Closes the old provider if present. Updates config flags.
func (s *Services) SetEmbeddingProvider(p driven.EmbeddingProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setEmbedder(p)
}

// SetTextGenerator replaces the text generator.
// Closes the old generator if present. Updates config flags.
func (s *Services) SetTextGenerator(g driven.TextGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setGenerator(g)
}

// ValidateEmbedding checks the embedding provider is reachable
func (s *Services) ValidateEmbedding(ctx context.Context) error {
	p := s.EmbeddingProvider()
	if p == nil || p.Kind() == domain.ProviderDisabled {
		return nil
	}
	return p.HealthCheck(ctx)
}

// ResetForTests discards the current handles and rebuilds them from the
// stored settings
func (s *Services) ResetForTests() error {
	s.mu.Lock()
	s.setEmbedder(nil)
	s.setGenerator(nil)
	s.mu.Unlock()
	return s.resolve()
}

// Close shuts down all providers
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setEmbedder(nil)
	s.setGenerator(nil)
	return nil
}

func (s *Services) resolve() error {
	if s.factory == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	emb, err := s.factory.CreateEmbeddingProvider(&s.settings.Embedding)
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}
	gen, err := s.factory.CreateTextGenerator(&s.settings.LLM)
	if err != nil {
		if emb != nil {
			_ = emb.Close()
		}
		return fmt.Errorf("create text generator: %w", err)
	}

	s.setEmbedder(emb)
	s.setGenerator(gen)
	return nil
}

func (s *Services) setEmbedder(p driven.EmbeddingProvider) {
	if s.embedder != nil && s.embedder != p {
		_ = s.embedder.Close()
	}
	s.embedder = p
	s.config.SetEmbeddingAvailable(p != nil && p.Kind() != domain.ProviderDisabled)
}

func (s *Services) setGenerator(g driven.TextGenerator) {
	if s.generator != nil && s.generator != g {
		_ = s.generator.Close()
	}
	s.generator = g
	s.config.SetLLMAvailable(g != nil && g.Kind() != domain.ProviderDisabled)
}
