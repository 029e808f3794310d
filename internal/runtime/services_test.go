package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// stubEmbedder is a minimal EmbeddingProvider for registry tests
type stubEmbedder struct {
	kind           domain.ProviderKind
	healthCheckErr error
	closed         bool
}

func (m *stubEmbedder) Kind() domain.ProviderKind { return m.kind }
func (m *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}
func (m *stubEmbedder) Dimensions() int                       { return 1 }
func (m *stubEmbedder) Model() string                         { return "stub" }
func (m *stubEmbedder) HealthCheck(ctx context.Context) error { return m.healthCheckErr }
func (m *stubEmbedder) Close() error {
	m.closed = true
	return nil
}

// stubGenerator is a minimal TextGenerator for registry tests
type stubGenerator struct {
	kind   domain.ProviderKind
	closed bool
}

func (m *stubGenerator) Kind() domain.ProviderKind { return m.kind }
func (m *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", nil
}
func (m *stubGenerator) Model() string                  { return "stub" }
func (m *stubGenerator) Ping(ctx context.Context) error { return nil }
func (m *stubGenerator) Close() error {
	m.closed = true
	return nil
}

// stubFactory counts how often providers are resolved
type stubFactory struct {
	embedCalls int
	err        error
	embedders  []*stubEmbedder
}

func (f *stubFactory) CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	e := &stubEmbedder{kind: settings.Provider}
	f.embedders = append(f.embedders, e)
	return e, nil
}

func (f *stubFactory) CreateTextGenerator(settings *domain.LLMSettings) (driven.TextGenerator, error) {
	return &stubGenerator{kind: settings.Provider}, nil
}

func testSettings() domain.AISettings {
	return domain.AISettings{
		Embedding: domain.EmbeddingSettings{Provider: domain.ProviderMock},
		LLM:       domain.LLMSettings{Provider: domain.ProviderDisabled},
	}
}

func TestNewServices(t *testing.T) {
	config := domain.NewRuntimeConfig("postgres")
	factory := &stubFactory{}

	services, err := NewServices(config, factory, testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.Config() != config {
		t.Error("expected config to match")
	}
	if services.EmbeddingProvider() == nil {
		t.Fatal("expected embedding provider to be resolved")
	}
	if !config.EmbeddingAvailable() {
		t.Error("expected embedding to be available for mock provider")
	}
	if config.LLMAvailable() {
		t.Error("expected LLM to be unavailable for disabled generator")
	}
	if factory.embedCalls != 1 {
		t.Errorf("expected one resolution, got %d", factory.embedCalls)
	}
}

func TestNewServices_FactoryError(t *testing.T) {
	_, err := NewServices(domain.NewRuntimeConfig("postgres"), &stubFactory{err: domain.ErrInvalidProvider}, testSettings())
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}

func TestServices_SetEmbeddingProvider(t *testing.T) {
	config := domain.NewRuntimeConfig("postgres")
	services, _ := NewServices(config, nil, domain.AISettings{})

	first := &stubEmbedder{kind: domain.ProviderMock}
	services.SetEmbeddingProvider(first)
	if !config.EmbeddingAvailable() {
		t.Error("expected embedding available")
	}

	services.SetEmbeddingProvider(&stubEmbedder{kind: domain.ProviderDisabled})
	if !first.closed {
		t.Error("expected old provider to be closed")
	}
	if config.EmbeddingAvailable() {
		t.Error("expected disabled provider to clear availability")
	}
}

func TestServices_ResetForTests(t *testing.T) {
	factory := &stubFactory{}
	services, _ := NewServices(domain.NewRuntimeConfig("sqlite"), factory, testSettings())

	override := &stubEmbedder{kind: domain.ProviderDisabled}
	services.SetEmbeddingProvider(override)

	if err := services.ResetForTests(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !override.closed {
		t.Error("expected override to be closed on reset")
	}
	if factory.embedCalls != 2 {
		t.Errorf("expected providers to be rebuilt, got %d resolutions", factory.embedCalls)
	}
	if services.EmbeddingProvider().Kind() != domain.ProviderMock {
		t.Error("expected provider rebuilt from stored settings")
	}
}

func TestServices_ValidateEmbedding(t *testing.T) {
	services, _ := NewServices(domain.NewRuntimeConfig("postgres"), nil, domain.AISettings{})

	if err := services.ValidateEmbedding(context.Background()); err != nil {
		t.Errorf("expected nil provider to validate, got %v", err)
	}

	services.SetEmbeddingProvider(&stubEmbedder{kind: domain.ProviderLocal, healthCheckErr: domain.ErrServiceUnavailable})
	if err := services.ValidateEmbedding(context.Background()); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestServices_Close(t *testing.T) {
	factory := &stubFactory{}
	config := domain.NewRuntimeConfig("postgres")
	services, _ := NewServices(config, factory, testSettings())

	_ = services.Close()
	if !factory.embedders[0].closed {
		t.Error("expected embedder to be closed")
	}
	if services.EmbeddingProvider() != nil || config.EmbeddingAvailable() {
		t.Error("expected handles cleared after close")
	}
}
