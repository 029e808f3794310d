package ai

import (
	"fmt"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI providers based on configuration
type Factory struct {
	// mockResponse is what the mock generator returns
	mockResponse string
}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// WithMockResponse sets the completion returned by the mock text generator
func (f *Factory) WithMockResponse(response string) *Factory {
	f.mockResponse = response
	return f
}

// CreateEmbeddingProvider creates an embedding provider from settings.
// Providers other than disabled are wrapped in an LRU cache when
// CacheSize is positive.
func (f *Factory) CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if settings == nil {
		return NewDisabledEmbedder(), nil
	}
	if !settings.Provider.IsValid() && settings.Provider != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if !settings.IsConfigured() {
		return NewDisabledEmbedder(), nil
	}

	var (
		provider driven.EmbeddingProvider
		err      error
	)
	switch settings.Provider {
	case domain.ProviderMock:
		provider = NewHashEmbedder(settings.Dimensions)
	case domain.ProviderLocal:
		provider, err = NewLocalEmbedder(settings.BaseURL, settings.Model, settings.Dimensions, settings.Timeout)
	case domain.ProviderHosted:
		provider, err = NewHostedEmbedder(settings.APIKey, settings.Model, settings.BaseURL, settings.Dimensions)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	if settings.CacheSize > 0 {
		return NewCachedEmbedder(provider, settings.CacheSize)
	}
	return provider, nil
}

// CreateTextGenerator creates a text generator from settings
func (f *Factory) CreateTextGenerator(settings *domain.LLMSettings) (driven.TextGenerator, error) {
	if settings == nil {
		return NewDisabledGenerator(), nil
	}
	if !settings.Provider.IsValid() && settings.Provider != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if !settings.IsConfigured() {
		return NewDisabledGenerator(), nil
	}

	switch settings.Provider {
	case domain.ProviderMock:
		return NewEchoGenerator(f.mockResponse), nil
	case domain.ProviderLocal:
		return NewLocalGenerator(settings.BaseURL, settings.Model, settings.Timeout)
	case domain.ProviderHosted:
		return NewHostedGenerator(settings.APIKey, settings.Model, settings.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
