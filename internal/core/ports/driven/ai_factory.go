package driven

import (
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// AIServiceFactory creates AI providers based on configuration
type AIServiceFactory interface {
	// CreateEmbeddingProvider creates an embedding provider from settings.
	// Unconfigured settings yield the disabled provider, never nil.
	CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (EmbeddingProvider, error)

	// CreateTextGenerator creates a text generator from settings.
	// Unconfigured settings yield the disabled generator, never nil.
	CreateTextGenerator(settings *domain.LLMSettings) (TextGenerator, error)
}
