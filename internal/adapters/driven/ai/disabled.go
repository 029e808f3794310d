package ai

import (
	"context"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingProvider = (*DisabledEmbedder)(nil)
	_ driven.TextGenerator     = (*DisabledGenerator)(nil)
)

// DisabledEmbedder stands in when no embedding provider is configured.
// Search treats it as "semantic unavailable".
type DisabledEmbedder struct{}

// NewDisabledEmbedder creates the disabled embedding provider
func NewDisabledEmbedder() *DisabledEmbedder {
	return &DisabledEmbedder{}
}

func (DisabledEmbedder) Kind() domain.ProviderKind { return domain.ProviderDisabled }

func (DisabledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.ErrEmbeddingDisabled
}

func (DisabledEmbedder) Dimensions() int { return 0 }

func (DisabledEmbedder) Model() string { return "" }

func (DisabledEmbedder) HealthCheck(ctx context.Context) error { return nil }

func (DisabledEmbedder) Close() error { return nil }

// DisabledGenerator stands in when no LLM is configured
type DisabledGenerator struct{}

// NewDisabledGenerator creates the disabled text generator
func NewDisabledGenerator() *DisabledGenerator {
	return &DisabledGenerator{}
}

func (DisabledGenerator) Kind() domain.ProviderKind { return domain.ProviderDisabled }

func (DisabledGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", domain.ErrGenerationDisabled
}

func (DisabledGenerator) Model() string { return "" }

func (DisabledGenerator) Ping(ctx context.Context) error { return nil }

func (DisabledGenerator) Close() error { return nil }
