package driven

import (
	"context"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// TextGenerator completes a prompt. It backs the LLM rewrite expansion
// strategy.
type TextGenerator interface {
	// Kind returns which provider variant this is
	Kind() domain.ProviderKind

	// Generate returns the model's completion for the prompt.
	// The disabled generator returns domain.ErrGenerationDisabled.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the generator is available
	Ping(ctx context.Context) error

	// Close releases resources held by the generator
	Close() error
}
