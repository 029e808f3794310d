package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure HostedGenerator implements TextGenerator
var _ driven.TextGenerator = (*HostedGenerator)(nil)

// HostedGenerator implements TextGenerator using an OpenAI-compatible chat
// completions API
type HostedGenerator struct {
	client *openai.Client
	model  string
}

// NewHostedGenerator creates a new hosted text generator
func NewHostedGenerator(apiKey, model, baseURL string) (*HostedGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("hosted LLM API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &HostedGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (g *HostedGenerator) Kind() domain.ProviderKind {
	return domain.ProviderHosted
}

// Generate sends the prompt as a single user message
func (g *HostedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("hosted API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model name being used
func (g *HostedGenerator) Model() string {
	return g.model
}

// Ping verifies API availability via ListModels
func (g *HostedGenerator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

// Close is a no-op; the client holds no resources
func (g *HostedGenerator) Close() error {
	return nil
}
