package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure LocalGenerator implements TextGenerator
var _ driven.TextGenerator = (*LocalGenerator)(nil)

// LocalGenerator implements TextGenerator against a self-hosted Ollama
// server through langchaingo
type LocalGenerator struct {
	llm     llms.Model
	baseURL string
	model   string
	client  *http.Client
}

// NewLocalGenerator creates a new local text generator
func NewLocalGenerator(baseURL, model string, timeout time.Duration) (*LocalGenerator, error) {
	if model == "" {
		return nil, fmt.Errorf("local LLM model is required")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")
	client := &http.Client{Timeout: timeout}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &LocalGenerator{
		llm:     llm,
		baseURL: baseURL,
		model:   model,
		client:  client,
	}, nil
}

func (g *LocalGenerator) Kind() domain.ProviderKind {
	return domain.ProviderLocal
}

// Generate returns the completion for a single prompt
func (g *LocalGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("local generation failed: %w", err)
	}
	return out, nil
}

// Model returns the model name being used
func (g *LocalGenerator) Model() string {
	return g.model
}

// Ping verifies the model server is reachable
func (g *LocalGenerator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: model server returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections
func (g *LocalGenerator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
