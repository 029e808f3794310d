package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingProvider = (*HashEmbedder)(nil)
	_ driven.TextGenerator     = (*EchoGenerator)(nil)
)

// HashEmbedder is the deterministic "mock" provider. Each lowercased word is
// hashed into a bucket and the vector is L2-normalized, so texts that share
// words land close together. Used for local development and evaluation runs
// without a model server.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a HashEmbedder
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Kind() domain.ProviderKind { return domain.ProviderMock }

// Embed returns the hashed bag-of-words vector; blank text yields nil
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil, nil
	}

	vec := make([]float32, e.dimensions)
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *HashEmbedder) Dimensions() int { return e.dimensions }

func (e *HashEmbedder) Model() string { return "hash-bow" }

func (e *HashEmbedder) HealthCheck(ctx context.Context) error { return nil }

func (e *HashEmbedder) Close() error { return nil }

// EchoGenerator is the "mock" text generator. It returns a fixed completion,
// which is empty unless configured.
type EchoGenerator struct {
	response string
}

// NewEchoGenerator creates an EchoGenerator
func NewEchoGenerator(response string) *EchoGenerator {
	return &EchoGenerator{response: response}
}

func (g *EchoGenerator) Kind() domain.ProviderKind { return domain.ProviderMock }

func (g *EchoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, nil
}

func (g *EchoGenerator) Model() string { return "echo" }

func (g *EchoGenerator) Ping(ctx context.Context) error { return nil }

func (g *EchoGenerator) Close() error { return nil }
