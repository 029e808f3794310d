package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven/mocks"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/runtime"
)

const testDimensions = 256

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// createTestServices creates a runtime registry holding the given providers
func createTestServices(t *testing.T, embedder driven.EmbeddingProvider, generator driven.TextGenerator) *runtime.Services {
	t.Helper()
	services, err := runtime.NewServices(domain.NewRuntimeConfig("mock"), nil, domain.AISettings{})
	require.NoError(t, err)
	if embedder != nil {
		services.SetEmbeddingProvider(embedder)
	}
	if generator != nil {
		services.SetTextGenerator(generator)
	}
	return services
}

// newMemory builds a public memory with its bag-of-words embedding attached
func newMemory(id, content string, age time.Duration) *domain.Memory {
	return &domain.Memory{
		ID:         id,
		OwnerID:    "user-1",
		Content:    content,
		Visibility: domain.VisibilityPublic,
		CreatedAt:  testNow.Add(-age),
		UpdatedAt:  testNow.Add(-age),
		Embedding:  mocks.BagOfWordsVector(content, testDimensions),
	}
}

// searchFixture wires a search service over in-memory fakes
type searchFixture struct {
	store     *mocks.MockMemoryStore
	embedder  *mocks.MockEmbeddingProvider
	generator *mocks.MockTextGenerator
	runtime   *runtime.Services
	expander  *queryExpansionEngine
	svc       *searchService
}

func newSearchFixture(t *testing.T, expansion domain.ExpansionSettings) *searchFixture {
	t.Helper()
	f := &searchFixture{
		store:     mocks.NewMockMemoryStore(),
		embedder:  mocks.NewMockEmbeddingProvider(testDimensions),
		generator: mocks.NewMockTextGenerator(""),
	}
	f.runtime = createTestServices(t, f.embedder, f.generator)
	embeddings := NewEmbeddingService(f.runtime, f.store, EmbeddingConfig{Dimensions: testDimensions})
	f.expander = NewQueryExpansionEngine(QueryExpansionConfig{Settings: expansion}, f.runtime).(*queryExpansionEngine)
	f.svc = NewSearchService(f.store, embeddings, f.expander, SearchConfig{
		Fusion: domain.DefaultFusionConfig(),
		Now:    func() time.Time { return testNow },
	}).(*searchService)
	return f
}

func noExpansion() domain.ExpansionSettings {
	return domain.ExpansionSettings{Enabled: false}
}

func resultIDs(items []*domain.ScoredResult) []string {
	ids := make([]string, len(items))
	for i, r := range items {
		ids[i] = r.ID()
	}
	return ids
}
