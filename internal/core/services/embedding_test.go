package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven/mocks"
)

func newEmbeddingFixture(t *testing.T, dimensions int) (*embeddingService, *mocks.MockEmbeddingProvider, *mocks.MockMemoryStore) {
	t.Helper()
	provider := mocks.NewMockEmbeddingProvider(testDimensions)
	store := mocks.NewMockMemoryStore()
	services := createTestServices(t, provider, nil)
	svc := NewEmbeddingService(services, store, EmbeddingConfig{
		Dimensions:          dimensions,
		BackfillConcurrency: 2,
	}).(*embeddingService)
	return svc, provider, store
}

func TestEmbedText(t *testing.T) {
	svc, provider, _ := newEmbeddingFixture(t, testDimensions)

	vec, err := svc.EmbedText(context.Background(), "  deploy checklist  ")
	require.NoError(t, err)
	assert.Len(t, vec, testDimensions)
	assert.Equal(t, []string{"deploy checklist"}, provider.Calls())
}

func TestEmbedText_BlankSkipsProvider(t *testing.T) {
	svc, provider, _ := newEmbeddingFixture(t, testDimensions)

	vec, err := svc.EmbedText(context.Background(), " \n\t")
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.Empty(t, provider.Calls())
}

func TestEmbedText_Disabled(t *testing.T) {
	svc, provider, _ := newEmbeddingFixture(t, testDimensions)
	provider.SetKind(domain.ProviderDisabled)

	assert.False(t, svc.Enabled())
	_, err := svc.EmbedText(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrEmbeddingDisabled)
	assert.Empty(t, provider.Calls())
}

func TestEmbedText_DimensionMismatch(t *testing.T) {
	svc, _, _ := newEmbeddingFixture(t, 32)

	_, err := svc.EmbedText(context.Background(), "deploy checklist")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbedText_ProviderError(t *testing.T) {
	svc, provider, _ := newEmbeddingFixture(t, testDimensions)
	provider.SetFailNext(true)

	_, err := svc.EmbedText(context.Background(), "deploy checklist")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Only the next call fails
	vec, err := svc.EmbedText(context.Background(), "deploy checklist")
	require.NoError(t, err)
	assert.NotNil(t, vec)
}

func TestAttachEmbedding(t *testing.T) {
	svc, _, _ := newEmbeddingFixture(t, testDimensions)
	m := &domain.Memory{ID: "m1", Content: "Deploy checklist", Lessons: "check latency"}

	assert.True(t, svc.AttachEmbedding(context.Background(), m, false))
	assert.Equal(t, mocks.BagOfWordsVector(m.EmbeddingText(), testDimensions), m.Embedding)
}

func TestAttachEmbedding_FailureKeepsPreviousVector(t *testing.T) {
	svc, provider, _ := newEmbeddingFixture(t, testDimensions)
	previous := mocks.BagOfWordsVector("old content", testDimensions)
	m := &domain.Memory{ID: "m1", Content: "new content", Embedding: previous}
	provider.SetError(errors.New("model not loaded"))

	assert.False(t, svc.AttachEmbedding(context.Background(), m, true))
	assert.Equal(t, previous, m.Embedding)
}

func TestAttachEmbedding_EmptyVector(t *testing.T) {
	tests := []struct {
		name      string
		saveEmpty bool
		changed   bool
		cleared   bool
	}{
		{name: "kept without saveEmpty", saveEmpty: false, changed: false, cleared: false},
		{name: "cleared with saveEmpty", saveEmpty: true, changed: true, cleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, provider, _ := newEmbeddingFixture(t, testDimensions)
			provider.SetReturnNil(true)
			m := &domain.Memory{ID: "m1", Content: "content", Embedding: []float32{1, 0}}

			assert.Equal(t, tt.changed, svc.AttachEmbedding(context.Background(), m, tt.saveEmpty))
			assert.Equal(t, tt.cleared, m.Embedding == nil)
		})
	}
}

func TestAttachEmbedding_DisabledLeavesMemoryUntouched(t *testing.T) {
	svc, provider, _ := newEmbeddingFixture(t, testDimensions)
	provider.SetKind(domain.ProviderDisabled)
	m := &domain.Memory{ID: "m1", Content: "content"}

	assert.False(t, svc.AttachEmbedding(context.Background(), m, true))
	assert.Nil(t, m.Embedding)
}

func TestBackfillMissingEmbeddings(t *testing.T) {
	svc, _, store := newEmbeddingFixture(t, testDimensions)

	for i := 0; i < 7; i++ {
		store.Add(&domain.Memory{
			ID:         fmt.Sprintf("m-%d", i),
			Content:    fmt.Sprintf("note number %d", i),
			Visibility: domain.VisibilityPublic,
		})
	}
	archivedAt := time.Now()
	store.Add(&domain.Memory{ID: "m-archived", Content: "old note", ArchivedAt: &archivedAt})
	store.UpdateErr["m-3"] = errors.New("row locked")

	updated, err := svc.BackfillMissingEmbeddings(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 6, updated)

	remaining, err := store.ListMissingEmbeddings(context.Background(), "", 100)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "m-3", remaining[0].ID)

	m, err := store.Get(context.Background(), "m-5")
	require.NoError(t, err)
	assert.True(t, m.HasEmbedding())

	archived, err := store.Get(context.Background(), "m-archived")
	require.NoError(t, err)
	assert.False(t, archived.HasEmbedding())
}

func TestBackfillMissingEmbeddings_RetriesOnNextRun(t *testing.T) {
	svc, _, store := newEmbeddingFixture(t, testDimensions)
	store.Add(&domain.Memory{ID: "m-1", Content: "first"})
	store.UpdateErr["m-1"] = errors.New("row locked")

	updated, err := svc.BackfillMissingEmbeddings(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, updated)

	delete(store.UpdateErr, "m-1")
	updated, err = svc.BackfillMissingEmbeddings(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func TestBackfillMissingEmbeddings_Disabled(t *testing.T) {
	svc, provider, store := newEmbeddingFixture(t, testDimensions)
	provider.SetKind(domain.ProviderDisabled)
	store.Add(&domain.Memory{ID: "m-1", Content: "first"})

	updated, err := svc.BackfillMissingEmbeddings(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Empty(t, provider.Calls())
}

func TestBackfillMissingEmbeddings_Cancelled(t *testing.T) {
	svc, _, store := newEmbeddingFixture(t, testDimensions)
	store.Add(&domain.Memory{ID: "m-1", Content: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.BackfillMissingEmbeddings(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
