package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/runtime"
)

// Ensure embeddingService implements EmbeddingService
var _ driving.EmbeddingService = (*embeddingService)(nil)

const (
	defaultBackfillBatchSize   = 100
	defaultBackfillConcurrency = 4
)

// EmbeddingConfig configures the embedding service
type EmbeddingConfig struct {
	// Dimensions is the fixed vector size; 0 accepts the provider's size
	Dimensions int

	// Timeout bounds each provider call
	Timeout time.Duration

	// BackfillConcurrency is the worker pool size used per backfill batch
	BackfillConcurrency int

	Logger *slog.Logger
}

// embeddingService computes memory vectors with the provider held by
// runtime.Services
type embeddingService struct {
	services *runtime.Services
	store    driven.MemoryStore
	cfg      EmbeddingConfig
	logger   *slog.Logger
}

// NewEmbeddingService creates a new EmbeddingService
func NewEmbeddingService(services *runtime.Services, store driven.MemoryStore, cfg EmbeddingConfig) driving.EmbeddingService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BackfillConcurrency <= 0 {
		cfg.BackfillConcurrency = defaultBackfillConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingService{
		services: services,
		store:    store,
		cfg:      cfg,
		logger:   logger.With("component", "embedding"),
	}
}

// Enabled reports whether a real provider is configured
func (s *embeddingService) Enabled() bool {
	p := s.services.EmbeddingProvider()
	return p != nil && p.Kind() != domain.ProviderDisabled
}

// EmbedText embeds trimmed text. Blank text returns nil without calling the
// provider.
func (s *embeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	p := s.services.EmbeddingProvider()
	if p == nil || p.Kind() == domain.ProviderDisabled {
		return nil, domain.ErrEmbeddingDisabled
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	vec, err := p.Embed(callCtx, text)
	metrics.EmbeddingRequestDuration.WithLabelValues(string(p.Kind()), p.Model()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(p.Kind()), p.Model(), "error").Inc()
		return nil, fmt.Errorf("embed text: %w", err)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(string(p.Kind()), p.Model(), "success").Inc()

	if len(vec) == 0 {
		return nil, nil
	}
	if s.cfg.Dimensions > 0 && len(vec) != s.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), s.cfg.Dimensions)
	}
	return vec, nil
}

// AttachEmbedding computes the vector for a memory from all its textual
// fields. Provider failures keep the previous vector. With saveEmpty, a
// memory whose text is blank has its vector cleared.
func (s *embeddingService) AttachEmbedding(ctx context.Context, m *domain.Memory, saveEmpty bool) bool {
	if !s.Enabled() {
		return false
	}

	vec, err := s.EmbedText(ctx, m.EmbeddingText())
	if err != nil {
		s.logger.Warn("embedding failed, keeping previous vector",
			"memory_id", m.ID,
			"error", err)
		return false
	}

	if vec == nil {
		if saveEmpty && m.Embedding != nil {
			m.Embedding = nil
			return true
		}
		return false
	}

	m.Embedding = vec
	return true
}

// BackfillMissingEmbeddings walks memories without a vector in ID order and
// embeds them batch by batch. Failed records are counted and skipped; they
// are picked up again by the next run.
func (s *embeddingService) BackfillMissingEmbeddings(ctx context.Context, batchSize int) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBackfillBatchSize
	}

	pool, err := ants.NewPool(s.cfg.BackfillConcurrency)
	if err != nil {
		return 0, fmt.Errorf("create backfill pool: %w", err)
	}
	defer pool.Release()

	var updated, failed int64
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return int(updated), err
		}

		batch, err := s.store.ListMissingEmbeddings(ctx, afterID, batchSize)
		if err != nil {
			return int(updated), fmt.Errorf("list missing embeddings: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		var wg sync.WaitGroup
		for _, m := range batch {
			m := m
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				if s.backfillOne(ctx, m) {
					atomic.AddInt64(&updated, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			})
			if submitErr != nil {
				wg.Done()
				atomic.AddInt64(&failed, 1)
			}
		}
		wg.Wait()

		if len(batch) < batchSize {
			break
		}
	}

	metrics.BackfillEmbeddingsTotal.WithLabelValues("updated").Add(float64(updated))
	metrics.BackfillEmbeddingsTotal.WithLabelValues("failed").Add(float64(failed))
	s.logger.Info("embedding backfill complete", "updated", updated, "failed", failed)
	return int(updated), nil
}

func (s *embeddingService) backfillOne(ctx context.Context, m *domain.Memory) bool {
	vec, err := s.EmbedText(ctx, m.EmbeddingText())
	if err != nil || vec == nil {
		s.logger.Debug("backfill skipped memory", "memory_id", m.ID, "error", err)
		return false
	}
	if err := s.store.UpdateEmbedding(ctx, m.ID, vec); err != nil {
		s.logger.Warn("backfill update failed", "memory_id", m.ID, "error", err)
		return false
	}
	return true
}
