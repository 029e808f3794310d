package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
)

// BackfillLockName is the distributed lock that serializes backfill runs
// across worker replicas.
const BackfillLockName = "hindsight:backfill:embeddings"

// Worker periodically embeds stored memories that are missing a vector.
// Only one replica runs a pass at a time when a lock is configured.
type Worker struct {
	embeddings driving.EmbeddingService
	lock       driven.DistributedLock
	logger     *slog.Logger

	// Configuration
	batchSize int
	interval  time.Duration
	lockTTL   time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastRun     time.Time
	lastUpdated int
	lastErr     error
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Embeddings driving.EmbeddingService
	Lock       driven.DistributedLock // Optional; nil runs every pass locally
	Logger     *slog.Logger
	BatchSize  int           // Memories fetched per store page
	Interval   time.Duration // Time between passes
	LockTTL    time.Duration // Lock lease; should exceed a pass duration
}

// NewWorker creates a new backfill worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	return &Worker{
		embeddings: cfg.Embeddings,
		lock:       cfg.Lock,
		logger:     logger.With("component", "backfill_worker"),
		batchSize:  batchSize,
		interval:   interval,
		lockTTL:    lockTTL,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"interval", w.interval,
		"batch_size", w.batchSize,
		"embedding_enabled", w.embeddings.Enabled(),
	)

	go w.loop(ctx)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	doneCh := w.doneCh
	w.mu.RUnlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	// Run once immediately, then on every tick
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			w.logger.Info("worker stop signal received")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single backfill pass. It returns false without doing any
// work when embeddings are disabled or another replica holds the lock.
func (w *Worker) RunOnce(ctx context.Context) bool {
	if !w.embeddings.Enabled() {
		w.logger.Debug("embeddings disabled, skipping backfill")
		return false
	}

	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx, BackfillLockName, w.lockTTL)
		if err != nil {
			w.logger.Error("failed to acquire backfill lock", "error", err)
			w.record(0, err)
			return false
		}
		if !acquired {
			w.logger.Debug("backfill lock held elsewhere, skipping")
			return false
		}
		defer func() {
			// Release with a fresh context so cancellation still frees the lock
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.lock.Release(releaseCtx, BackfillLockName); err != nil {
				w.logger.Warn("failed to release backfill lock", "error", err)
			}
		}()
	}

	startTime := time.Now()
	updated, err := w.embeddings.BackfillMissingEmbeddings(ctx, w.batchSize)
	duration := time.Since(startTime)

	if err != nil {
		w.logger.Error("backfill pass failed",
			"updated", updated,
			"duration", duration,
			"error", err,
		)
	} else {
		w.logger.Info("backfill pass completed", "updated", updated, "duration", duration)
	}

	w.record(updated, err)
	return true
}

func (w *Worker) record(updated int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = time.Now()
	w.lastUpdated = updated
	w.lastErr = err
}

// Health is the status of the worker.
type Health struct {
	Running     bool      `json:"running"`
	LockHealth  bool      `json:"lock_health"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastUpdated int       `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	health := Health{
		Running:     w.running,
		LastRun:     w.lastRun,
		LastUpdated: w.lastUpdated,
		LockHealth:  true,
	}
	if w.lastErr != nil {
		health.Error = w.lastErr.Error()
	}
	w.mu.RUnlock()

	if w.lock != nil {
		if err := w.lock.Ping(ctx); err != nil {
			health.LockHealth = false
			health.Error = err.Error()
		}
	}

	return health
}
