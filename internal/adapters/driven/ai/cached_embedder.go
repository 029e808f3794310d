package ai

import (
	"context"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
)

// Ensure CachedEmbedder implements EmbeddingProvider
var _ driven.EmbeddingProvider = (*CachedEmbedder)(nil)

// CachedEmbedder memoizes another provider's vectors by model and text.
// Errors and empty vectors are not cached.
type CachedEmbedder struct {
	inner driven.EmbeddingProvider
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache holding size entries
func NewCachedEmbedder(inner driven.EmbeddingProvider, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Kind() domain.ProviderKind {
	return c.inner.Kind()
}

// Embed returns a cached vector or delegates. Returned slices are copies.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.cache.Get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return append([]float32(nil), vec...), nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		return vec, err
	}
	c.cache.Add(key, append([]float32(nil), vec...))
	return vec, nil
}

// Len returns the number of cached vectors
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

// Close purges the cache and closes the wrapped provider
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

func (c *CachedEmbedder) key(text string) string {
	sum := blake2b.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
