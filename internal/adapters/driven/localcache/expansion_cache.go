// Package localcache holds in-process caches used when no Redis is configured.
package localcache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExpansionCache = (*ExpansionCache)(nil)

// DefaultSize is the entry bound used when none is given
const DefaultSize = 1024

type entry struct {
	candidates []string
	expiresAt  time.Time
}

// ExpansionCache implements driven.ExpansionCache with a bounded LRU.
// Entries expire lazily on read.
type ExpansionCache struct {
	cache *lru.Cache[string, entry]
	now   func() time.Time
}

// NewExpansionCache creates an in-process cache holding at most size queries
func NewExpansionCache(size int) (*ExpansionCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create expansion cache: %w", err)
	}
	return &ExpansionCache{cache: cache, now: time.Now}, nil
}

// Get returns cached rewrite candidates for a query
func (c *ExpansionCache) Get(ctx context.Context, query string) ([]string, bool, error) {
	key := domain.NormalizeQuery(query)
	e, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.cache.Remove(key)
		return nil, false, nil
	}
	return append([]string{}, e.candidates...), true, nil
}

// Set stores candidates for a query. A non-positive TTL is ignored.
func (c *ExpansionCache) Set(ctx context.Context, query string, candidates []string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.cache.Add(domain.NormalizeQuery(query), entry{
		candidates: append([]string{}, candidates...),
		expiresAt:  c.now().Add(ttl),
	})
	return nil
}

// Len returns the number of entries, including expired ones not yet read
func (c *ExpansionCache) Len() int {
	return c.cache.Len()
}
