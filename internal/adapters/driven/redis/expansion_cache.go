package redis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExpansionCache = (*ExpansionCache)(nil)

const expansionPrefix = "hindsight:expansion:"

// ExpansionCache implements driven.ExpansionCache using Redis. Entries are
// JSON arrays keyed by a hash of the normalized query and expire by TTL.
type ExpansionCache struct {
	client *redis.Client
}

// NewExpansionCache creates a new Redis-backed ExpansionCache
func NewExpansionCache(client *redis.Client) *ExpansionCache {
	return &ExpansionCache{client: client}
}

// Get returns cached rewrite candidates for a query
func (c *ExpansionCache) Get(ctx context.Context, query string) ([]string, bool, error) {
	data, err := c.client.Get(ctx, expansionKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get expansion: %w", err)
	}

	var candidates []string
	if err := json.Unmarshal(data, &candidates); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next Set
		return nil, false, nil
	}
	return candidates, true, nil
}

// Set stores candidates for a query. A non-positive TTL is ignored.
func (c *ExpansionCache) Set(ctx context.Context, query string, candidates []string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if candidates == nil {
		candidates = []string{}
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal expansion: %w", err)
	}
	if err := c.client.Set(ctx, expansionKey(query), data, ttl).Err(); err != nil {
		return fmt.Errorf("set expansion: %w", err)
	}
	return nil
}

// expansionKey hashes the normalized query so keys have a fixed length
func expansionKey(query string) string {
	sum := blake2b.Sum256([]byte(domain.NormalizeQuery(query)))
	return expansionPrefix + hex.EncodeToString(sum[:])
}
