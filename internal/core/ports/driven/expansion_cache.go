package driven

import (
	"context"
	"time"
)

// ExpansionCache stores LLM rewrite candidates by normalized query
type ExpansionCache interface {
	// Get returns cached candidates and whether the key was present
	Get(ctx context.Context, query string) ([]string, bool, error)

	// Set stores candidates for a query with a TTL
	Set(ctx context.Context, query string, candidates []string, ttl time.Duration) error
}
