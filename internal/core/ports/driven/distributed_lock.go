package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates background work across replicas. The
// embedding backfill worker takes it so only one instance re-embeds the
// store at a time.
type DistributedLock interface {
	// Acquire takes the named lock for ttl. It reports false without error
	// when another holder owns it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release frees the named lock. Releasing a lock that is not held or has
	// already expired is not an error.
	Release(ctx context.Context, name string) error

	// Extend renews a held lock for another ttl
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks that the lock backend is reachable
	Ping(ctx context.Context) error
}
