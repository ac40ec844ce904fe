package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost is returned when a lease expired and the key now belongs to someone else (or no one).
var ErrLockLost = errors.New("distributed lock lost")

// Lease is a held distributed lock.
type Lease interface {
	// Extend resets the expiry to ttl. It fails with ErrLockLost when the
	// lease is no longer ours, which makes it usable as a fence before writes.
	Extend(ctx context.Context, ttl time.Duration) error

	// Release frees the lock if it is still ours. It MUST be called.
	Release(ctx context.Context) error
}

// DistributedLocker serializes turns for one session across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	// The lock expires on its own after ttl if the holder dies.
	Lock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
