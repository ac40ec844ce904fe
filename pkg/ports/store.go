package ports

import (
	"context"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
)

// SessionStore persists one trip record per session key.
// Only single-key atomic puts are assumed; there are no multi-key transactions.
type SessionStore interface {
	// Save persists the record under key and (re)starts its expiry.
	Save(ctx context.Context, key string, record *domain.TripRecord, ttl time.Duration) error

	// Load retrieves the record for key.
	// Returns domain.ErrSessionNotFound if the key never existed or has expired.
	Load(ctx context.Context, key string) (*domain.TripRecord, error)
}

// SessionLister is implemented by stores that can enumerate live sessions.
// It serves operator tooling only; the turn path never lists.
type SessionLister interface {
	List(ctx context.Context) ([]string, error)
}

// SessionDeleter is implemented by stores that support explicit eviction.
// Like SessionLister it backs operator tooling; turns rely on expiry.
type SessionDeleter interface {
	Delete(ctx context.Context, key string) error
}
