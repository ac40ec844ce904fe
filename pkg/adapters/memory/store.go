package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
)

type entry struct {
	record    *domain.TripRecord
	expiresAt time.Time // zero means no expiry
}

// Store implements ports.SessionStore in memory, honoring TTLs.
// Safe for concurrent use.
type Store struct {
	data map[string]entry
	mu   sync.RWMutex
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a copy of the record. A zero ttl never expires.
func (s *Store) Save(_ context.Context, key string, record *domain.TripRecord, ttl time.Duration) error {
	e := entry{record: record.Clone()}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = e
	return nil
}

// Load returns a copy so callers can't mutate stored state through the pointer.
func (s *Store) Load(_ context.Context, key string) (*domain.TripRecord, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		return nil, domain.ErrSessionNotFound
	}
	return e.record.Clone(), nil
}

// Delete removes the record.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns live sessions in key order, dropping expired ones.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]string, 0, len(s.data))
	for key, e := range s.data {
		if s.expired(e) {
			delete(s.data, key)
			continue
		}
		sessions = append(sessions, key)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
