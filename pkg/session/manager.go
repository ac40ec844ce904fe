package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
)

// DefaultTTL is how long a session survives without a turn.
const DefaultTTL = 300 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker       ports.DistributedLocker // Optional distributed locker
	lockTTL      time.Duration
	ttl          time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL bounds how long a crashed holder can block a session.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithTTL sets the session expiry renewed on every save.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.storeTimeout = timeout
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		locks:        make(map[string]*lockEntry),
		lockTTL:      60 * time.Second,
		ttl:          DefaultTTL,
		storeTimeout: 2 * time.Second,
		logger:       logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// TTL returns the session expiry applied on save.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, key string) (*domain.TripRecord, error) {
	var record *domain.TripRecord
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		record, err = m.load(ctx, key)
		return err
	})
	return record, err
}

// Save persists the record and renews its TTL.
func (m *Manager) Save(ctx context.Context, key string, record *domain.TripRecord) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.save(ctx, key, record)
	})
}

// Delete evicts the session when the store supports it.
func (m *Manager) Delete(ctx context.Context, key string) error {
	deleter, ok := m.store.(ports.SessionDeleter)
	if !ok {
		return fmt.Errorf("store %T does not support deletion", m.store)
	}
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return deleter.Delete(ctx, key)
	})
}

// List delegates to the store when it can enumerate sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	lister, ok := m.store.(ports.SessionLister)
	if !ok {
		return nil, fmt.Errorf("store %T does not support listing", m.store)
	}
	return lister.List(ctx)
}

// WithLock executes a function while holding the lock for the session.
//
// With a distributed locker the lease is extended every third of its TTL
// while fn runs, and saves made through fn's context are fenced on it: once
// the lease is lost, fn's context is cancelled and writes fail with
// ports.ErrLockLost instead of overwriting another holder's turn.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker == nil {
		return fn(ctx)
	}

	lease, err := m.locker.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"session_id", key,
				"err", err,
			)
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.keepAlive(ctx, key, lease, stop, cancel)
	}()
	defer func() {
		close(stop)
		<-done
	}()

	err = fn(context.WithValue(ctx, leaseKey{}, lease))
	if cause := context.Cause(ctx); err != nil && errors.Is(cause, ports.ErrLockLost) && !errors.Is(err, ports.ErrLockLost) {
		return fmt.Errorf("%w: %w (after: %v)", domain.ErrPersistenceFailed, cause, err)
	}
	return err
}

type leaseKey struct{}

// keepAlive extends the lease until stop is closed. A lost lease cancels the holder's context.
func (m *Manager) keepAlive(ctx context.Context, key string, lease ports.Lease, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	interval := m.lockTTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := m.extend(ctx, lease)
		switch {
		case errors.Is(err, ports.ErrLockLost):
			m.logger.Error("distributed lock lost during turn", "session_id", key, "err", err)
			cancel(err)
			return
		case err != nil:
			m.logger.Warn("failed to extend distributed lock", "session_id", key, "err", err)
		}
	}
}

func (m *Manager) extend(ctx context.Context, lease ports.Lease) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()
	return lease.Extend(ctx, m.lockTTL)
}

// loadOrNew returns the stored record or a fresh one for identity. Fresh records are not persisted.
// Callers must hold the session lock.
func (m *Manager) loadOrNew(ctx context.Context, key string, identity domain.Identity) (*domain.TripRecord, bool, error) {
	record, err := m.load(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.NewTripRecord(identity), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return record, false, nil
}

func (m *Manager) load(ctx context.Context, key string) (*domain.TripRecord, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()
	return m.store.Load(ctx, key)
}

func (m *Manager) save(ctx context.Context, key string, record *domain.TripRecord) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}
	if lease, ok := ctx.Value(leaseKey{}).(ports.Lease); ok {
		if err := m.extend(ctx, lease); err != nil {
			return err
		}
	}
	ctx, cancel := m.bound(ctx)
	defer cancel()
	return m.store.Save(ctx, key, record, m.ttl)
}

func (m *Manager) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.storeTimeout)
}
