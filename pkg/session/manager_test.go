package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tripflow/pkg/adapters/memory"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.TripRecord
	ttls map[string]time.Duration
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, key string, record *domain.TripRecord, ttl time.Duration) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.TripRecord)
		s.ttls = make(map[string]time.Duration)
	}
	s.data[key] = record.Clone()
	s.ttls[key] = ttl
	return nil
}

func (s *SlowStore) Load(ctx context.Context, key string) (*domain.TripRecord, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.data[key]; ok {
		return r.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func TestManager_WithLockSerializesReadModifyWrite(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	key := "9000000001"

	require.NoError(t, manager.Save(ctx, key, domain.NewTripRecord(domain.Identity{Phone: key})))

	// Each writer appends one character to the source. Without the lock,
	// concurrent read-modify-write cycles would drop some of them.
	var wg sync.WaitGroup
	writers := 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, key, func(ctx context.Context) error {
				r, err := store.Load(ctx, key)
				if err != nil {
					return err
				}
				r.Source = domain.Str(domain.Value(r.Source) + "x")
				return store.Save(ctx, key, r, manager.TTL())
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	r, err := manager.Load(ctx, key)
	require.NoError(t, err)
	assert.Len(t, domain.Value(r.Source), writers)
}

func TestManager_SaveAppliesTTL(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store, session.WithTTL(42*time.Second))

	require.NoError(t, manager.Save(context.Background(), "k", domain.NewTripRecord(domain.Identity{})))
	assert.Equal(t, 42*time.Second, store.ttls["k"])
}

func TestManager_ListAndDelete(t *testing.T) {
	ctx := context.Background()

	plain := session.NewManager(&SlowStore{})
	_, err := plain.List(ctx)
	assert.Error(t, err, "stores without listing are reported, not faked")
	assert.Error(t, plain.Delete(ctx, "k"))

	manager := session.NewManager(memory.NewStore())
	for i := 0; i < 3; i++ {
		require.NoError(t, manager.Save(ctx, fmt.Sprintf("k%d", i), domain.NewTripRecord(domain.Identity{})))
	}
	require.NoError(t, manager.Delete(ctx, "k1"))

	keys, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k0", "k2"}, keys)
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	return nil, fmt.Errorf("cluster unavailable")
}

func TestManager_DistributedLockFailure(t *testing.T) {
	manager := session.NewManager(memory.NewStore(), session.WithLocker(failingLocker{}))

	called := false
	err := manager.WithLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "cluster unavailable")
	assert.False(t, called)
}

func TestManager_LockLifecycle(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	// Locks for distinct sessions never block each other.
	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "a", func(context.Context) error {
			return manager.WithLock(ctx, "b", func(context.Context) error { return nil })
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distinct session locks blocked each other")
	}
}
