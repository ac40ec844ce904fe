package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tripflow/pkg/adapters/memory"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Expiry(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	store := memory.NewStore(memory.WithClock(clock))
	ctx := context.Background()
	record := domain.NewTripRecord(domain.Identity{Phone: "1"})

	require.NoError(t, store.Save(ctx, "a", record, 300*time.Second))
	require.NoError(t, store.Save(ctx, "forever", record, 0))

	advance(299 * time.Second)
	_, err := store.Load(ctx, "a")
	require.NoError(t, err)

	// Saving renews the TTL from the last write.
	require.NoError(t, store.Save(ctx, "a", record, 300*time.Second))
	advance(200 * time.Second)
	_, err = store.Load(ctx, "a")
	require.NoError(t, err)

	advance(100 * time.Second)
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, sessions)
}
