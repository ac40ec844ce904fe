package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tripflow/pkg/adapters/redis"
	"github.com/aretw0/tripflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Acquire Lock
	lease, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)

	assert.True(t, mr.Exists("test.lock:resource1"), "Lock key should be set in Redis")

	// 2. Release Lock
	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("test.lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := setup(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()
	key := "shared-resource"

	// 1. Client 1 acquires lock
	lease1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	// 2. Client 2 blocks until its deadline
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 3. Client 1 unlocks, client 2 succeeds
	require.NoError(t, lease1.Release(ctx))
	lease2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, lease2.Release(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "s", time.Second)
	require.NoError(t, err)

	// The first holder's lock expires and another replica takes it.
	mr.FastForward(2 * time.Second)
	fresh, err := locker.Lock(ctx, "s", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("test.lock:s"), "a stale holder must not release someone else's lock")

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("test.lock:s"))
}

func TestRedisLocker_ExtendFencesLostLease(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.Lock(ctx, "s", time.Second)
	require.NoError(t, err)

	require.NoError(t, lease.Extend(ctx, 10*time.Second))
	assert.Greater(t, mr.TTL("test.lock:s"), 5*time.Second)

	// Expired and taken over: extending must fail instead of stealing it back.
	mr.FastForward(11 * time.Second)
	other, err := locker.Lock(ctx, "s", 5*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, lease.Extend(ctx, 10*time.Second), ports.ErrLockLost)
	require.NoError(t, other.Release(ctx))
	assert.ErrorIs(t, lease.Extend(ctx, 10*time.Second), ports.ErrLockLost, "a released key is not ours either")
}
