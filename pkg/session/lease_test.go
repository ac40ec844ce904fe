package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tripflow/internal/testutils"
	"github.com/aretw0/tripflow/pkg/adapters/extractor"
	"github.com/aretw0/tripflow/pkg/adapters/memory"
	redisadapter "github.com/aretw0/tripflow/pkg/adapters/redis"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replica(store ports.SessionStore, locker ports.DistributedLocker, ex ports.Extractor) *session.Orchestrator {
	mgr := session.NewManager(store,
		session.WithLocker(locker),
		session.WithLockTTL(100*time.Millisecond),
	)
	return session.NewOrchestrator(mgr, ex)
}

func TestTurn_ExpiredLeaseNeverOverwritesAnotherReplica(t *testing.T) {
	mr, client := testutils.SetupRedis(t)
	store := redisadapter.NewFromClient(client, redisadapter.WithPrefix("trip:"))
	ctx := context.Background()
	caller := domain.Identity{Phone: "9000000042"}

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := extractor.Func(func(ctx context.Context, _ string, _ *domain.TripRecord) ([]byte, error) {
		close(entered)
		<-release
		return []byte(`{"destination":"Rewa"}`), nil
	})

	a := replica(store, redisadapter.NewLocker(client, "trip:"), slow)
	b := replica(store, redisadapter.NewLocker(client, "trip:"), testutils.StaticExtractor(`{"source":"Indore"}`))

	type outcome struct {
		res *session.TurnResult
		err error
	}
	aDone := make(chan outcome, 1)
	go func() {
		res, err := a.Turn(ctx, session.TurnRequest{Identity: caller, Text: "going to rewa"})
		aDone <- outcome{res, err}
	}()

	<-entered
	// A stalls past its lease; B takes the session over.
	mr.FastForward(time.Second)
	resB, err := b.Turn(ctx, session.TurnRequest{Identity: caller, Text: "from indore"})
	require.NoError(t, err)
	assert.Equal(t, "Indore", domain.Value(resB.Record.Source))

	close(release)
	got := <-aDone
	require.Error(t, got.err, "a turn that lost its lease must not commit")
	assert.ErrorIs(t, got.err, domain.ErrPersistenceFailed)
	assert.ErrorIs(t, got.err, ports.ErrLockLost)
	assert.Equal(t, "persistence_failed", domain.ErrorKind(got.err))

	stored, err := store.Load(ctx, caller.Phone)
	require.NoError(t, err)
	assert.Equal(t, "Indore", domain.Value(stored.Source), "the committed turn survives")
	assert.Nil(t, stored.Destination)

	// A retry on top of B's record keeps both slots.
	retry := replica(store, redisadapter.NewLocker(client, "trip:"), testutils.StaticExtractor(`{"destination":"Rewa"}`))
	res, err := retry.Turn(ctx, session.TurnRequest{Identity: caller, Text: "going to rewa"})
	require.NoError(t, err)
	assert.Equal(t, "Indore", domain.Value(res.Record.Source))
	assert.Equal(t, "Rewa", domain.Value(res.Record.Destination))
}

func TestWithLock_KeepsLeaseAliveDuringLongTurns(t *testing.T) {
	mr, client := testutils.SetupRedis(t)
	mgr := session.NewManager(memory.NewStore(),
		session.WithLocker(redisadapter.NewLocker(client, "t:")),
		session.WithLockTTL(300*time.Millisecond),
	)

	err := mgr.WithLock(context.Background(), "k", func(ctx context.Context) error {
		// Several TTLs of wall time; miniredis only expires on FastForward,
		// so step its clock under the renewals.
		for i := 0; i < 8; i++ {
			time.Sleep(50 * time.Millisecond)
			mr.FastForward(50 * time.Millisecond)
		}
		require.NoError(t, ctx.Err(), "the lease must still be ours")
		return mgr.Store().Save(ctx, "k", domain.NewTripRecord(domain.Identity{Phone: "k"}), time.Minute)
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("t.lock:k"), "released after the turn")
}
