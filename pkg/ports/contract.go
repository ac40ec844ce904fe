package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract. Listing and deletion are exercised when the
// store implements SessionLister or SessionDeleter.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")
	ttl := time.Minute

	sample := func() *domain.TripRecord {
		r := domain.NewTripRecord(domain.Identity{ID: "c1", Name: "Contract", Phone: "9999999999"})
		r.Source = domain.Str("Indore")
		r.TripType = domain.TripOneWay
		r.Preferences.Language = domain.LangHindi
		r.Intent = domain.IntentAskDestination
		return r
	}

	t.Run("Save and Load", func(t *testing.T) {
		record := sample()
		require.NoError(t, store.Save(ctx, key, record, ttl), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record, loaded)
	})

	t.Run("Unset Slots Stay Unset", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, domain.NewTripRecord(domain.Identity{Phone: "1"}), ttl))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, loaded.Source)
		assert.Nil(t, loaded.Destination)
		assert.Nil(t, loaded.TripStartDate)
		assert.Nil(t, loaded.TripEndDate)
	})

	t.Run("Overwrite", func(t *testing.T) {
		first := sample()
		require.NoError(t, store.Save(ctx, key, first, ttl))

		second := sample()
		second.Destination = domain.Str("Rewa")
		second.Intent = domain.IntentAskDate
		require.NoError(t, store.Save(ctx, key, second, ttl))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Rewa", domain.Value(loaded.Destination))
		assert.Equal(t, domain.IntentAskDate, loaded.Intent)
	})

	t.Run("Loaded Record Is Detached", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, sample(), ttl))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		*loaded.Source = "Mutated"

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Indore", domain.Value(again.Source))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	if lister, ok := store.(SessionLister); ok {
		t.Run("List", func(t *testing.T) {
			k1, k2 := key+"-1", key+"-2"
			require.NoError(t, store.Save(ctx, k1, sample(), ttl))
			require.NoError(t, store.Save(ctx, k2, sample(), ttl))

			sessions, err := lister.List(ctx)
			require.NoError(t, err)
			assert.Contains(t, sessions, k1)
			assert.Contains(t, sessions, k2)
		})
	}

	if deleter, ok := store.(SessionDeleter); ok {
		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, store.Save(ctx, key, sample(), ttl))
			require.NoError(t, deleter.Delete(ctx, key), "Delete should not return error")

			_, err := store.Load(ctx, key)
			assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
		})
	}
}
