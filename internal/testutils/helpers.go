package testutils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tripflow/pkg/adapters/extractor"
	"github.com/aretw0/tripflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// SetupRedis starts an in-process Redis server and a client connected to it.
// Both are closed when the test ends.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return mr, client
}

// StaticExtractor answers every utterance with payload.
func StaticExtractor(payload string) extractor.Func {
	return func(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error) {
		return []byte(payload), nil
	}
}
