package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/persistence"
	backend "github.com/redis/go-redis/v9"
)

// farFuture scores index entries of sessions saved without expiry.
const farFuture = 4102444800 // 2100-01-01

// ErrReservedKey is returned for session keys that would land on the store's own bookkeeping keys.
var ErrReservedKey = errors.New("session key collides with a reserved redis key")

// Store implements ports.SessionStore using Redis.
// Records live at <prefix><key>. Bookkeeping lives beside them, outside that
// keyspace: with prefix "trip_state:" the listing ZSET is "trip_state.index".
type Store struct {
	client backend.UniversalClient
	prefix string
	codec  persistence.Codec
	now    func() time.Time
}

type Option func(*Store)

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithCodec sets how records are encoded at rest.
func WithCodec(codec persistence.Codec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// WithClock overrides the clock used to score the session index.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: domain.SessionPrefix,
		codec:  persistence.JSON{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// namespace names a private key next to the records stored under prefix.
func namespace(prefix, name string) string {
	return strings.TrimSuffix(prefix, ":") + "." + name
}

func (s *Store) key(sessionKey string) (string, error) {
	key := s.prefix + sessionKey
	if strings.HasPrefix(key, namespace(s.prefix, "")) {
		return "", fmt.Errorf("%w: %q", ErrReservedKey, sessionKey)
	}
	return key, nil
}

func (s *Store) indexKey() string {
	return namespace(s.prefix, "index")
}

// Save persists the record and restarts its expiry. A zero ttl never expires.
func (s *Store) Save(ctx context.Context, sessionKey string, record *domain.TripRecord, ttl time.Duration) error {
	key, err := s.key(sessionKey)
	if err != nil {
		return err
	}
	data, err := s.codec.Marshal(record)
	if err != nil {
		return err
	}

	score := float64(s.now().Add(ttl).Unix())
	if ttl <= 0 {
		ttl = 0
		score = farFuture
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: sessionKey,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the record from Redis.
func (s *Store) Load(ctx context.Context, sessionKey string) (*domain.TripRecord, error) {
	key, err := s.key(sessionKey)
	if err != nil {
		return nil, err
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return s.codec.Unmarshal(val)
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionKey string) error {
	key, err := s.key(sessionKey)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, s.indexKey(), sessionKey)

	_, err = pipe.Exec(ctx)
	return err
}

// List returns live sessions, pruning index entries whose TTL has passed.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
