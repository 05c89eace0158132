package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a TTL cache over opaque string keys and JSON-serializable values.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get unmarshals the cached value for key into dest, or returns ErrMiss.
	Get(ctx context.Context, key string, dest any) error
	// SetWithTTL stores value under key for ttl. Non-positive ttl stores nothing.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error
}

// GetOrCreate returns the cached value for key, or on miss invokes create,
// stores its result with the returned TTL, and returns it. Concurrent callers
// racing on the same key may each invoke create; acceptable here because the
// factories are idempotent reads.
func GetOrCreate[T any](ctx context.Context, s Store, key string, create func(ctx context.Context) (T, time.Duration, error)) (T, error) {
	var cached T
	if err := s.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}
	value, ttl, err := create(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := s.SetWithTTL(ctx, key, value, ttl); err != nil {
		var zero T
		return zero, fmt.Errorf("cache set %q: %w", key, err)
	}
	return value, nil
}

// RedisStore implements Store on a Redis connection with JSON values.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string, dest any) error {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("cache unmarshal %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %q: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}
