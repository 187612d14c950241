package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed cache, for deployments running the
// toolkit from multiple hosts against the same workspace. TTL handling
// is delegated to Redis key expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on top of an existing Redis client.
// All keys are prefixed with "dbxmaint:" to avoid collisions with
// other users of the same Redis instance.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "dbxmaint:"}
}

// Get retrieves a value. Redis expiry makes expired keys plain misses.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value with the given TTL. A zero TTL stores without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

// Delete removes a value. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
