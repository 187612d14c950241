package cache

import (
	"context"
	"time"
)

// NullStore is a no-op cache that never stores anything.
// Used when caching is disabled via --no-cache, and in tests that
// must observe every network call.
type NullStore struct{}

// NewNullStore creates a null store.
func NewNullStore() *NullStore { return &NullStore{} }

// Get always reports a miss.
func (*NullStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set does nothing.
func (*NullStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete does nothing.
func (*NullStore) Delete(ctx context.Context, key string) error { return nil }

// Close does nothing.
func (*NullStore) Close() error { return nil }

var _ Store = (*NullStore)(nil)
