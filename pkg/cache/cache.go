// Package cache provides TTL-based caching of API responses.
//
// The Databricks API client uses a [Store] to avoid re-fetching slowly
// changing data (cluster inventory, runtime catalogs, PyPI metadata).
// Entries are opaque byte payloads with a time-to-live; expired entries
// are ignored on read rather than swept in the background.
//
// Backends:
//   - [MemoryStore]: process-local map, for single commands and tests
//   - [FileStore]: JSON files on disk, survives across CLI invocations
//   - [RedisStore]: shared cache for multi-instance deployments
//   - [NullStore]: no-op, disables caching entirely
//
// Stores are not synchronized by the caller-facing client; a single
// logical owner per client instance is assumed. MemoryStore and
// RedisStore are nevertheless safe for concurrent use on their own.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when operating on a store after Close.
var ErrClosed = errors.New("cache store closed")

// Store is the interface for cache backends.
//
// Get returns (nil, false, nil) for both missing and expired entries;
// callers cannot distinguish the two and should simply re-fetch.
// Set unconditionally overwrites the entry and restarts its TTL.
// A ttl of 0 means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
