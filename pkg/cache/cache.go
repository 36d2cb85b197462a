// Package cache provides pluggable response caching for the RPC client.
//
// Backends:
//   - memory: in-process map, the default for crawls
//   - file: directory of JSON entries, survives CLI invocations
//   - null: no-op, disables caching entirely
//
// Entries carry a TTL so incremental re-crawls (auto-refresh) can reuse
// fresh node responses without re-querying every endpoint.
package cache

import (
	"context"
	"time"
)

// Cache is the interface for cache backends.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (nil, false, nil) on a miss; expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
