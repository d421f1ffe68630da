package cache

import (
	"context"
	"errors"
	"time"
)

// NoExpiration disables per-entry expiry for a Set call.
const NoExpiration time.Duration = -1

// ErrKeyNotFound is returned by Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("key not found in cache")

// Cache is the generic key-value cache consumed by the higher-level stores.
// Implementations: inmemory (go-cache) and redis.
// NOTE: Cache does NOT provide cross-key atomicity - callers needing
// check-then-act semantics must synchronize themselves.
type Cache interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (interface{}, error)

	// Set stores value under key with the given expiration
	// (NoExpiration to keep it until deleted).
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// GetByPattern returns all entries whose keys match a glob pattern
	// (e.g. "client:*").
	GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error)

	// Clear drops every entry.
	Clear(ctx context.Context) error
}
