// Package cache is the cache-aside layer in front of the relational store:
// an in-process LRU with TTL backed by Redis.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values by key.
type Cache interface {
	// Get decodes the value stored under key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key. A zero ttl means the cache's default TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// PatternInvalidator removes every key matching a glob pattern such as "session:1:role:2:*".
type PatternInvalidator interface {
	InvalidateByPattern(ctx context.Context, pattern string) (int, error)
}

// SharedCache is a cache level shared between processes. It must support
// pattern invalidation.
type SharedCache interface {
	Cache
	PatternInvalidator
}
