package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Layered reads through a local level to a shared level and fills the local level
// on a shared hit. Writes go to both levels.
//
// Pattern invalidation only reaches the shared level; local entries age out on
// their own TTL.
type Layered struct {
	local  Cache
	shared SharedCache
	log    zerolog.Logger
}

// NewLayered combines local (usually a MemoryCache) and shared (usually a RedisCache).
func NewLayered(local Cache, shared SharedCache, log zerolog.Logger) *Layered {
	return &Layered{
		local:  local,
		shared: shared,
		log:    log.With().Str("component", "cache").Logger(),
	}
}

func (c *Layered) Get(ctx context.Context, key string, dst any) (bool, error) {
	if ok, err := c.local.Get(ctx, key, dst); err == nil && ok {
		return true, nil
	}
	ok, err := c.shared.Get(ctx, key, dst)
	if err != nil || !ok {
		return false, err
	}
	if err := c.local.Set(ctx, key, dst, 0); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to fill local cache")
	}
	return true, nil
}

func (c *Layered) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to set local cache")
	}
	return c.shared.Set(ctx, key, value, ttl)
}

func (c *Layered) Delete(ctx context.Context, keys ...string) error {
	_ = c.local.Delete(ctx, keys...)
	return c.shared.Delete(ctx, keys...)
}

// InvalidateByPattern removes matching keys from the shared level.
func (c *Layered) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	return c.shared.InvalidateByPattern(ctx, pattern)
}
