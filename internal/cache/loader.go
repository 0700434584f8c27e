package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/metrics"
)

// GetOrLoad returns the value cached under key, or calls load and caches its
// result. Cache failures are logged and never fail the caller: the store stays
// the source of truth.
func GetOrLoad[T any](ctx context.Context, c Cache, log zerolog.Logger, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	ok, err := c.Get(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling back to store")
	}
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return value, nil
}
