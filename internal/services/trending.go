package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tastetrail/backend/internal/cache"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
)

const trendingPrefix = "trending:"

// trendingCache memoizes ranked pages. Every cache error is treated as a
// miss so a cache outage only costs a recomputation.
type trendingCache struct {
	cache cache.Cache
	ttl   time.Duration
}

func trendingKey(kind, filter string, p PageRequest) string {
	p = p.normalize()
	return fmt.Sprintf("%s%s:%s:%d:%d", trendingPrefix, kind, filter, p.Page, p.Limit)
}

func (t *trendingCache) get(ctx context.Context, key string, dst interface{}) bool {
	if t == nil || t.cache == nil {
		return false
	}
	err := t.cache.Get(ctx, key, dst)
	switch {
	case err == nil:
		metrics.CacheResults.WithLabelValues("trending", "hit").Inc()
		return true
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.CacheResults.WithLabelValues("trending", "miss").Inc()
	default:
		metrics.CacheResults.WithLabelValues("trending", "error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed, recomputing")
	}
	return false
}

func (t *trendingCache) set(ctx context.Context, key string, v interface{}) {
	if t == nil || t.cache == nil || t.ttl <= 0 {
		return
	}
	if err := t.cache.Set(ctx, key, v, t.ttl); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// invalidate drops every trending page. Used when visibility changes.
func (t *trendingCache) invalidate(ctx context.Context) error {
	if t == nil || t.cache == nil {
		return nil
	}
	return t.cache.DeletePrefix(ctx, trendingPrefix)
}
