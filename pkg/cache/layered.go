package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level cache: process memory in front of Redis.
// Locks always go to Redis so they hold across processes.
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache *RedisCache
	l1TTL      time.Duration
}

// NewLayeredCache keeps L1 entries for at most l1TTL (0 = the L2 expiration).
func NewLayeredCache(redisCache *RedisCache, l1TTL time.Duration, opts ...MemoryOption) *LayeredCache {
	return &LayeredCache{
		memCache:   NewMemoryCache(opts...),
		redisCache: redisCache,
		l1TTL:      l1TTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redisCache.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, value, lc.localTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		return nil
	}

	var raw []byte
	if err := lc.redisCache.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, raw, lc.localTTL(0))
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.redisCache.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.redisCache.Exists(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.redisCache.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.redisCache.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	return lc.memCache.Close()
}

func (lc *LayeredCache) localTTL(expiration time.Duration) time.Duration {
	if lc.l1TTL > 0 && (expiration <= 0 || lc.l1TTL < expiration) {
		return lc.l1TTL
	}
	return expiration
}
