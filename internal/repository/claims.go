package repository

import (
	"context"
	"fmt"
	"time"

	"DCAClock/pkg/cache"
)

// CacheClaimer takes per asset-day claims as cache locks. With Redis behind
// the cache this is SET NX with a TTL.
type CacheClaimer struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheClaimer(c cache.Service, ttl time.Duration) *CacheClaimer {
	if ttl <= 0 {
		ttl = 36 * time.Hour
	}
	return &CacheClaimer{cache: c, ttl: ttl}
}

func claimKey(key, date string) string {
	return cache.GenerateKeyWithParams("claim", key, date)
}

func (c *CacheClaimer) TryClaim(ctx context.Context, key, date string) (bool, error) {
	ok, err := c.cache.TryLock(ctx, claimKey(key, date), c.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", key, date, err)
	}
	return ok, nil
}

func (c *CacheClaimer) Release(ctx context.Context, key, date string) error {
	if err := c.cache.Unlock(ctx, claimKey(key, date)); err != nil {
		return fmt.Errorf("release %s %s: %w", key, date, err)
	}
	return nil
}
