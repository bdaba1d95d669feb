package repository

import (
	"context"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/pkg/cache"
)

// CachedCandleFeed memoises candle ranges. Repeated analysis runs for the
// same window (API calls, retries) hit the cache instead of the exchange.
type CachedCandleFeed struct {
	next  domrepo.CandleFeed
	cache cache.Service
	ttl   time.Duration
}

func NewCachedCandleFeed(next domrepo.CandleFeed, c cache.Service, ttl time.Duration) *CachedCandleFeed {
	return &CachedCandleFeed{next: next, cache: c, ttl: ttl}
}

func (f *CachedCandleFeed) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	key := cache.GenerateKeyWithParams("candles", symbol, from.Unix(), to.Unix())
	return cache.GetOrLoad(ctx, f.cache, key, f.ttl, func(ctx context.Context) ([]models.Candle, error) {
		return f.next.GetCandles(ctx, symbol, from, to)
	})
}
