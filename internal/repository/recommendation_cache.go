package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DCAClock/internal/domain/models"
	"DCAClock/pkg/cache"
)

type CacheRecommendations struct {
	cache cache.Service
	ttl   time.Duration
}

// NewCacheRecommendations keeps views for ttl; 0 keeps them until replaced.
func NewCacheRecommendations(c cache.Service, ttl time.Duration) *CacheRecommendations {
	return &CacheRecommendations{cache: c, ttl: ttl}
}

func recommendationKey(symbol string) string {
	return cache.GenerateKey("recommendation", symbol)
}

func (r *CacheRecommendations) Put(ctx context.Context, view models.RecommendationView) error {
	if err := r.cache.Set(ctx, recommendationKey(view.Symbol), view, r.ttl); err != nil {
		return fmt.Errorf("cache recommendation %s: %w", view.Symbol, err)
	}
	return nil
}

// Latest returns nil without error when nothing is cached.
func (r *CacheRecommendations) Latest(ctx context.Context, symbol string) (*models.RecommendationView, error) {
	var view models.RecommendationView
	err := r.cache.Get(ctx, recommendationKey(symbol), &view)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recommendation %s: %w", symbol, err)
	}
	return &view, nil
}
