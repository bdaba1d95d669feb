package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations. Values are stored as JSON, strings as-is.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Cache failures never fail the call.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
