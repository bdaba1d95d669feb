package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process with LRU eviction. Values are
// held encoded so Get behaves exactly like the Redis implementation.
type MemoryCache struct {
	data          map[string]*memoryItem
	access        map[string]time.Time
	mutex         sync.Mutex
	maxSize       int
	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:          make(map[string]*memoryItem),
		access:        make(map[string]time.Time),
		maxSize:       cfg.MaxSize,
		cleanupTicker: time.NewTicker(cfg.CleanupInterval),
		done:          make(chan struct{}),
	}
	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, ok := mc.data[key]; !ok && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	mc.data[key] = &memoryItem{data: data, expireAt: expiry(expiration)}
	mc.access[key] = time.Now()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mutex.Lock()
	item, ok := mc.lookup(key)
	if ok {
		mc.access[key] = time.Now()
	}
	mc.mutex.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		if _, ok := mc.lookup(key); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, ok := mc.lookup(key); ok {
		return false, nil
	}
	mc.data[key] = &memoryItem{data: []byte("locked"), expireAt: expiry(ttl)}
	mc.access[key] = time.Now()
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// lookup drops expired entries on access. Caller holds the mutex.
func (mc *MemoryCache) lookup(key string) (*memoryItem, bool) {
	item, ok := mc.data[key]
	if !ok {
		return nil, false
	}
	if item.expired(time.Now()) {
		delete(mc.data, key)
		delete(mc.access, key)
		return nil, false
	}
	return item, true
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, at := range mc.access {
		if oldestKey == "" || at.Before(oldestTime) {
			oldestKey, oldestTime = key, at
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case now := <-mc.cleanupTicker.C:
			mc.mutex.Lock()
			for key, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, key)
					delete(mc.access, key)
				}
			}
			mc.mutex.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.cleanupTicker.Stop()
		close(mc.done)
	})
	return nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
