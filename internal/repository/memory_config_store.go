package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
)

// MemoryConfigStore is a process-local ConfigStore for tests and dry runs.
type MemoryConfigStore struct {
	mu      sync.Mutex
	records map[string]models.AssetTradeConfig
	now     func() time.Time
}

// NewMemoryConfigStore seeds the store; seeded records start at version 1.
func NewMemoryConfigStore(seed map[string]models.AssetTradeConfig) *MemoryConfigStore {
	s := &MemoryConfigStore{records: make(map[string]models.AssetTradeConfig, len(seed)), now: time.Now}
	for k, v := range seed {
		if v.Version == 0 {
			v.Version = 1
		}
		s.records[k] = v
	}
	return s
}

func (s *MemoryConfigStore) List(_ context.Context) (map[string]models.AssetTradeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.AssetTradeConfig, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryConfigStore) Get(_ context.Context, key string) (models.AssetTradeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.records[key]
	if !ok {
		return cfg, fmt.Errorf("%s: %w", key, errs.ErrConfigNotFound)
	}
	return cfg, nil
}

func (s *MemoryConfigStore) CompareAndSwap(_ context.Context, key string, expectedVersion int64, cfg models.AssetTradeConfig) (models.AssetTradeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return swap(s.records, key, expectedVersion, cfg, s.now())
}

// swap applies the compare-and-swap rule to an in-memory map.
func swap(records map[string]models.AssetTradeConfig, key string, expected int64, cfg models.AssetTradeConfig, now time.Time) (models.AssetTradeConfig, error) {
	current := records[key].Version
	if current != expected {
		return models.AssetTradeConfig{}, conflict(key, expected, current)
	}
	cfg.Version = expected + 1
	cfg.UpdatedAt = now.UTC()
	records[key] = cfg
	return cfg, nil
}
