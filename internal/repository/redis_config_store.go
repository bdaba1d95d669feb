package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"

	"github.com/redis/go-redis/v9"
)

// RedisConfigStore keeps one JSON document per asset plus an index set.
// CompareAndSwap uses WATCH/MULTI so concurrent writers cannot both win.
type RedisConfigStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisConfigStore(client *redis.Client, prefix string) *RedisConfigStore {
	return &RedisConfigStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisConfigStore) recordKey(key string) string {
	return fmt.Sprintf("%s:config:%s", s.prefix, key)
}

func (s *RedisConfigStore) indexKey() string {
	return s.prefix + ":config:index"
}

func (s *RedisConfigStore) Get(ctx context.Context, key string) (models.AssetTradeConfig, error) {
	data, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AssetTradeConfig{}, fmt.Errorf("%s: %w", key, errs.ErrConfigNotFound)
	}
	if err != nil {
		return models.AssetTradeConfig{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeConfig(key, data)
}

func (s *RedisConfigStore) List(ctx context.Context) (map[string]models.AssetTradeConfig, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list configs: %w", err)
	}
	out := make(map[string]models.AssetTradeConfig, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	sort.Strings(keys)

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = s.recordKey(k)
	}
	values, err := s.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget configs: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // indexed but deleted
		}
		cfg, err := decodeConfig(keys[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out[keys[i]] = cfg
	}
	return out, nil
}

func (s *RedisConfigStore) CompareAndSwap(ctx context.Context, key string, expectedVersion int64, cfg models.AssetTradeConfig) (models.AssetTradeConfig, error) {
	rk := s.recordKey(key)
	var stored models.AssetTradeConfig

	txf := func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, rk).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			existing, err := decodeConfig(key, data)
			if err != nil {
				return err
			}
			current = existing.Version
		}
		if current != expectedVersion {
			return conflict(key, expectedVersion, current)
		}

		stored = cfg
		stored.Version = expectedVersion + 1
		stored.UpdatedAt = s.now().UTC()
		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, payload, 0)
			pipe.SAdd(ctx, s.indexKey(), key)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, rk)
	if errors.Is(err, redis.TxFailedErr) {
		return models.AssetTradeConfig{}, fmt.Errorf("%s: %w: concurrent write", key, errs.ErrVersionConflict)
	}
	if err != nil {
		if errors.Is(err, errs.ErrVersionConflict) {
			return models.AssetTradeConfig{}, err
		}
		return models.AssetTradeConfig{}, fmt.Errorf("redis cas %s: %w", key, err)
	}
	return stored, nil
}

func decodeConfig(key string, data []byte) (models.AssetTradeConfig, error) {
	var cfg models.AssetTradeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", key, err)
	}
	// Records written before versioning exist, so they start at 1.
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	return cfg, nil
}

func conflict(key string, expected, current int64) error {
	if expected == 0 {
		return fmt.Errorf("%s: %w", key, errs.ErrConfigExists)
	}
	if current == 0 {
		return fmt.Errorf("%s: %w", key, errs.ErrConfigNotFound)
	}
	return fmt.Errorf("%s: %w: expected v%d, found v%d", key, errs.ErrVersionConflict, expected, current)
}
