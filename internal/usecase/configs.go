package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/pkg/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

// ConfigUseCase is the operator control plane. It owns Amount and
// BuyEnabled; Time belongs to analysis after creation and LastBuyDate to the
// trigger.
type ConfigUseCase struct {
	store         domrepo.ConfigStore
	retry         RetryPolicy
	defaultAmount decimal.Decimal
}

type ConfigOption func(*ConfigUseCase)

// WithConfigDefaultAmount is used by Create when no amount is given.
func WithConfigDefaultAmount(a decimal.Decimal) ConfigOption {
	return func(uc *ConfigUseCase) {
		if a.IsPositive() {
			uc.defaultAmount = a
		}
	}
}

func NewConfigUseCase(store domrepo.ConfigStore, retry RetryPolicy, opts ...ConfigOption) *ConfigUseCase {
	uc := &ConfigUseCase{store: store, retry: retry, defaultAmount: decimal.NewFromInt(800)}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// KeyedConfig pairs a record with its key.
type KeyedConfig struct {
	Key    string
	Config models.AssetTradeConfig
}

func (uc *ConfigUseCase) List(ctx context.Context) ([]KeyedConfig, error) {
	all, err := uc.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trade configs: %w", err)
	}
	out := make([]KeyedConfig, 0, len(all))
	for k, c := range all {
		out = append(out, KeyedConfig{Key: k, Config: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (uc *ConfigUseCase) Get(ctx context.Context, key string) (models.AssetTradeConfig, error) {
	return uc.store.Get(ctx, NormalizeKey(key))
}

type CreateConfigParams struct {
	Key        string
	Time       string
	Amount     decimal.Decimal
	BuyEnabled bool
}

// Create adds a record; an existing key fails with errs.ErrConfigExists. A
// zero Amount takes the configured default.
func (uc *ConfigUseCase) Create(ctx context.Context, p CreateConfigParams) (models.AssetTradeConfig, error) {
	key := NormalizeKey(p.Key)
	if key == "" {
		return models.AssetTradeConfig{}, errors.New("key required")
	}
	if !util.IsClock(p.Time) {
		return models.AssetTradeConfig{}, fmt.Errorf("%w: %q", errs.ErrInvalidTargetTime, p.Time)
	}
	if p.Amount.IsZero() {
		p.Amount = uc.defaultAmount
	}
	if !p.Amount.IsPositive() {
		return models.AssetTradeConfig{}, fmt.Errorf("%w: %s", errs.ErrInvalidAmount, p.Amount)
	}
	return uc.store.CompareAndSwap(ctx, key, 0, models.AssetTradeConfig{
		Time:       p.Time,
		Amount:     p.Amount,
		BuyEnabled: p.BuyEnabled,
	})
}

type UpdateConfigParams struct {
	Key        string
	Amount     *decimal.Decimal
	BuyEnabled *bool
}

// Update applies the operator-owned fields that are set.
func (uc *ConfigUseCase) Update(ctx context.Context, p UpdateConfigParams) (models.AssetTradeConfig, error) {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return models.AssetTradeConfig{}, fmt.Errorf("%w: %s", errs.ErrInvalidAmount, p.Amount)
	}
	return uc.mutate(ctx, NormalizeKey(p.Key), func(c *models.AssetTradeConfig) {
		if p.Amount != nil {
			c.Amount = *p.Amount
		}
		if p.BuyEnabled != nil {
			c.BuyEnabled = *p.BuyEnabled
		}
	})
}

func (uc *ConfigUseCase) SetEnabled(ctx context.Context, key string, enabled bool) (models.AssetTradeConfig, error) {
	return uc.Update(ctx, UpdateConfigParams{Key: key, BuyEnabled: &enabled})
}

func (uc *ConfigUseCase) SetAmount(ctx context.Context, key string, amount decimal.Decimal) (models.AssetTradeConfig, error) {
	return uc.Update(ctx, UpdateConfigParams{Key: key, Amount: &amount})
}

func (uc *ConfigUseCase) mutate(ctx context.Context, key string, apply func(*models.AssetTradeConfig)) (models.AssetTradeConfig, error) {
	var saved models.AssetTradeConfig
	_, err := retry(ctx, uc.retry, func() error {
		current, err := uc.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, errs.ErrConfigNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		next := current
		apply(&next)
		saved, err = uc.store.CompareAndSwap(ctx, key, current.Version, next)
		if errors.Is(err, errs.ErrConfigNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	return saved, err
}

// NormalizeKey is the canonical spelling of an operator-supplied key.
func NormalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}
