package repository

import (
	"context"
	"time"

	"DCAClock/internal/domain/models"
)

// CandleFeed returns 15-minute candles in [from, to), oldest first. Gaps are
// possible and must not be assumed away by callers.
type CandleFeed interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}

// CandleSink stores closed candles (collector path).
type CandleSink interface {
	StoreCandles(ctx context.Context, candles []models.Candle) error
}

// CandleStream pushes closed candles from a live source.
type CandleStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
}

// ConfigStore persists AssetTradeConfig records with optimistic concurrency.
// CompareAndSwap writes cfg only when the stored version equals
// expectedVersion (0 = record must not exist) and returns the stored record
// with its new version. A mismatch fails with errs.ErrVersionConflict, or
// errs.ErrConfigExists / errs.ErrConfigNotFound when existence differs.
type ConfigStore interface {
	List(ctx context.Context) (map[string]models.AssetTradeConfig, error)
	Get(ctx context.Context, key string) (models.AssetTradeConfig, error)
	CompareAndSwap(ctx context.Context, key string, expectedVersion int64, cfg models.AssetTradeConfig) (models.AssetTradeConfig, error)
}

// Claimer grants one invocation exclusive ownership of an asset-day.
type Claimer interface {
	TryClaim(ctx context.Context, key, date string) (bool, error)
	Release(ctx context.Context, key, date string) error
}

// Notifier delivers structured events. Implementations may fail; callers that
// must not be affected wrap them with notify.Safe.
type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

// TradeLedger records executed fills.
type TradeLedger interface {
	Append(ctx context.Context, fill models.Fill) error
}

// RecommendationCache keeps the latest recommendation per symbol.
type RecommendationCache interface {
	Put(ctx context.Context, view models.RecommendationView) error
	Latest(ctx context.Context, symbol string) (*models.RecommendationView, error)
}

type Metrics interface {
	RecordGuardDecision(symbol, state string)
	RecordTrade(symbol, outcome string)
	RecordAnalysis(symbol, outcome string)
	RecordRecommendationSource(symbol, source string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
