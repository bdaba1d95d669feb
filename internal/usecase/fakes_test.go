package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"

	"github.com/shopspring/decimal"
)

var ict = time.FixedZone("ICT", 7*3600)

var noDelay = RetryPolicy{Attempts: 3}

type stubExecutor struct {
	calls atomic.Int32
	err   error
	delay time.Duration
	onBuy func() // runs while the order is in flight
}

func (e *stubExecutor) Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*models.Fill, error) {
	n := e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.onBuy != nil {
		e.onBuy()
	}
	if e.err != nil {
		return nil, e.err
	}
	rate := decimal.NewFromInt(2000000)
	return &models.Fill{
		OrderID:    "order-" + string(rune('0'+n)),
		Symbol:     symbol,
		Spent:      amount,
		Received:   amount.Div(rate),
		Rate:       rate,
		ExecutedAt: time.Now(),
		Paper:      true,
	}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

// Notify drops events sent on a finished context, like a real sink would.
func (n *recordingNotifier) Notify(ctx context.Context, e models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) kinds() []models.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

func (n *recordingNotifier) find(kind models.EventKind) (models.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.Kind == kind {
			return e, true
		}
	}
	return models.Event{}, false
}

// failingCAS rejects every write with a transient error.
type failingCAS struct {
	domrepo.ConfigStore
	calls atomic.Int32
}

func (s *failingCAS) CompareAndSwap(ctx context.Context, _ string, _ int64, _ models.AssetTradeConfig) (models.AssetTradeConfig, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return models.AssetTradeConfig{}, err
	}
	return models.AssetTradeConfig{}, errors.New("redis unavailable")
}

// contextBoundStore fails reads and writes once ctx is done.
type contextBoundStore struct {
	domrepo.ConfigStore
}

func (s *contextBoundStore) Get(ctx context.Context, key string) (models.AssetTradeConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.AssetTradeConfig{}, err
	}
	return s.ConfigStore.Get(ctx, key)
}

func (s *contextBoundStore) CompareAndSwap(ctx context.Context, key string, v int64, cfg models.AssetTradeConfig) (models.AssetTradeConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.AssetTradeConfig{}, err
	}
	return s.ConfigStore.CompareAndSwap(ctx, key, v, cfg)
}

// interferingCAS runs interfere once before the first write, simulating a
// concurrent writer.
type interferingCAS struct {
	domrepo.ConfigStore
	once      sync.Once
	interfere func()
}

func (s *interferingCAS) CompareAndSwap(ctx context.Context, key string, v int64, cfg models.AssetTradeConfig) (models.AssetTradeConfig, error) {
	s.once.Do(s.interfere)
	return s.ConfigStore.CompareAndSwap(ctx, key, v, cfg)
}
