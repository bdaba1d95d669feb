package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/internal/repository"
	"DCAClock/internal/services/advisory"
	"DCAClock/internal/services/slots"
	"DCAClock/pkg/cache"
	"DCAClock/pkg/metrics"
	"DCAClock/pkg/util"

	"github.com/shopspring/decimal"
)

type staticFeed struct {
	candles  map[string][]models.Candle
	from, to time.Time
}

func (f *staticFeed) GetCandles(_ context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	f.from, f.to = from, to
	var out []models.Candle
	for _, c := range f.candles[symbol] {
		if !c.Bucket.Before(from) && c.Bucket.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

// dippingAt builds days of 15-minute bars whose daily low is always the
// bucket starting at dip (local).
func dippingAt(symbol string, asOf time.Time, days, dip int) []models.Candle {
	var out []models.Candle
	first := util.StartOfDay(asOf, ict).AddDate(0, 0, -days)
	for d := 0; d < days; d++ {
		day := first.AddDate(0, 0, d)
		for s := 0; s < models.SlotsPerDay; s++ {
			p := 100 + math.Abs(float64(s-dip))
			out = append(out, models.Candle{
				Symbol: symbol,
				Bucket: day.Add(time.Duration(s) * models.SlotInterval).UTC(),
				Open:   p, High: p + 1, Low: p, Close: p, Volume: 1,
			})
		}
	}
	return out
}

type analysisFixture struct {
	feed     *staticFeed
	store    *repository.MemoryConfigStore
	recs     *repository.CacheRecommendations
	notifier *recordingNotifier
}

func newAnalysisFixture(t *testing.T, seed map[string]models.AssetTradeConfig) *analysisFixture {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return &analysisFixture{
		feed:     &staticFeed{candles: map[string][]models.Candle{}},
		store:    repository.NewMemoryConfigStore(seed),
		recs:     repository.NewCacheRecommendations(mc, time.Hour),
		notifier: &recordingNotifier{},
	}
}

func (f *analysisFixture) useCase(store domrepo.ConfigStore) *AnalysisUseCase {
	if store == nil {
		store = f.store
	}
	return NewAnalysisUseCase(
		f.feed,
		slots.NewAggregator(slots.NewCalculator(ict)),
		advisory.NewResolver(nil, time.Second, nil),
		store,
		f.notifier,
		metrics.Nop{},
		nil,
		WithAnalysisRetry(noDelay),
		WithRecommendationCache(f.recs),
	)
}

var analysisAsOf = time.Date(2024, 6, 1, 0, 5, 0, 0, ict)

func TestAnalysisCreatesMissingRecord(t *testing.T) {
	f := newAnalysisFixture(t, nil)
	f.feed.candles["BTC/USDT"] = dippingAt("BTC/USDT", analysisAsOf, 61, 36)

	rep := f.useCase(nil).Run(context.Background(), []string{"BTC/USDT"}, analysisAsOf)
	res := rep.Results[0]
	if res.Outcome != AnalysisPersisted || res.Key != "BTC_THB" {
		t.Fatalf("unexpected result %+v", res)
	}
	cfg, err := f.store.Get(context.Background(), "BTC_THB")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if cfg.Time != "09:00" || !cfg.BuyEnabled || !cfg.Amount.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("unexpected record %+v", cfg)
	}
	if res.Recommendation.Source != models.SourceQuantitativeFallback {
		t.Fatalf("expected quantitative source, got %s", res.Recommendation.Source)
	}

	view, err := f.recs.Latest(context.Background(), "BTC/USDT")
	if err != nil || view == nil || view.Time != "09:00" {
		t.Fatalf("recommendation not cached: %+v %v", view, err)
	}
	ev, ok := f.notifier.find(models.EventRecommendation)
	if !ok || ev.Fields["time"] != "09:00" || ev.Message == "" {
		t.Fatalf("expected recommendation event, got %+v", ev)
	}
	if rep.Failed() {
		t.Fatalf("report should not be failed")
	}
}

func TestAnalysisOnlyChangesTime(t *testing.T) {
	f := newAnalysisFixture(t, map[string]models.AssetTradeConfig{
		"BTC_THB": {Time: "08:00", Amount: decimal.NewFromInt(500), BuyEnabled: false, LastBuyDate: "2024-05-31"},
	})
	f.feed.candles["BTC/USDT"] = dippingAt("BTC/USDT", analysisAsOf, 61, 40)

	f.useCase(nil).Run(context.Background(), []string{"BTC/USDT"}, analysisAsOf)

	cfg, _ := f.store.Get(context.Background(), "BTC_THB")
	if cfg.Time != "10:00" {
		t.Fatalf("time not updated: %q", cfg.Time)
	}
	if cfg.BuyEnabled || cfg.LastBuyDate != "2024-05-31" || !cfg.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("operator fields changed: %+v", cfg)
	}
	if cfg.Version != 2 {
		t.Fatalf("expected one write, version %d", cfg.Version)
	}
}

func TestAnalysisFallsBackToRawPairKey(t *testing.T) {
	f := newAnalysisFixture(t, map[string]models.AssetTradeConfig{
		"BTC/USDT": {Time: "08:00", Amount: decimal.NewFromInt(500), BuyEnabled: true},
	})
	f.feed.candles["BTC/USDT"] = dippingAt("BTC/USDT", analysisAsOf, 61, 36)

	rep := f.useCase(nil).Run(context.Background(), []string{"BTC/USDT"}, analysisAsOf)
	if rep.Results[0].Key != "BTC/USDT" {
		t.Fatalf("expected legacy key, got %q", rep.Results[0].Key)
	}
	if _, err := f.store.Get(context.Background(), "BTC_THB"); !errors.Is(err, errs.ErrConfigNotFound) {
		t.Fatalf("no new record expected, got %v", err)
	}
}

func TestAnalysisContinuesAfterNoViableRecommendation(t *testing.T) {
	f := newAnalysisFixture(t, nil)
	f.feed.candles["BTC/USDT"] = dippingAt("BTC/USDT", analysisAsOf, 61, 36)

	rep := f.useCase(nil).Run(context.Background(), []string{"ETH/USDT", "BTC/USDT"}, analysisAsOf)
	if len(rep.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rep.Results))
	}
	eth := rep.Results[0]
	if eth.Outcome != AnalysisNoViable || !errors.Is(eth.Err, errs.ErrNoViableRecommendation) {
		t.Fatalf("ETH should have no viable recommendation, got %+v", eth)
	}
	if rep.Results[1].Outcome != AnalysisPersisted {
		t.Fatalf("BTC should still persist, got %+v", rep.Results[1])
	}
	if _, ok := f.notifier.find(models.EventAnalysisFailed); !ok {
		t.Fatalf("expected analysis failure event, got %v", f.notifier.kinds())
	}
	if !rep.Failed() {
		t.Fatalf("report should be marked failed")
	}
}

func TestAnalysisFetchWindow(t *testing.T) {
	f := newAnalysisFixture(t, nil)
	f.useCase(nil).Run(context.Background(), []string{"BTC/USDT"}, analysisAsOf)

	if !f.feed.to.Equal(analysisAsOf) {
		t.Fatalf("window end %s, want %s", f.feed.to, analysisAsOf)
	}
	if want := analysisAsOf.AddDate(0, 0, -61); !f.feed.from.Equal(want) {
		t.Fatalf("window start %s, want %s", f.feed.from, want)
	}
}

func TestAnalysisPersistenceFailure(t *testing.T) {
	f := newAnalysisFixture(t, nil)
	f.feed.candles["BTC/USDT"] = dippingAt("BTC/USDT", analysisAsOf, 61, 36)
	store := &failingCAS{ConfigStore: f.store}

	rep := f.useCase(store).Run(context.Background(), []string{"BTC/USDT"}, analysisAsOf)
	res := rep.Results[0]
	if res.Outcome != AnalysisPersistFailed || !errors.Is(res.Err, errs.ErrConfigPersistence) {
		t.Fatalf("expected persistence failure, got %+v", res)
	}
	if store.calls.Load() != 3 {
		t.Fatalf("expected 3 write attempts, got %d", store.calls.Load())
	}
	if view, _ := f.recs.Latest(context.Background(), "BTC/USDT"); view != nil {
		t.Fatalf("unsaved recommendation should not be cached")
	}
}
