package repository

import (
	"context"
	"testing"
	"time"

	"DCAClock/internal/domain/models"
	"DCAClock/pkg/cache"
)

func TestCacheClaimerIsExclusivePerAssetDay(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	c := NewCacheClaimer(mc, time.Hour)
	ctx := context.Background()

	if ok, err := c.TryClaim(ctx, "BTC_THB", "2024-06-10"); !ok || err != nil {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	if ok, _ := c.TryClaim(ctx, "BTC_THB", "2024-06-10"); ok {
		t.Fatalf("second claim on same day must fail")
	}
	if ok, _ := c.TryClaim(ctx, "BTC_THB", "2024-06-11"); !ok {
		t.Fatalf("next day is a different claim")
	}
	if ok, _ := c.TryClaim(ctx, "ETH_THB", "2024-06-10"); !ok {
		t.Fatalf("other asset is independent")
	}
	if err := c.Release(ctx, "BTC_THB", "2024-06-10"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := c.TryClaim(ctx, "BTC_THB", "2024-06-10"); !ok {
		t.Fatalf("claim after release")
	}
}

func TestCacheRecommendations(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	r := NewCacheRecommendations(mc, 0)
	ctx := context.Background()

	if v, err := r.Latest(ctx, "BTC/USDT"); v != nil || err != nil {
		t.Fatalf("empty cache: %v %v", v, err)
	}
	if err := r.Put(ctx, models.RecommendationView{Symbol: "BTC/USDT", Time: "07:00", Source: models.SourceAI}); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := r.Latest(ctx, "BTC/USDT")
	if err != nil || v == nil || v.Time != "07:00" || v.Source != models.SourceAI {
		t.Fatalf("latest: %+v %v", v, err)
	}
}

type countingFeed struct{ calls int }

func (f *countingFeed) GetCandles(_ context.Context, symbol string, from, _ time.Time) ([]models.Candle, error) {
	f.calls++
	return []models.Candle{{Bucket: from, Symbol: symbol, Low: 1, Close: 2}}, nil
}

func TestCachedCandleFeed(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingFeed{}
	feed := NewCachedCandleFeed(next, mc, time.Minute)
	ctx := context.Background()
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		got, err := feed.GetCandles(ctx, "BTC/USDT", from, from.Add(24*time.Hour))
		if err != nil || len(got) != 1 || !got[0].Bucket.Equal(from) {
			t.Fatalf("GetCandles: %v %v", got, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("underlying feed called %d times", next.calls)
	}
	if _, err := feed.GetCandles(ctx, "BTC/USDT", from, from.Add(48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Fatalf("different range must miss the cache")
	}
}
