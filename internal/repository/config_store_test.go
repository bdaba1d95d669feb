package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"

	"github.com/shopspring/decimal"
)

func stores(t *testing.T) map[string]domrepo.ConfigStore {
	t.Helper()
	return map[string]domrepo.ConfigStore{
		"memory": NewMemoryConfigStore(nil),
		"file":   NewFileConfigStore(filepath.Join(t.TempDir(), "targets.json")),
	}
}

func TestConfigStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cfg := models.AssetTradeConfig{Time: "07:00", Amount: decimal.NewFromInt(800), BuyEnabled: true}

			created, err := store.CompareAndSwap(ctx, "BTC_THB", 0, cfg)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if created.Version != 1 || created.UpdatedAt.IsZero() {
				t.Fatalf("unexpected created record: %+v", created)
			}

			if _, err := store.CompareAndSwap(ctx, "BTC_THB", 0, cfg); !errors.Is(err, errs.ErrConfigExists) {
				t.Fatalf("expected ErrConfigExists, got %v", err)
			}

			next := created
			next.LastBuyDate = "2024-06-10"
			updated, err := store.CompareAndSwap(ctx, "BTC_THB", 1, next)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Version != 2 {
				t.Fatalf("version = %d", updated.Version)
			}

			if _, err := store.CompareAndSwap(ctx, "BTC_THB", 1, next); !errors.Is(err, errs.ErrVersionConflict) {
				t.Fatalf("stale write should conflict, got %v", err)
			}
			if _, err := store.CompareAndSwap(ctx, "ETH_THB", 3, cfg); !errors.Is(err, errs.ErrConfigNotFound) {
				t.Fatalf("expected ErrConfigNotFound, got %v", err)
			}

			got, err := store.Get(ctx, "BTC_THB")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.LastBuyDate != "2024-06-10" || !got.Amount.Equal(decimal.NewFromInt(800)) {
				t.Fatalf("unexpected stored record: %+v", got)
			}

			all, err := store.List(ctx)
			if err != nil || len(all) != 1 {
				t.Fatalf("list: %v %v", all, err)
			}
			if _, err := store.Get(ctx, "DOGE_THB"); !errors.Is(err, errs.ErrConfigNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestFileConfigStoreReadsLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	legacy := `{"BTC_THB": "07:15", "ETH_THB": {"TIME": "21:30", "AMOUNT": 500, "BUY_ENABLED": false, "LAST_BUY_DATE": "2024-06-09"}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFileConfigStore(path)
	ctx := context.Background()

	btc, err := store.Get(ctx, "BTC_THB")
	if err != nil {
		t.Fatalf("get legacy: %v", err)
	}
	if btc.Time != "07:15" || !btc.BuyEnabled || btc.Version != 1 {
		t.Fatalf("unexpected legacy record: %+v", btc)
	}

	eth, err := store.Get(ctx, "ETH_THB")
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if eth.BuyEnabled || eth.LastBuyDate != "2024-06-09" || !eth.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected object record: %+v", eth)
	}

	btc.LastBuyDate = "2024-06-10"
	if _, err := store.CompareAndSwap(ctx, "BTC_THB", btc.Version, btc); err != nil {
		t.Fatalf("update legacy: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"LAST_BUY_DATE": "2024-06-10"`) || !strings.Contains(string(data), `"ETH_THB"`) {
		t.Fatalf("rewritten file lost data:\n%s", data)
	}
}

func TestFileConfigStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileConfigStore(filepath.Join(t.TempDir(), "nested", "targets.json"))
	all, err := store.List(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty list, got %v %v", all, err)
	}
	if _, err := store.CompareAndSwap(context.Background(), "BTC_THB", 0, models.AssetTradeConfig{Time: "07:00", BuyEnabled: true}); err != nil {
		t.Fatalf("create in missing dir: %v", err)
	}
}

func TestFileConfigStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileConfigStore(path).List(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}
