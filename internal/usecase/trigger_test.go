package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/internal/repository"
	"DCAClock/internal/services/guard"
	"DCAClock/pkg/cache"
	"DCAClock/pkg/metrics"

	"github.com/shopspring/decimal"
)

type triggerFixture struct {
	store    *repository.MemoryConfigStore
	claimer  *repository.CacheClaimer
	exec     *stubExecutor
	notifier *recordingNotifier
}

func newTriggerFixture(t *testing.T, seed map[string]models.AssetTradeConfig) *triggerFixture {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return &triggerFixture{
		store:    repository.NewMemoryConfigStore(seed),
		claimer:  repository.NewCacheClaimer(mc, time.Hour),
		exec:     &stubExecutor{},
		notifier: &recordingNotifier{},
	}
}

func (f *triggerFixture) useCase(store domrepo.ConfigStore) *TriggerUseCase {
	if store == nil {
		store = f.store
	}
	return NewTriggerUseCase(store, f.claimer, f.exec, f.notifier, metrics.Nop{},
		guard.New(ict), nil, WithTriggerRetry(noDelay))
}

func btcAt(clock string) map[string]models.AssetTradeConfig {
	return map[string]models.AssetTradeConfig{
		"BTC_THB": {Time: clock, Amount: decimal.NewFromInt(800), BuyEnabled: true},
	}
}

var nineAM = time.Date(2024, 6, 1, 9, 0, 30, 0, ict)

func TestTriggerBuysOncePerDay(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	uc := f.useCase(nil)

	rep := uc.Run(context.Background(), nineAM)
	if len(rep.Results) != 1 || rep.Results[0].Outcome != OutcomeFilled {
		t.Fatalf("expected fill, got %+v", rep.Results)
	}
	if rep.Results[0].State != guard.StateFired {
		t.Fatalf("expected FIRED, got %s", rep.Results[0].State)
	}
	cfg, _ := f.store.Get(context.Background(), "BTC_THB")
	if cfg.LastBuyDate != "2024-06-01" {
		t.Fatalf("last buy date not committed: %q", cfg.LastBuyDate)
	}
	if _, ok := f.notifier.find(models.EventTradeFired); !ok {
		t.Fatalf("expected trade notification, got %v", f.notifier.kinds())
	}

	rep = uc.Run(context.Background(), nineAM.Add(2*time.Minute))
	if rep.Results[0].Outcome != OutcomeSkipped || rep.Results[0].State != guard.StateIdle {
		t.Fatalf("second run should idle, got %+v", rep.Results[0])
	}
	if n := f.exec.calls.Load(); n != 1 {
		t.Fatalf("expected one buy, got %d", n)
	}
}

func TestTriggerOutsideWindowDoesNothing(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	uc := f.useCase(nil)

	for _, at := range []time.Time{
		nineAM.Add(-5 * time.Minute),
		nineAM.Add(30 * time.Minute),
	} {
		rep := uc.Run(context.Background(), at)
		if rep.Results[0].Outcome != OutcomeSkipped {
			t.Fatalf("at %s expected skip, got %+v", at, rep.Results[0])
		}
	}
	if f.exec.calls.Load() != 0 {
		t.Fatalf("executor should not run")
	}
}

func TestTriggerConcurrentInvocationsBuyOnce(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	f.exec.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	reports := make([]TriggerReport, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = f.useCase(nil).Run(context.Background(), nineAM)
		}(i)
	}
	wg.Wait()

	if n := f.exec.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one buy, got %d", n)
	}
	filled := 0
	for _, r := range reports {
		if r.Results[0].Outcome == OutcomeFilled {
			filled++
		}
	}
	if filled != 1 {
		t.Fatalf("expected one filled report, got %d", filled)
	}
}

func TestTriggerTradeFailureKeepsClaim(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	f.exec.err = errors.New("exchange timeout")
	uc := f.useCase(nil)

	rep := uc.Run(context.Background(), nineAM)
	res := rep.Results[0]
	if res.Outcome != OutcomeTradeFailed || !errors.Is(res.Err, errs.ErrTradeExecution) {
		t.Fatalf("expected trade failure, got %+v", res)
	}
	cfg, _ := f.store.Get(context.Background(), "BTC_THB")
	if cfg.LastBuyDate != "" {
		t.Fatalf("failed trade must not commit, got %q", cfg.LastBuyDate)
	}
	ev, ok := f.notifier.find(models.EventTradeFailed)
	if !ok || ev.Severity != models.SeverityCritical {
		t.Fatalf("expected critical trade failure event, got %+v", f.notifier.kinds())
	}

	f.exec.err = nil
	rep = uc.Run(context.Background(), nineAM.Add(time.Minute))
	if rep.Results[0].Outcome != OutcomeClaimedElsewhere {
		t.Fatalf("claim should block a second attempt, got %+v", rep.Results[0])
	}
	if n := f.exec.calls.Load(); n != 1 {
		t.Fatalf("expected no retry, got %d calls", n)
	}
}

func TestTriggerPersistenceFailureReportsDoubleBuyRisk(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	store := &failingCAS{ConfigStore: f.store}
	uc := f.useCase(store)

	rep := uc.Run(context.Background(), nineAM)
	res := rep.Results[0]
	if res.Outcome != OutcomePersistFailed || !errors.Is(res.Err, errs.ErrConfigPersistence) {
		t.Fatalf("expected persistence failure, got %+v", res)
	}
	if res.Attempts != 3 || store.calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d (%d writes)", res.Attempts, store.calls.Load())
	}
	if res.Fill == nil {
		t.Fatalf("fill should be reported")
	}
	if got := rep.PersistenceFailures(); len(got) != 1 {
		t.Fatalf("expected one persistence failure, got %d", len(got))
	}
	ev, ok := f.notifier.find(models.EventPersistenceFailed)
	if !ok || ev.Severity != models.SeverityCritical || ev.Fields["order_id"] == "" {
		t.Fatalf("expected critical persistence event, got %+v", ev)
	}
}

func TestTriggerCommitRetriesOnVersionConflict(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	store := &interferingCAS{ConfigStore: f.store}
	store.interfere = func() {
		cur, _ := f.store.Get(context.Background(), "BTC_THB")
		cur.Amount = decimal.NewFromInt(1000)
		if _, err := f.store.CompareAndSwap(context.Background(), "BTC_THB", cur.Version, cur); err != nil {
			t.Errorf("operator update: %v", err)
		}
	}
	uc := f.useCase(store)

	rep := uc.Run(context.Background(), nineAM)
	res := rep.Results[0]
	if res.Outcome != OutcomeFilled || res.Attempts != 2 {
		t.Fatalf("expected fill after one conflict, got %+v", res)
	}
	cfg, _ := f.store.Get(context.Background(), "BTC_THB")
	if cfg.LastBuyDate != "2024-06-01" || !cfg.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("commit lost a concurrent update: %+v", cfg)
	}
}

func TestTriggerAssetsAreIndependent(t *testing.T) {
	seed := map[string]models.AssetTradeConfig{
		"BTC_THB": {Time: "09:00", Amount: decimal.NewFromInt(800), BuyEnabled: true},
		"ETH_THB": {Time: "25:00", Amount: decimal.NewFromInt(500), BuyEnabled: true},
		"SOL_THB": {Time: "09:00", Amount: decimal.NewFromInt(300), BuyEnabled: false},
	}
	f := newTriggerFixture(t, seed)

	rep := f.useCase(nil).Run(context.Background(), nineAM)
	byKey := map[string]TriggerResult{}
	for _, r := range rep.Results {
		byKey[r.Key] = r
	}
	if byKey["BTC_THB"].Outcome != OutcomeFilled {
		t.Fatalf("BTC should fill, got %+v", byKey["BTC_THB"])
	}
	if r := byKey["ETH_THB"]; r.Outcome != OutcomeGuardError || !errors.Is(r.Err, errs.ErrInvalidTargetTime) {
		t.Fatalf("ETH should report invalid time, got %+v", r)
	}
	if r := byKey["SOL_THB"]; r.State != guard.StateDisabled || r.Outcome != OutcomeSkipped {
		t.Fatalf("SOL should be disabled, got %+v", r)
	}
	if rep.Results[0].Key != "BTC_THB" || rep.Results[2].Key != "SOL_THB" {
		t.Fatalf("results not in key order: %+v", rep.Results)
	}
}

func TestTriggerRefusesNonPositiveAmount(t *testing.T) {
	f := newTriggerFixture(t, map[string]models.AssetTradeConfig{
		"BTC_THB": {Time: "09:00", Amount: decimal.Zero, BuyEnabled: true},
	})
	rep := f.useCase(nil).Run(context.Background(), nineAM)
	if r := rep.Results[0]; r.Outcome != OutcomeError || !errors.Is(r.Err, errs.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %+v", r)
	}
	if f.exec.calls.Load() != 0 {
		t.Fatalf("executor should not run")
	}
	ev, ok := f.notifier.find(models.EventGuardError)
	if !ok || ev.Severity != models.SeverityWarn {
		t.Fatalf("refusal should be reported, got %v", f.notifier.kinds())
	}
}

func TestTriggerBuysLegacyRecordWithDefaultAmount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dca_targets.json")
	if err := os.WriteFile(path, []byte(`{"BTC_THB":"09:00"}`), 0o644); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	f := newTriggerFixture(t, nil)
	store := repository.NewFileConfigStore(path)
	uc := NewTriggerUseCase(store, f.claimer, f.exec, f.notifier, metrics.Nop{}, guard.New(ict), nil,
		WithTriggerRetry(noDelay), WithTriggerDefaultAmount(decimal.NewFromInt(800)))

	rep := uc.Run(context.Background(), nineAM)
	res := rep.Results[0]
	if res.Outcome != OutcomeFilled {
		t.Fatalf("legacy record should buy, got %+v", res)
	}
	if !res.Fill.Spent.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("spent = %s, want default 800", res.Fill.Spent)
	}
	cfg, err := store.Get(context.Background(), "BTC_THB")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.LastBuyDate != "2024-06-01" || cfg.Time != "09:00" {
		t.Fatalf("legacy record not committed: %+v", cfg)
	}
}

func TestTriggerSettlesFillAfterCallerCancels(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.onBuy = cancel
	store := &contextBoundStore{ConfigStore: f.store}

	rep := f.useCase(store).Run(ctx, nineAM)
	res := rep.Results[0]
	if res.Outcome != OutcomeFilled {
		t.Fatalf("fill should be committed despite cancellation, got %+v", res)
	}
	cfg, _ := f.store.Get(context.Background(), "BTC_THB")
	if cfg.LastBuyDate != "2024-06-01" {
		t.Fatalf("last buy date = %q", cfg.LastBuyDate)
	}
	if _, ok := f.notifier.find(models.EventTradeFired); !ok {
		t.Fatalf("fill notification dropped, got %v", f.notifier.kinds())
	}
}

func TestTriggerCancelledCallerStillRetriesAndAlerts(t *testing.T) {
	f := newTriggerFixture(t, btcAt("09:00"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.onBuy = cancel
	store := &failingCAS{ConfigStore: f.store}

	rep := f.useCase(store).Run(ctx, nineAM)
	res := rep.Results[0]
	if res.Outcome != OutcomePersistFailed || res.Attempts != 3 {
		t.Fatalf("expected 3 commit attempts, got %+v", res)
	}
	ev, ok := f.notifier.find(models.EventPersistenceFailed)
	if !ok || ev.Severity != models.SeverityCritical {
		t.Fatalf("double-buy alert dropped, got %v", f.notifier.kinds())
	}
}
