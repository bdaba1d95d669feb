package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	domsvc "DCAClock/internal/domain/service"
	"DCAClock/internal/services/guard"
	"DCAClock/internal/services/notify"
	applogger "DCAClock/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

type TriggerOutcome string

const (
	OutcomeSkipped          TriggerOutcome = "skipped"
	OutcomeClaimedElsewhere TriggerOutcome = "claimed_elsewhere"
	OutcomeFilled           TriggerOutcome = "filled"
	OutcomeTradeFailed      TriggerOutcome = "trade_failed"
	OutcomePersistFailed    TriggerOutcome = "persist_failed"
	OutcomeGuardError       TriggerOutcome = "guard_error"
	OutcomeError            TriggerOutcome = "error"
)

// TriggerResult is the outcome for one asset.
type TriggerResult struct {
	Key      string         `json:"key"`
	State    guard.State    `json:"state"`
	Outcome  TriggerOutcome `json:"outcome"`
	Reason   string         `json:"reason"`
	Fill     *models.Fill   `json:"fill,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	Err      error          `json:"-"`
	Error    string         `json:"error,omitempty"`
}

type TriggerReport struct {
	At      time.Time       `json:"at"`
	Results []TriggerResult `json:"results"`
	Err     error           `json:"-"`
}

// PersistenceFailures lists assets that bought but could not record it.
func (r *TriggerReport) PersistenceFailures() []TriggerResult {
	var out []TriggerResult
	for _, res := range r.Results {
		if errors.Is(res.Err, errs.ErrConfigPersistence) {
			out = append(out, res)
		}
	}
	return out
}

// TriggerUseCase runs one guard invocation over every configured asset.
type TriggerUseCase struct {
	store          domrepo.ConfigStore
	claimer        domrepo.Claimer
	executor       domsvc.TradeExecutor
	ledger         domrepo.TradeLedger
	notifier       domrepo.Notifier
	metrics        domrepo.Metrics
	guard          *guard.Guard
	retry          RetryPolicy
	executeTimeout time.Duration
	settleTimeout  time.Duration
	defaultAmount  decimal.Decimal
	logger         *applogger.Logger
}

type TriggerOption func(*TriggerUseCase)

func WithTriggerRetry(p RetryPolicy) TriggerOption {
	return func(uc *TriggerUseCase) { uc.retry = p }
}

func WithExecuteTimeout(d time.Duration) TriggerOption {
	return func(uc *TriggerUseCase) {
		if d > 0 {
			uc.executeTimeout = d
		}
	}
}

// WithSettleTimeout bounds the work after a fill: the commit retry, the
// ledger append and the notifications.
func WithSettleTimeout(d time.Duration) TriggerOption {
	return func(uc *TriggerUseCase) {
		if d > 0 {
			uc.settleTimeout = d
		}
	}
}

// WithTriggerDefaultAmount is spent for records that carry no amount, such as
// legacy "HH:MM" entries.
func WithTriggerDefaultAmount(a decimal.Decimal) TriggerOption {
	return func(uc *TriggerUseCase) {
		if a.IsPositive() {
			uc.defaultAmount = a
		}
	}
}

func WithLedger(l domrepo.TradeLedger) TriggerOption {
	return func(uc *TriggerUseCase) {
		if l != nil {
			uc.ledger = l
		}
	}
}

func NewTriggerUseCase(
	store domrepo.ConfigStore,
	claimer domrepo.Claimer,
	executor domsvc.TradeExecutor,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	g *guard.Guard,
	logger *applogger.Logger,
	opts ...TriggerOption,
) *TriggerUseCase {
	if logger == nil {
		logger = applogger.Nop()
	}
	uc := &TriggerUseCase{
		store:          store,
		claimer:        claimer,
		executor:       executor,
		ledger:         nopLedger{},
		notifier:       notifier,
		metrics:        metrics,
		guard:          g,
		retry:          DefaultRetryPolicy(),
		executeTimeout: 30 * time.Second,
		settleTimeout:  time.Minute,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run evaluates all assets at now. Failures are scoped per asset.
func (uc *TriggerUseCase) Run(ctx context.Context, now time.Time) TriggerReport {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("trigger_run", time.Since(start).Seconds()) }()

	report := TriggerReport{At: now}
	configs, err := uc.store.List(ctx)
	if err != nil {
		report.Err = fmt.Errorf("list trade configs: %w", err)
		uc.metrics.RecordError("config_list")
		uc.logger.Error("trigger: list trade configs failed", applogger.Error(err))
		return report
	}

	keys := make([]string, 0, len(configs))
	for k := range configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		res := uc.runOne(ctx, key, configs[key], now)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func (uc *TriggerUseCase) runOne(ctx context.Context, key string, cfg models.AssetTradeConfig, now time.Time) TriggerResult {
	log := uc.logger.With(applogger.String("key", key))

	d := uc.guard.Decide(key, cfg, now)
	uc.metrics.RecordGuardDecision(key, string(d.State))
	res := TriggerResult{Key: key, State: d.State, Outcome: OutcomeSkipped, Reason: d.Reason}

	if d.Err != nil {
		res.Outcome = OutcomeGuardError
		res.Err = d.Err
		log.Warn("guard cannot evaluate record", applogger.Error(d.Err))
		uc.notify(ctx, notify.NewEvent(models.EventGuardError, models.SeverityWarn, key,
			"Trade config invalid", d.Err.Error()))
		return res
	}
	if !d.Fire {
		log.Debug("guard idle", applogger.String("state", string(d.State)), applogger.String("reason", d.Reason))
		return res
	}
	if amount := uc.amountFor(cfg); !amount.IsPositive() {
		res.Outcome = OutcomeError
		res.Err = fmt.Errorf("%s: %w: %s", key, errs.ErrInvalidAmount, amount)
		log.Warn("refusing to buy", applogger.Error(res.Err))
		uc.notify(ctx, notify.NewEvent(models.EventGuardError, models.SeverityWarn, key,
			"DCA buy skipped",
			fmt.Sprintf("%s is due at %s but its amount %s is not positive. Set AMOUNT to buy.", key, cfg.Time, amount)))
		return res
	}

	claimed, err := uc.claimer.TryClaim(ctx, key, d.Today)
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		uc.metrics.RecordError("claim")
		log.Error("claim failed, not buying", applogger.Error(err))
		return res
	}
	if !claimed {
		res.Outcome = OutcomeClaimedElsewhere
		res.Reason = "asset-day claimed by another invocation"
		log.Info("asset-day already claimed", applogger.String("date", d.Today))
		return res
	}

	// The listing may be stale; decide again on the current record.
	fresh, err := uc.store.Get(ctx, key)
	if err != nil {
		uc.release(ctx, key, d.Today)
		res.Outcome = OutcomeError
		res.Err = fmt.Errorf("re-read %s: %w", key, err)
		log.Error("re-read after claim failed", applogger.Error(err))
		return res
	}
	d = uc.guard.Decide(key, fresh, now)
	if !d.Fire {
		uc.release(ctx, key, d.Today)
		res.State, res.Reason = d.State, d.Reason
		log.Info("no longer eligible after re-read", applogger.String("reason", d.Reason))
		return res
	}

	amount := uc.amountFor(fresh)
	if !amount.IsPositive() {
		uc.release(ctx, key, d.Today)
		res.Outcome = OutcomeError
		res.Err = fmt.Errorf("%s: %w: %s", key, errs.ErrInvalidAmount, amount)
		log.Warn("amount changed to non-positive, not buying", applogger.Error(res.Err))
		return res
	}
	fill, err := uc.execute(ctx, key, amount)

	// An order may have reached the exchange; record and report it even if
	// the caller is shutting down.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.settleTimeout)
	defer cancel()

	if err != nil {
		res.Outcome = OutcomeTradeFailed
		res.Err = &errs.TradeExecutionError{Symbol: key, Err: err}
		uc.metrics.RecordTrade(key, string(OutcomeTradeFailed))
		log.Error("trade execution failed", applogger.Error(err))
		ev := notify.NewEvent(models.EventTradeFailed, models.SeverityCritical, key,
			"DCA buy failed",
			fmt.Sprintf("Market buy of %s %s failed: %v. Check the exchange for a partial or pending order; this asset stays claimed for %s.",
				amount, key, err, d.Today))
		uc.notify(sctx, ev)
		return res
	}
	res.Fill = fill

	saved, attempts, err := uc.commit(sctx, key, fresh, d.Today)
	res.Attempts = attempts
	if err != nil {
		res.Outcome = OutcomePersistFailed
		res.Err = &errs.ConfigPersistenceError{Symbol: key, Attempts: attempts, Err: err}
		uc.metrics.RecordTrade(key, string(OutcomePersistFailed))
		uc.metrics.RecordError("config_persistence")
		log.Error("bought but could not record last buy date",
			applogger.String("order_id", fill.OrderID), applogger.Int("attempts", attempts), applogger.Error(err))
		ev := notify.NewEvent(models.EventPersistenceFailed, models.SeverityCritical, key,
			"Double-buy risk",
			fmt.Sprintf("Order %s filled but LAST_BUY_DATE could not be saved after %d attempts: %v. "+
				"Set LAST_BUY_DATE to %s for %s manually before tomorrow's window, or disable buying for it.",
				fill.OrderID, attempts, err, d.Today, key))
		ev.Fields = fillFields(fill)
		uc.notify(sctx, ev)
		return res
	}

	res.State = guard.StateFired
	res.Outcome = OutcomeFilled
	res.Reason = "bought on " + saved.LastBuyDate
	uc.metrics.RecordTrade(key, string(OutcomeFilled))

	if err := uc.ledger.Append(sctx, *fill); err != nil {
		uc.metrics.RecordError("ledger")
		log.Warn("trade ledger append failed", applogger.Error(err))
	}

	log.Info("dca buy filled",
		applogger.String("order_id", fill.OrderID),
		applogger.Stringer("spent", fill.Spent),
		applogger.Stringer("received", fill.Received),
		applogger.Duration("delay", d.Delta))
	ev := notify.NewEvent(models.EventTradeFired, models.SeverityInfo, key,
		"DCA buy filled",
		fmt.Sprintf("Bought %s %s for %s at %s (target %s).",
			fill.Received, key, fill.Spent, fill.Rate, fresh.Time))
	ev.Fields = fillFields(fill)
	uc.notify(sctx, ev)
	return res
}

func (uc *TriggerUseCase) execute(ctx context.Context, key string, amount decimal.Decimal) (*models.Fill, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.executeTimeout)
	defer cancel()

	fill, err := uc.executor.Buy(ctx, key, amount)
	uc.metrics.RecordLatency("trade_execute", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if fill == nil {
		return nil, errors.New("executor returned no fill")
	}
	return fill, nil
}

// commit advances LastBuyDate with a versioned write. A version conflict
// re-reads the record and reapplies the commit.
func (uc *TriggerUseCase) commit(ctx context.Context, key string, cfg models.AssetTradeConfig, today string) (models.AssetTradeConfig, int, error) {
	current := cfg
	var saved models.AssetTradeConfig
	attempts, err := retry(ctx, uc.retry, func() error {
		next, err := uc.guard.Commit(current, today)
		if err != nil {
			return backoff.Permanent(err)
		}
		saved, err = uc.store.CompareAndSwap(ctx, key, current.Version, next)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errs.ErrConfigNotFound):
			return backoff.Permanent(err)
		case errors.Is(err, errs.ErrVersionConflict):
			if latest, gerr := uc.store.Get(ctx, key); gerr == nil {
				current = latest
			}
		}
		uc.logger.Warn("commit attempt failed", applogger.String("key", key), applogger.Error(err))
		return err
	})
	return saved, attempts, err
}

// amountFor substitutes the default for a record with no amount. A negative
// amount is kept so the caller refuses it.
func (uc *TriggerUseCase) amountFor(cfg models.AssetTradeConfig) decimal.Decimal {
	if cfg.Amount.IsZero() {
		return uc.defaultAmount
	}
	return cfg.Amount
}

func (uc *TriggerUseCase) release(ctx context.Context, key, date string) {
	if err := uc.claimer.Release(ctx, key, date); err != nil {
		uc.logger.Warn("claim release failed", applogger.String("key", key), applogger.Error(err))
	}
}

func (uc *TriggerUseCase) notify(ctx context.Context, ev models.Event) {
	if err := uc.notifier.Notify(ctx, ev); err != nil {
		uc.logger.Warn("notification failed", applogger.String("kind", string(ev.Kind)), applogger.Error(err))
	}
}

func fillFields(f *models.Fill) map[string]string {
	fields := map[string]string{
		"order_id": f.OrderID,
		"spent":    f.Spent.String(),
		"received": f.Received.String(),
		"rate":     f.Rate.String(),
	}
	if f.Paper {
		fields["mode"] = "paper"
	}
	return fields
}

type nopLedger struct{}

func (nopLedger) Append(context.Context, models.Fill) error { return nil }
