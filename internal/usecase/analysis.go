package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/internal/services/advisory"
	"DCAClock/internal/services/notify"
	"DCAClock/internal/services/report"
	"DCAClock/internal/services/slots"
	applogger "DCAClock/pkg/logger"

	"github.com/shopspring/decimal"
)

type AnalysisOutcome string

const (
	AnalysisPersisted     AnalysisOutcome = "persisted"
	AnalysisNoViable      AnalysisOutcome = "no_viable"
	AnalysisFetchFailed   AnalysisOutcome = "fetch_failed"
	AnalysisPersistFailed AnalysisOutcome = "persist_failed"
)

type AnalysisResult struct {
	Symbol         string                     `json:"symbol"`
	Key            string                     `json:"key,omitempty"`
	Outcome        AnalysisOutcome            `json:"outcome"`
	Recommendation *models.RecommendationView `json:"recommendation,omitempty"`
	Err            error                      `json:"-"`
	Error          string                     `json:"error,omitempty"`
}

type AnalysisReport struct {
	AsOf    time.Time        `json:"as_of"`
	Results []AnalysisResult `json:"results"`
}

// Failed reports whether any symbol did not end with a persisted time.
func (r *AnalysisReport) Failed() bool {
	for _, res := range r.Results {
		if res.Outcome != AnalysisPersisted {
			return true
		}
	}
	return false
}

// AnalysisUseCase computes and stores each asset's target time.
type AnalysisUseCase struct {
	feed          domrepo.CandleFeed
	aggregator    *slots.Aggregator
	resolver      *advisory.Resolver
	store         domrepo.ConfigStore
	cache         domrepo.RecommendationCache
	notifier      domrepo.Notifier
	metrics       domrepo.Metrics
	retry         RetryPolicy
	quote         string
	defaultAmount decimal.Decimal
	logger        *applogger.Logger
}

type AnalysisOption func(*AnalysisUseCase)

func WithAnalysisRetry(p RetryPolicy) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.retry = p }
}

// WithQuoteCurrency sets the quote used to derive trade config keys.
func WithQuoteCurrency(q string) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		if q != "" {
			uc.quote = q
		}
	}
}

// WithDefaultAmount sets the amount for records created by analysis.
func WithDefaultAmount(a decimal.Decimal) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		if a.IsPositive() {
			uc.defaultAmount = a
		}
	}
}

func WithRecommendationCache(c domrepo.RecommendationCache) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.cache = c }
}

func NewAnalysisUseCase(
	feed domrepo.CandleFeed,
	aggregator *slots.Aggregator,
	resolver *advisory.Resolver,
	store domrepo.ConfigStore,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	opts ...AnalysisOption,
) *AnalysisUseCase {
	if logger == nil {
		logger = applogger.Nop()
	}
	uc := &AnalysisUseCase{
		feed:          feed,
		aggregator:    aggregator,
		resolver:      resolver,
		store:         store,
		notifier:      notifier,
		metrics:       metrics,
		retry:         DefaultRetryPolicy(),
		quote:         "THB",
		defaultAmount: decimal.NewFromInt(800),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run analyses each symbol in order. One symbol failing never stops the rest.
func (uc *AnalysisUseCase) Run(ctx context.Context, symbols []string, asOf time.Time) AnalysisReport {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("analysis_run", time.Since(start).Seconds()) }()

	rep := AnalysisReport{AsOf: asOf}
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		res := uc.runOne(ctx, symbol, asOf)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		uc.metrics.RecordAnalysis(symbol, string(res.Outcome))
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func (uc *AnalysisUseCase) runOne(ctx context.Context, symbol string, asOf time.Time) AnalysisResult {
	log := uc.logger.With(applogger.String("symbol", symbol))
	res := AnalysisResult{Symbol: symbol}

	from := asOf.AddDate(0, 0, -uc.aggregator.LookbackDays())
	candles, err := uc.feed.GetCandles(ctx, symbol, from, asOf)
	if err != nil {
		res.Outcome = AnalysisFetchFailed
		res.Err = fmt.Errorf("fetch candles %s: %w", symbol, err)
		uc.metrics.RecordError("candle_fetch")
		log.Error("candle fetch failed", applogger.Error(err))
		uc.notify(ctx, notify.NewEvent(models.EventAnalysisFailed, models.SeverityWarn, symbol,
			"DCA analysis failed", res.Err.Error()))
		return res
	}
	log.Debug("candles loaded", applogger.Int("count", len(candles)), applogger.Stringer("from", from))

	agg, err := uc.aggregator.Aggregate(symbol, candles, asOf)
	if err != nil {
		res.Outcome = AnalysisNoViable
		res.Err = err
		if !errors.Is(err, errs.ErrNoViableRecommendation) {
			uc.metrics.RecordError("aggregate")
		}
		log.Warn("no viable recommendation", applogger.Error(err))
		uc.notify(ctx, notify.NewEvent(models.EventAnalysisFailed, models.SeverityWarn, symbol,
			"DCA analysis: no viable recommendation", err.Error()))
		return res
	}
	for p, cause := range agg.Failed {
		log.Info("period skipped", applogger.Int("period_days", p), applogger.Error(cause))
	}

	rec := uc.resolver.Resolve(ctx, agg)
	for _, pr := range rec.Periods {
		log.Debug("period champion",
			applogger.Int("period_days", pr.PeriodDays),
			applogger.String("slot", pr.Champion.Slot.Clock()),
			applogger.Float("median_miss", pr.Champion.MedianMiss),
			applogger.Float("win_rate", pr.Champion.WinRate))
	}
	uc.metrics.RecordRecommendationSource(symbol, string(rec.Source))
	view := rec.View()
	res.Recommendation = &view

	key, attempts, err := uc.persistTime(ctx, symbol, rec.Time)
	res.Key = key
	if err != nil {
		res.Outcome = AnalysisPersistFailed
		res.Err = &errs.ConfigPersistenceError{Symbol: symbol, Attempts: attempts, Err: err}
		uc.metrics.RecordError("config_persistence")
		log.Error("persist target time failed", applogger.Int("attempts", attempts), applogger.Error(err))
		uc.notify(ctx, notify.NewEvent(models.EventPersistenceFailed, models.SeverityCritical, symbol,
			"DCA target time not saved",
			fmt.Sprintf("Resolved %s for %s but could not save it: %v. The previous target time stays active.",
				rec.Time, symbol, err)))
		return res
	}
	res.Outcome = AnalysisPersisted

	if uc.cache != nil {
		if err := uc.cache.Put(ctx, view); err != nil {
			log.Warn("cache recommendation failed", applogger.Error(err))
		}
	}

	log.Info("target time resolved",
		applogger.String("key", key),
		applogger.String("time", rec.Time),
		applogger.String("source", string(rec.Source)),
		applogger.String("quant_time", rec.QuantTime))
	ev := notify.NewEvent(models.EventRecommendation, models.SeverityInfo, symbol,
		"DCA target time: "+symbol, report.Full(&rec, uc.aggregator.Location()))
	ev.Fields = map[string]string{
		"key":            key,
		"time":           rec.Time,
		"source":         string(rec.Source),
		"primary_period": strconv.Itoa(rec.PrimaryPeriod),
	}
	uc.notify(ctx, ev)
	return res
}

// persistTime writes the resolved time, creating the record when no
// candidate key exists. Each attempt re-reads, so conflicts resolve against
// the latest version.
func (uc *AnalysisUseCase) persistTime(ctx context.Context, symbol, clock string) (string, int, error) {
	keys := models.CandidateKeys(symbol, uc.quote)
	key := keys[0]
	attempts, err := retry(ctx, uc.retry, func() error {
		current, found, err := uc.lookup(ctx, keys)
		if err != nil {
			return err
		}
		if !found {
			key = keys[0]
			_, err = uc.store.CompareAndSwap(ctx, key, 0, models.AssetTradeConfig{
				Time:       clock,
				Amount:     uc.defaultAmount,
				BuyEnabled: true,
			})
			return err
		}
		key = current.key
		if current.cfg.Time == clock {
			return nil
		}
		next := current.cfg
		next.Time = clock
		_, err = uc.store.CompareAndSwap(ctx, key, current.cfg.Version, next)
		return err
	})
	return key, attempts, err
}

type keyedConfig struct {
	key string
	cfg models.AssetTradeConfig
}

func (uc *AnalysisUseCase) lookup(ctx context.Context, keys []string) (keyedConfig, bool, error) {
	for _, k := range keys {
		cfg, err := uc.store.Get(ctx, k)
		if err == nil {
			return keyedConfig{key: k, cfg: cfg}, true, nil
		}
		if !errors.Is(err, errs.ErrConfigNotFound) {
			return keyedConfig{}, false, err
		}
	}
	return keyedConfig{}, false, nil
}

func (uc *AnalysisUseCase) notify(ctx context.Context, ev models.Event) {
	if err := uc.notifier.Notify(ctx, ev); err != nil {
		uc.logger.Warn("notification failed", applogger.String("kind", string(ev.Kind)), applogger.Error(err))
	}
}
