// Package advisory merges the quantitative champion with an optional
// AI-suggested time into the final target time for an asset.
package advisory

import (
	"context"
	"fmt"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	domsvc "DCAClock/internal/domain/service"
	"DCAClock/internal/services/slots"
	applogger "DCAClock/pkg/logger"
	"DCAClock/pkg/util"
)

type Resolver struct {
	provider domsvc.AdvisoryProvider
	timeout  time.Duration
	logger   *applogger.Logger
	now      func() time.Time
}

func NewResolver(provider domsvc.AdvisoryProvider, timeout time.Duration, logger *applogger.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Resolver{provider: provider, timeout: timeout, logger: logger, now: time.Now}
}

// Resolve always yields a recommendation. A missing, failed, slow or
// malformed advisory falls back to the primary period's champion.
func (r *Resolver) Resolve(ctx context.Context, agg *slots.Aggregate) models.Recommendation {
	quant := agg.Primary.ChampionSlot().Clock()
	rec := models.Recommendation{
		Symbol:        agg.Symbol,
		QuantTime:     quant,
		PrimaryPeriod: agg.Primary.PeriodDays,
		Periods:       agg.Periods,
		FailedPeriods: agg.FailedReasons(),
		GeneratedAt:   r.now(),
	}

	advice, err := r.ask(ctx, agg)
	if err != nil {
		rec.AdvisoryError = err.Error()
		r.logger.Warn("advisory unavailable, using quantitative pick",
			applogger.String("symbol", agg.Symbol), applogger.Error(err))
	}
	if advice != nil {
		rec.AdvisoryTime = advice.Time
		rec.AdvisoryReason = advice.Reason
		rec.AdvisoryModel = advice.Model
	}

	if advice != nil && util.IsClock(advice.Time) {
		rec.Time = advice.Time
		rec.Source = models.SourceAI
		rec.Agreed = advice.Time == quant
		return rec
	}
	if advice != nil && err == nil {
		rec.AdvisoryError = fmt.Sprintf("invalid advisory time %q", advice.Time)
		r.logger.Warn("advisory time rejected",
			applogger.String("symbol", agg.Symbol), applogger.String("advisory_time", advice.Time))
	}
	rec.Time = quant
	rec.Source = models.SourceQuantitativeFallback
	return rec
}

type suggestion struct {
	advice *models.Advice
	err    error
}

// ask bounds the provider call by the timeout even if the provider ignores
// its context.
func (r *Resolver) ask(ctx context.Context, agg *slots.Aggregate) (*models.Advice, error) {
	if r.provider == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan suggestion, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- suggestion{err: fmt.Errorf("provider panic: %v", p)}
			}
		}()
		a, err := r.provider.Suggest(ctx, agg.Symbol, agg.Periods)
		done <- suggestion{advice: a, err: err}
	}()

	select {
	case s := <-done:
		if s.err != nil {
			return nil, &errs.AdvisoryUnavailableError{Symbol: agg.Symbol, Err: s.err}
		}
		return s.advice, nil
	case <-ctx.Done():
		return nil, &errs.AdvisoryUnavailableError{Symbol: agg.Symbol, Err: ctx.Err()}
	}
}
