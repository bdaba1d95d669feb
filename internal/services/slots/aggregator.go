package slots

import (
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
)

var DefaultPeriods = []int{14, 30, 45, 60}

const DefaultPrimaryPeriod = 30

// Aggregate is the multi-period outcome for one asset.
type Aggregate struct {
	Symbol  string
	AsOf    time.Time
	Periods []models.PeriodResult // configured order, failed periods omitted
	Failed  map[int]error
	Primary *models.PeriodResult
}

// FailedReasons flattens Failed for reporting.
func (a *Aggregate) FailedReasons() map[int]string {
	if len(a.Failed) == 0 {
		return nil
	}
	out := make(map[int]string, len(a.Failed))
	for p, err := range a.Failed {
		out[p] = err.Error()
	}
	return out
}

type Aggregator struct {
	calc    *Calculator
	periods []int
	primary int
}

type AggregatorOption func(*Aggregator)

// WithPeriods sets the lookback periods, in reporting order.
func WithPeriods(periods ...int) AggregatorOption {
	return func(a *Aggregator) {
		if len(periods) > 0 {
			a.periods = append([]int(nil), periods...)
		}
	}
}

// WithPrimaryPeriod sets the period whose champion is the quantitative pick.
func WithPrimaryPeriod(days int) AggregatorOption {
	return func(a *Aggregator) {
		if days > 0 {
			a.primary = days
		}
	}
}

func NewAggregator(calc *Calculator, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		calc:    calc,
		periods: append([]int(nil), DefaultPeriods...),
		primary: DefaultPrimaryPeriod,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Periods() []int { return append([]int(nil), a.periods...) }

func (a *Aggregator) Location() *time.Location { return a.calc.Location() }

// LookbackDays is how many days of history callers should fetch: the longest
// period plus one day of slack for timezone edges.
func (a *Aggregator) LookbackDays() int {
	longest := 0
	for _, p := range a.periods {
		if p > longest {
			longest = p
		}
	}
	return longest + 1
}

// Aggregate runs every period independently. A failing period is recorded
// and skipped; only when all fail does the asset fail.
func (a *Aggregator) Aggregate(symbol string, candles []models.Candle, asOf time.Time) (*Aggregate, error) {
	out := &Aggregate{Symbol: symbol, AsOf: asOf, Failed: make(map[int]error)}

	for _, days := range a.periods {
		m, err := a.calc.Compute(symbol, candles, days, asOf)
		if err != nil {
			out.Failed[days] = err
			continue
		}
		res, err := SelectChampion(m)
		if err != nil {
			out.Failed[days] = err
			continue
		}
		out.Periods = append(out.Periods, *res)
	}

	if len(out.Periods) == 0 {
		return nil, &errs.NoViableRecommendationError{Symbol: symbol, Causes: out.Failed}
	}
	out.Primary = a.pickPrimary(out.Periods)
	return out, nil
}

// pickPrimary prefers the configured primary period, then the longest
// period that succeeded.
func (a *Aggregator) pickPrimary(results []models.PeriodResult) *models.PeriodResult {
	var longest *models.PeriodResult
	for i := range results {
		r := &results[i]
		if r.PeriodDays == a.primary {
			return r
		}
		if longest == nil || r.PeriodDays > longest.PeriodDays {
			longest = r
		}
	}
	return longest
}
