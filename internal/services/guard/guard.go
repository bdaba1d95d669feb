// Package guard decides, per asset and per invocation, whether the daily
// buy should fire now. It is pure: callers own persistence and execution.
package guard

import (
	"fmt"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	"DCAClock/pkg/util"
)

type State string

const (
	StateIdle     State = "IDLE"
	StateEligible State = "ELIGIBLE"
	StateFired    State = "FIRED"
	StateDisabled State = "DISABLED"
)

const (
	DefaultLeadTolerance = time.Minute
	DefaultCatchUpWindow = 10 * time.Minute
)

// Decision is the outcome of one evaluation. Err is set only for records
// that cannot be evaluated (bad target time).
type Decision struct {
	Symbol string
	State  State
	Fire   bool
	Reason string
	Today  string
	Target time.Time
	Delta  time.Duration // now - target
	Err    error
}

type Guard struct {
	loc           *time.Location
	leadTolerance time.Duration
	catchUpWindow time.Duration
}

type Option func(*Guard)

// WithLeadTolerance lets a trigger fire slightly before the target time.
func WithLeadTolerance(d time.Duration) Option {
	return func(g *Guard) {
		if d >= 0 {
			g.leadTolerance = d
		}
	}
}

// WithCatchUpWindow bounds how late a missed trigger may still fire.
func WithCatchUpWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d >= 0 {
			g.catchUpWindow = d
		}
	}
}

func New(loc *time.Location, opts ...Option) *Guard {
	if loc == nil {
		loc = time.UTC
	}
	g := &Guard{loc: loc, leadTolerance: DefaultLeadTolerance, catchUpWindow: DefaultCatchUpWindow}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Location() *time.Location { return g.loc }

// Today is the local calendar date used for LastBuyDate bookkeeping.
func (g *Guard) Today(now time.Time) string { return util.LocalDate(now, g.loc) }

func (g *Guard) Decide(symbol string, cfg models.AssetTradeConfig, now time.Time) Decision {
	today := g.Today(now)
	d := Decision{Symbol: symbol, State: StateIdle, Today: today}

	if !cfg.BuyEnabled {
		d.State = StateDisabled
		d.Reason = "buying disabled"
		return d
	}
	// Dates are YYYY-MM-DD so string order is calendar order; a future date
	// from clock skew also blocks.
	if cfg.LastBuyDate != "" && cfg.LastBuyDate >= today {
		d.Reason = "already bought on " + cfg.LastBuyDate
		return d
	}

	hour, minute, err := util.ParseClock(cfg.Time)
	if err != nil {
		d.Reason = "invalid target time"
		d.Err = fmt.Errorf("%s: %w: %v", symbol, errs.ErrInvalidTargetTime, err)
		return d
	}

	d.Target = util.AtClock(now, g.loc, hour, minute)
	d.Delta = now.Sub(d.Target)
	switch {
	case d.Delta < -g.leadTolerance:
		d.Reason = fmt.Sprintf("target %s not reached", cfg.Time)
	case d.Delta > g.catchUpWindow:
		d.Reason = fmt.Sprintf("target %s passed %s ago, outside catch-up window", cfg.Time, d.Delta.Truncate(time.Second))
	default:
		d.State = StateEligible
		d.Fire = true
		d.Reason = fmt.Sprintf("target %s due", cfg.Time)
	}
	return d
}

// Commit marks cfg as bought today. Only LastBuyDate changes.
func (g *Guard) Commit(cfg models.AssetTradeConfig, today string) (models.AssetTradeConfig, error) {
	if _, err := time.ParseInLocation(util.DateLayout, today, g.loc); err != nil {
		return cfg, fmt.Errorf("commit date %q: %w", today, err)
	}
	if cfg.LastBuyDate > today {
		return cfg, fmt.Errorf("%w: %s -> %s", errs.ErrNonMonotonicDate, cfg.LastBuyDate, today)
	}
	cfg.LastBuyDate = today
	return cfg, nil
}
