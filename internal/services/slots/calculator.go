// Package slots derives per-slot statistics from intraday candles and picks
// the time of day that historically sits closest to the daily low.
package slots

import (
	"math"
	"sort"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	"DCAClock/pkg/util"
)

// winEpsilon is the relative tolerance for "low equals the day low".
const winEpsilon = 1e-9

// Metrics is the per-slot output of one lookback period.
type Metrics struct {
	Symbol       string
	PeriodDays   int
	WindowStart  time.Time
	WindowEnd    time.Time
	CompleteDays int
	ExcludedDays int
	Slots        []models.SlotStatistic
}

type Calculator struct {
	loc      *time.Location
	interval time.Duration
}

func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc, interval: models.SlotInterval}
}

func (c *Calculator) Location() *time.Location { return c.loc }

type tradingDay struct {
	instants map[int64]struct{}
	bySlot   map[models.SlotKey]models.Candle
	low      float64 // over every candle, including a repeated DST hour
}

// Compute builds slot statistics over the periodDays local calendar days
// before asOf's local date. Days with any missing candle are skipped whole.
func (c *Calculator) Compute(symbol string, candles []models.Candle, periodDays int, asOf time.Time) (*Metrics, error) {
	windowEnd := util.StartOfDay(asOf, c.loc)
	windowStart := windowEnd.AddDate(0, 0, -periodDays)

	inWindow := make([]models.Candle, 0, len(candles))
	for _, cd := range candles {
		if !cd.Bucket.Before(windowStart) && cd.Bucket.Before(windowEnd) {
			inWindow = append(inWindow, cd)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool { return inWindow[i].Bucket.Before(inWindow[j].Bucket) })

	days := make(map[string]*tradingDay)
	for _, cd := range inWindow {
		if !cd.Bucket.Truncate(c.interval).Equal(cd.Bucket) {
			continue // off the slot grid
		}
		date := util.LocalDate(cd.Bucket, c.loc)
		d, ok := days[date]
		if !ok {
			d = &tradingDay{
				instants: make(map[int64]struct{}),
				bySlot:   make(map[models.SlotKey]models.Candle),
				low:      math.Inf(1),
			}
			days[date] = d
		}
		d.instants[cd.Bucket.Unix()] = struct{}{}
		if cd.Low < d.low {
			d.low = cd.Low
		}
		slot := models.SlotOf(cd.Bucket, c.loc)
		if _, seen := d.bySlot[slot]; !seen {
			d.bySlot[slot] = cd
		}
	}

	acc := make([]slotAccumulator, models.SlotsPerDay)
	m := &Metrics{
		Symbol:      symbol,
		PeriodDays:  periodDays,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	for day := windowStart; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		d, ok := days[day.Format(util.DateLayout)]
		if !ok || len(d.instants) < c.expectedCandles(day) || len(d.bySlot) < c.expectedSlots(day) {
			m.ExcludedDays++
			continue
		}
		dayLow := d.low
		if !(dayLow > 0) {
			m.ExcludedDays++
			continue
		}
		m.CompleteDays++
		for slot, cd := range d.bySlot {
			acc[slot].add(cd, dayLow)
		}
	}

	if m.CompleteDays < 2 {
		return nil, &errs.InsufficientDataError{Symbol: symbol, PeriodDays: periodDays, CompleteDays: m.CompleteDays}
	}

	m.Slots = make([]models.SlotStatistic, models.SlotsPerDay)
	for i := range acc {
		m.Slots[i] = acc[i].statistic(models.SlotKey(i))
	}
	return m, nil
}

// expectedCandles is the number of intervals in the local day starting at
// midnight; 92 or 100 on DST transition days.
func (c *Calculator) expectedCandles(midnight time.Time) int {
	next := midnight.AddDate(0, 0, 1)
	return int(next.Sub(midnight) / c.interval)
}

// expectedSlots counts the distinct local slots the day covers: 92 on a
// spring-forward day, 96 otherwise.
func (c *Calculator) expectedSlots(midnight time.Time) int {
	next := midnight.AddDate(0, 0, 1)
	seen := make(map[models.SlotKey]struct{}, models.SlotsPerDay)
	for t := midnight; t.Before(next); t = t.Add(c.interval) {
		seen[models.SlotOf(t, c.loc)] = struct{}{}
	}
	return len(seen)
}

type slotAccumulator struct {
	misses []float64
	sum    float64
	invSum float64
	wins   int
}

func (a *slotAccumulator) add(cd models.Candle, dayLow float64) {
	a.misses = append(a.misses, math.Abs(cd.Close-dayLow)/dayLow)
	a.sum += cd.Close
	if cd.Close > 0 {
		a.invSum += 1 / cd.Close
	}
	if math.Abs(cd.Low-dayLow) <= winEpsilon*dayLow {
		a.wins++
	}
}

func (a *slotAccumulator) statistic(slot models.SlotKey) models.SlotStatistic {
	n := len(a.misses)
	st := models.SlotStatistic{Slot: slot, SampleCount: n, Wins: a.wins}
	if n == 0 {
		return st
	}
	st.MissValues = a.misses
	st.MedianMiss = median(a.misses)
	st.WinRate = float64(a.wins) / float64(n)
	st.MeanPrice = a.sum / float64(n)
	if a.invSum > 0 {
		st.HarmonicPrice = float64(n) / a.invSum
	}
	return st
}

func median(values []float64) float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
