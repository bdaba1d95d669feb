package models

import (
	"fmt"
	"time"
)

const (
	SlotInterval = 15 * time.Minute
	SlotsPerDay  = int(24 * time.Hour / SlotInterval)
)

// SlotKey is a 15-minute-of-day bucket in the analysis timezone, 0..95.
type SlotKey int

// SlotOf maps an instant to its bucket in loc.
func SlotOf(t time.Time, loc *time.Location) SlotKey {
	lt := t.In(loc)
	minutes := lt.Hour()*60 + lt.Minute()
	return SlotKey(minutes / int(SlotInterval/time.Minute))
}

// Clock renders the bucket start as HH:MM.
func (s SlotKey) Clock() string {
	m := int(s) * int(SlotInterval/time.Minute)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func (s SlotKey) String() string { return s.Clock() }

type SlotStatistic struct {
	Slot          SlotKey
	MissValues    []float64 // one per complete day, oldest first
	MedianMiss    float64
	WinRate       float64
	MeanPrice     float64
	HarmonicPrice float64 // average cost per unit for a fixed quote amount
	Wins          int
	SampleCount   int
}

// PeriodResult is the outcome of one lookback period for one asset.
type PeriodResult struct {
	Symbol       string
	PeriodDays   int
	WindowStart  time.Time // local midnight of the first day in the window
	WindowEnd    time.Time // local midnight after the last day in the window
	CompleteDays int
	ExcludedDays int
	Champion     SlotStatistic
	Slots        []SlotStatistic // indexed by SlotKey
	Ranked       []SlotStatistic // sampled slots, best first
}

func (p *PeriodResult) ChampionSlot() SlotKey { return p.Champion.Slot }

func (p *PeriodResult) ChampionMedianMiss() float64 { return p.Champion.MedianMiss }

func (p *PeriodResult) ChampionWinRate() float64 { return p.Champion.WinRate }

// Top returns up to n slots from the ranking.
func (p *PeriodResult) Top(n int) []SlotStatistic {
	if n < 0 {
		n = 0
	}
	if n > len(p.Ranked) {
		n = len(p.Ranked)
	}
	return p.Ranked[:n]
}
