package models

import "time"

type RecommendationSource string

const (
	SourceAI                   RecommendationSource = "ai"
	SourceQuantitativeFallback RecommendationSource = "quantitative-fallback"
)

// Recommendation is the resolved target time for one asset in one analysis run.
type Recommendation struct {
	Symbol         string
	Time           string // HH:MM local
	Source         RecommendationSource
	QuantTime      string // primary period champion
	PrimaryPeriod  int
	AdvisoryTime   string // raw advisory value, may be invalid
	AdvisoryReason string
	AdvisoryModel  string
	AdvisoryError  string
	Agreed         bool // advisory matched the quantitative pick
	Periods        []PeriodResult
	FailedPeriods  map[int]string
	GeneratedAt    time.Time
}

// Advice is what an advisory provider suggests; Time is unvalidated.
type Advice struct {
	Time   string
	Reason string
	Model  string
}

// PeriodSummary is the compact, transport-friendly view of a PeriodResult.
type PeriodSummary struct {
	PeriodDays   int      `json:"period_days"`
	Champion     string   `json:"champion"`
	MedianMiss   float64  `json:"median_miss"`
	WinRate      float64  `json:"win_rate"`
	CompleteDays int      `json:"complete_days"`
	TopSlots     []string `json:"top_slots"`
}

func SummarizePeriod(p PeriodResult, top int) PeriodSummary {
	s := PeriodSummary{
		PeriodDays:   p.PeriodDays,
		Champion:     p.Champion.Slot.Clock(),
		MedianMiss:   p.Champion.MedianMiss,
		WinRate:      p.Champion.WinRate,
		CompleteDays: p.CompleteDays,
	}
	for _, st := range p.Top(top) {
		s.TopSlots = append(s.TopSlots, st.Slot.Clock())
	}
	return s
}

// RecommendationView is the cached/served shape of a Recommendation.
type RecommendationView struct {
	Symbol        string               `json:"symbol"`
	Time          string               `json:"time"`
	Source        RecommendationSource `json:"source"`
	QuantTime     string               `json:"quant_time"`
	PrimaryPeriod int                  `json:"primary_period"`
	AdvisoryTime  string               `json:"advisory_time,omitempty"`
	AdvisoryError string               `json:"advisory_error,omitempty"`
	Agreed        bool                 `json:"agreed"`
	Periods       []PeriodSummary      `json:"periods"`
	FailedPeriods map[int]string       `json:"failed_periods,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

func (r *Recommendation) View() RecommendationView {
	v := RecommendationView{
		Symbol:        r.Symbol,
		Time:          r.Time,
		Source:        r.Source,
		QuantTime:     r.QuantTime,
		PrimaryPeriod: r.PrimaryPeriod,
		AdvisoryTime:  r.AdvisoryTime,
		AdvisoryError: r.AdvisoryError,
		Agreed:        r.Agreed,
		FailedPeriods: r.FailedPeriods,
		GeneratedAt:   r.GeneratedAt,
	}
	for _, p := range r.Periods {
		v.Periods = append(v.Periods, SummarizePeriod(p, 5))
	}
	return v
}
