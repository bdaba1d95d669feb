package slots

import (
	"sort"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
)

// better orders slots: lower median miss, then higher win rate, then the
// earlier slot. Exact comparisons keep the order total and reproducible.
func better(a, b models.SlotStatistic) bool {
	if a.MedianMiss != b.MedianMiss {
		return a.MedianMiss < b.MedianMiss
	}
	if a.WinRate != b.WinRate {
		return a.WinRate > b.WinRate
	}
	return a.Slot < b.Slot
}

// Rank returns the sampled slots, best first. Unsampled slots are dropped.
func Rank(stats []models.SlotStatistic) []models.SlotStatistic {
	ranked := make([]models.SlotStatistic, 0, len(stats))
	for _, st := range stats {
		if st.SampleCount > 0 {
			ranked = append(ranked, st)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return better(ranked[i], ranked[j]) })
	return ranked
}

// SelectChampion reduces one period's slot statistics to a PeriodResult.
func SelectChampion(m *Metrics) (*models.PeriodResult, error) {
	ranked := Rank(m.Slots)
	if len(ranked) == 0 {
		return nil, &errs.InsufficientDataError{Symbol: m.Symbol, PeriodDays: m.PeriodDays, CompleteDays: m.CompleteDays}
	}
	return &models.PeriodResult{
		Symbol:       m.Symbol,
		PeriodDays:   m.PeriodDays,
		WindowStart:  m.WindowStart,
		WindowEnd:    m.WindowEnd,
		CompleteDays: m.CompleteDays,
		ExcludedDays: m.ExcludedDays,
		Champion:     ranked[0],
		Slots:        m.Slots,
		Ranked:       ranked,
	}, nil
}
