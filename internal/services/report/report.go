// Package report renders analysis results as Markdown for chat sinks and as
// the context handed to advisory providers.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
)

const topN = 5

// Periods renders the per-period tables only.
func Periods(symbol string, periods []models.PeriodResult, loc *time.Location) string {
	var b strings.Builder
	for _, p := range periods {
		writePeriod(&b, symbol, p, loc)
	}
	return b.String()
}

func writePeriod(b *strings.Builder, symbol string, p models.PeriodResult, loc *time.Location) {
	fmt.Fprintf(b, "### %s, last %d days\n", symbol, p.PeriodDays)
	fmt.Fprintf(b, "Range: %s -> %s (%d complete, %d skipped)\n",
		p.WindowStart.In(loc).Format("2006-01-02"),
		p.WindowEnd.In(loc).AddDate(0, 0, -1).Format("2006-01-02"),
		p.CompleteDays, p.ExcludedDays)
	b.WriteString("| Time | Median miss | Win rate | Avg price | DCA price |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, st := range p.Top(topN) {
		fmt.Fprintf(b, "| %s | %.3f%% | %.1f%% | %s | %s |\n",
			st.Slot.Clock(), st.MedianMiss*100, st.WinRate*100,
			price(st.MeanPrice), price(st.HarmonicPrice))
	}
	b.WriteString("\n")
}

// Full renders the complete report for one recommendation.
func Full(rec *models.Recommendation, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## DCA timing: %s\n", rec.Symbol)
	b.WriteString(Summary(rec))
	b.WriteString("\n\n")
	for _, p := range rec.Periods {
		writePeriod(&b, rec.Symbol, p, loc)
	}
	if len(rec.FailedPeriods) > 0 {
		b.WriteString("Skipped periods:\n")
		days := make([]int, 0, len(rec.FailedPeriods))
		for d := range rec.FailedPeriods {
			days = append(days, d)
		}
		sort.Ints(days)
		for _, d := range days {
			fmt.Fprintf(&b, "- %dd: %s\n", d, rec.FailedPeriods[d])
		}
	}
	if rec.AdvisoryReason != "" {
		fmt.Fprintf(&b, "\nAdvisory (%s): %s\n", rec.AdvisoryModel, rec.AdvisoryReason)
	}
	return b.String()
}

// Summary is the short form: resolved time, provenance and the quant pick.
func Summary(rec *models.Recommendation) string {
	label := "Quantitative"
	switch {
	case rec.Source == models.SourceAI && rec.Agreed:
		label = "Consensus (AI + quantitative)"
	case rec.Source == models.SourceAI:
		label = "AI"
	}
	line := fmt.Sprintf("Target time **%s** (%s). %dd champion: %s",
		rec.Time, label, rec.PrimaryPeriod, rec.QuantTime)
	if rec.AdvisoryError != "" {
		line += fmt.Sprintf(". Advisory skipped: %s", rec.AdvisoryError)
	}
	return line
}

func price(v float64) string {
	switch {
	case v == 0:
		return "-"
	case v >= 1000:
		return fmt.Sprintf("%.2f", v)
	case v >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.8f", v)
	}
}
