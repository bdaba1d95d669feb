package advisory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	"DCAClock/internal/services/report"
)

var (
	timeLine   = regexp.MustCompile(`RECOMMENDED_TIME:\s*(\d{1,2}:\d{2})`)
	reasonLine = regexp.MustCompile(`(?s)REASON:\s*(.+)`)
	fence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// BuildPrompt asks for one buy time chosen from the reported tables.
func BuildPrompt(symbol string, periods []models.PeriodResult, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a crypto DCA timing analyst. Choose ONE daily buy time (HH:MM, %s) for %s from the report below.\n\n", loc.String(), symbol)
	b.WriteString(`METRICS:
- Median miss: median relative overpayment versus that day's absolute low. LOWER is better. This is the primary objective.
- Win rate: share of days where that slot's low was the day's low. HIGHER is better. Secondary.

RULES:
- Do not invent numbers; only use values in the report.
- Only choose times that appear in the tables.
- Prefer the longer windows unless a shorter window is clearly better on median miss and win rate.

OUTPUT FORMAT (exactly):
RECOMMENDED_TIME: HH:MM
REASON: <at most 3 sentences naming the windows that drove the decision>

Report:
`)
	b.WriteString(report.Periods(symbol, periods, loc))
	return b.String()
}

// ParseReply extracts the time and reason from a model reply. Time is left
// unvalidated; an absent marker yields an empty Time.
func ParseReply(text string) models.Advice {
	text = strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	var a models.Advice
	if m := timeLine.FindStringSubmatch(text); m != nil {
		a.Time = m[1]
	}
	if m := reasonLine.FindStringSubmatch(text); m != nil {
		a.Reason = strings.TrimSpace(m[1])
	}
	return a
}
