package advisory

import (
	"strings"
	"testing"
	"time"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		time   string
		reason string
	}{
		{"plain", "RECOMMENDED_TIME: 07:15\nREASON: lowest median miss.", "07:15", "lowest median miss."},
		{"fenced", "```text\nRECOMMENDED_TIME: 6:45\nREASON: stable\n```", "6:45", "stable"},
		{"no marker", "I think 7am is best", "", ""},
		{"bad clock kept raw", "RECOMMENDED_TIME: 25:99", "25:99", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := ParseReply(tc.in)
			if a.Time != tc.time || a.Reason != tc.reason {
				t.Fatalf("got %+v", a)
			}
		})
	}
}

func TestBuildPromptIncludesTables(t *testing.T) {
	agg := testAggregate()
	p := BuildPrompt(agg.Symbol, agg.Periods, time.UTC)
	for _, want := range []string{"RECOMMENDED_TIME: HH:MM", "last 30 days", "| 07:00 |"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
