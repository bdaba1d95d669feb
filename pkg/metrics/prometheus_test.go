package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordGuardDecision("BTC_THB", "ELIGIBLE")
	r.RecordGuardDecision("BTC_THB", "ELIGIBLE")
	r.RecordTrade("BTC_THB", "filled")
	r.RecordError("persistence")
	r.RecordLatency("trigger", 0.2)

	if got := testutil.ToFloat64(r.guardDecisions.WithLabelValues("BTC_THB", "ELIGIBLE")); got != 2 {
		t.Fatalf("guard decisions = %v", got)
	}
	if got := testutil.ToFloat64(r.trades.WithLabelValues("BTC_THB", "filled")); got != 1 {
		t.Fatalf("trades = %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("persistence")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
