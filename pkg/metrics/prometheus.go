package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	guardDecisions *prometheus.CounterVec
	trades         *prometheus.CounterVec
	analyses       *prometheus.CounterVec
	sources        *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the collectors on reg (nil = default registry).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		guardDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcaclock_guard_decisions_total",
				Help: "Trigger guard evaluations by resulting state",
			},
			[]string{"symbol", "state"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcaclock_trades_total",
				Help: "Trade attempts by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcaclock_analysis_runs_total",
				Help: "Per-asset analysis runs by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		sources: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcaclock_recommendation_source_total",
				Help: "Resolved recommendations by provenance",
			},
			[]string{"symbol", "source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcaclock_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dcaclock_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordGuardDecision(symbol, state string) {
	r.guardDecisions.WithLabelValues(symbol, state).Inc()
}

func (r *Recorder) RecordTrade(symbol, outcome string) {
	r.trades.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordAnalysis(symbol, outcome string) {
	r.analyses.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordRecommendationSource(symbol, source string) {
	r.sources.WithLabelValues(symbol, source).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordGuardDecision(string, string)        {}
func (Nop) RecordTrade(string, string)                {}
func (Nop) RecordAnalysis(string, string)             {}
func (Nop) RecordRecommendationSource(string, string) {}
func (Nop) RecordError(string)                        {}
func (Nop) RecordLatency(string, float64)             {}
