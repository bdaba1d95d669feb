package models

import "time"

type EventKind string

const (
	EventRecommendation    EventKind = "recommendation"
	EventAnalysisFailed    EventKind = "analysis_failed"
	EventTradeFired        EventKind = "trade_fired"
	EventTradeFailed       EventKind = "trade_failed"
	EventPersistenceFailed EventKind = "persistence_failed"
	EventGuardError        EventKind = "guard_error"
	EventErrorDigest       EventKind = "error_digest"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Event is a structured notification.
type Event struct {
	ID         string            `json:"id"`
	Kind       EventKind         `json:"kind"`
	Severity   Severity          `json:"severity"`
	Symbol     string            `json:"symbol,omitempty"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
