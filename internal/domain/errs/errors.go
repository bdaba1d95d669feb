// Package errs holds the error taxonomy shared by the analysis and trade
// cycles. Every typed error matches its sentinel through errors.Is.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInsufficientData       = errors.New("insufficient data")
	ErrNoViableRecommendation = errors.New("no viable recommendation")
	ErrAdvisoryUnavailable    = errors.New("advisory unavailable")
	ErrConfigPersistence      = errors.New("config persistence failed")
	ErrTradeExecution         = errors.New("trade execution failed")

	ErrConfigNotFound    = errors.New("trade config not found")
	ErrConfigExists      = errors.New("trade config already exists")
	ErrVersionConflict   = errors.New("trade config version conflict")
	ErrInvalidTargetTime = errors.New("invalid target time")
	ErrNonMonotonicDate  = errors.New("last buy date would move backwards")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// InsufficientDataError marks one lookback period as unusable.
type InsufficientDataError struct {
	Symbol       string
	PeriodDays   int
	CompleteDays int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %d-day period has %d complete days, need at least 2",
		e.Symbol, e.PeriodDays, e.CompleteDays)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// NoViableRecommendationError means every period failed for an asset.
type NoViableRecommendationError struct {
	Symbol string
	Causes map[int]error
}

func (e *NoViableRecommendationError) Error() string {
	periods := make([]int, 0, len(e.Causes))
	for p := range e.Causes {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	parts := make([]string, 0, len(periods))
	for _, p := range periods {
		parts = append(parts, fmt.Sprintf("%dd: %v", p, e.Causes[p]))
	}
	return fmt.Sprintf("%s: no viable recommendation (%s)", e.Symbol, strings.Join(parts, "; "))
}

func (e *NoViableRecommendationError) Is(target error) bool {
	return target == ErrNoViableRecommendation
}

// AdvisoryUnavailableError wraps a failed or timed out advisory call.
type AdvisoryUnavailableError struct {
	Symbol string
	Err    error
}

func (e *AdvisoryUnavailableError) Error() string {
	return fmt.Sprintf("%s: advisory unavailable: %v", e.Symbol, e.Err)
}

func (e *AdvisoryUnavailableError) Unwrap() error { return e.Err }

func (e *AdvisoryUnavailableError) Is(target error) bool { return target == ErrAdvisoryUnavailable }

// ConfigPersistenceError is raised once the bounded commit retry is exhausted.
type ConfigPersistenceError struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *ConfigPersistenceError) Error() string {
	return fmt.Sprintf("%s: persisting trade config failed after %d attempts: %v", e.Symbol, e.Attempts, e.Err)
}

func (e *ConfigPersistenceError) Unwrap() error { return e.Err }

func (e *ConfigPersistenceError) Is(target error) bool { return target == ErrConfigPersistence }

// TradeExecutionError reports a failed market buy. It is never retried.
type TradeExecutionError struct {
	Symbol string
	Err    error
}

func (e *TradeExecutionError) Error() string {
	return fmt.Sprintf("%s: trade execution failed: %v", e.Symbol, e.Err)
}

func (e *TradeExecutionError) Unwrap() error { return e.Err }

func (e *TradeExecutionError) Is(target error) bool { return target == ErrTradeExecution }
