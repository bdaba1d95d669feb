// Package notify delivers domain events to chat and streaming sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	applogger "DCAClock/pkg/logger"

	"github.com/google/uuid"
)

// NewEvent stamps an event with an id and the current time.
func NewEvent(kind models.EventKind, severity models.Severity, symbol, title, message string) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Severity:   severity,
		Symbol:     symbol,
		Title:      title,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

// Fanout sends every event to all sinks and joins their errors.
type Fanout []domrepo.Notifier

func (f Fanout) Notify(ctx context.Context, event models.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Safe never fails: sink errors and panics are logged and dropped, so a
// broken webhook cannot change the outcome of a trade or analysis.
type Safe struct {
	next   domrepo.Notifier
	logger *applogger.Logger
}

func NewSafe(next domrepo.Notifier, logger *applogger.Logger) *Safe {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Safe{next: next, logger: logger}
}

func (s *Safe) Notify(ctx context.Context, event models.Event) (err error) {
	if s.next == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panic: %v", p)
		}
		if err != nil {
			// Warn, not Error: error logs feed the digest, which notifies.
			s.logger.Warn("notification failed",
				applogger.String("kind", string(event.Kind)),
				applogger.String("symbol", event.Symbol),
				applogger.Error(err))
		}
		err = nil
	}()
	return s.next.Notify(ctx, event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, models.Event) error { return nil }
