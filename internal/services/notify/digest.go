package notify

import (
	"context"
	"fmt"
	"strings"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/pkg/logger"
)

// DigestSink turns aggregated error logs into one warn event per flush.
type DigestSink struct {
	next domrepo.Notifier
}

func NewDigestSink(next domrepo.Notifier) *DigestSink {
	return &DigestSink{next: next}
}

func (d *DigestSink) PublishDigest(ctx context.Context, entries []logger.DigestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var b strings.Builder
	total := 0
	for _, e := range entries {
		total += e.Count
		fmt.Fprintf(&b, "- **%s** x%d (%s)", e.Message, e.Count, e.Caller)
		if msg, ok := e.Fields["error"]; ok && msg != "" {
			fmt.Fprintf(&b, ": %v", msg)
		}
		b.WriteString("\n")
	}
	ev := NewEvent(models.EventErrorDigest, models.SeverityWarn, "",
		fmt.Sprintf("Error digest: %d errors, %d distinct", total, len(entries)), b.String())
	return d.next.Notify(ctx, ev)
}
