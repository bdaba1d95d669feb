package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/pkg/queue"
)

const deliveryType = "notify.event"

// Queued hands events to the delivery queue; a worker later pushes them to
// the real sinks with retries.
type Queued struct {
	publisher queue.Publisher
}

func NewQueued(p queue.Publisher) *Queued {
	return &Queued{publisher: p}
}

func (q *Queued) Notify(ctx context.Context, event models.Event) error {
	if err := q.publisher.PublishMessage(ctx, deliveryType, event); err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Kind, err)
	}
	return nil
}

// DeliveryJob is the queue job that forwards queued events to sinks. A sink
// error is returned so the queue retries the message.
type DeliveryJob struct {
	sink domrepo.Notifier
}

func NewDeliveryJob(sink domrepo.Notifier) *DeliveryJob {
	return &DeliveryJob{sink: sink}
}

func (j *DeliveryJob) Name() string { return "notification-delivery" }

func (j *DeliveryJob) Type() string { return deliveryType }

func (j *DeliveryJob) Handle(ctx context.Context, payload json.RawMessage) error {
	event, err := queue.Decode[models.Event](payload)
	if err != nil {
		return err
	}
	return j.sink.Notify(ctx, *event)
}
