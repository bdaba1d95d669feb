package notify

import (
	"context"
	"fmt"

	"DCAClock/internal/domain/models"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// Kafka publishes events as JSON keyed by symbol, so one asset's events stay
// ordered within a partition.
type Kafka struct {
	producer EventPublisher
	topic    string
}

func NewKafka(producer EventPublisher, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Notify(ctx context.Context, event models.Event) error {
	key := event.Symbol
	if key == "" {
		key = string(event.Kind)
	}
	if err := k.producer.Publish(ctx, k.topic, []byte(key), event); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.Kind, err)
	}
	return nil
}
