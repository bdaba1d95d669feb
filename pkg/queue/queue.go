package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type QueueConfig struct {
	Workers    int
	QueueSize  int           // local buffer for in-process queues
	RetryLimit int           // attempts before a message goes to the dead-letter list
	RetryDelay time.Duration // base delay, doubled per attempt
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals a job payload.
func Decode[T any](payload json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}

// retryDelay doubles the base delay per attempt, capped at one hour.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
