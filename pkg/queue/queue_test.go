package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	type payload struct {
		Symbol string `json:"symbol"`
	}
	got, err := Decode[payload](json.RawMessage(`{"symbol":"BTC_THB"}`))
	if err != nil || got.Symbol != "BTC_THB" {
		t.Fatalf("Decode: %+v %v", got, err)
	}
	if _, err := Decode[payload](json.RawMessage(`[`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRetryDelay(t *testing.T) {
	base := 10 * time.Second
	cases := map[int]time.Duration{1: 10 * time.Second, 2: 20 * time.Second, 3: 40 * time.Second, 20: time.Hour}
	for attempt, want := range cases {
		if got := retryDelay(base, attempt); got != want {
			t.Fatalf("attempt %d: got %s want %s", attempt, got, want)
		}
	}
}

func TestEnqueueRequiresStart(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, ModeProducerOnly)
	if err := q.Enqueue(context.Background(), "x", 1); err == nil {
		t.Fatalf("expected error before Start")
	}
}
