package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "snappy")

	payload := map[string]string{"symbol": "BTC_THB"}
	if err := p.Publish(context.Background(), "dca.events", []byte("BTC_THB"), payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "dca.events" || string(m.Key) != "BTC_THB" {
		t.Fatalf("unexpected message %+v", m)
	}
	var got map[string]string
	if err := json.Unmarshal(m.Value, &got); err != nil || got["symbol"] != "BTC_THB" {
		t.Fatalf("bad payload %s: %v", m.Value, err)
	}
}

func TestPublishRawBytesAndError(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip")
	if err := p.Publish(context.Background(), "t", nil, []byte("raw")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if string(w.msgs[0].Value) != "raw" {
		t.Fatalf("raw bytes re-encoded: %s", w.msgs[0].Value)
	}

	w.err = errors.New("broker down")
	if err := p.Publish(context.Background(), "t", nil, "x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
