package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]DigestEntry
}

func (s *captureSink) PublishDigest(_ context.Context, entries []DigestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, entries)
	return nil
}

func TestDigestFoldsRepeatedErrors(t *testing.T) {
	sink := &captureSink{}
	d := NewDigest(&DigestConfig{Interval: time.Hour, CountThreshold: 100, Sink: sink})

	for i := 0; i < 3; i++ {
		d.Add("commit failed", map[string]interface{}{"symbol": "BTC_THB"}, "x.go:1")
	}
	d.Add("commit failed", map[string]interface{}{"symbol": "ETH_THB"}, "x.go:1")
	d.Close()

	if len(sink.batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(sink.batches))
	}
	batch := sink.batches[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", len(batch))
	}
	total := 0
	for _, e := range batch {
		total += e.Count
	}
	if total != 4 {
		t.Fatalf("expected total count 4, got %d", total)
	}
}

func TestLoggerErrorFeedsDigest(t *testing.T) {
	sink := &captureSink{}
	l := Nop()
	l.AttachDigest(&DigestConfig{Interval: time.Hour, CountThreshold: 100, Sink: sink})

	l.With(String("symbol", "BTC_THB")).Error("trade failed", Error(errors.New("boom")))
	l.Info("not collected")
	l.DetachDigest()

	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("expected a single digest entry, got %+v", sink.batches)
	}
	e := sink.batches[0][0]
	if e.Message != "trade failed" {
		t.Fatalf("unexpected message %q", e.Message)
	}
	if e.Fields["symbol"] != "BTC_THB" || e.Fields["error"] != "boom" {
		t.Fatalf("unexpected fields %+v", e.Fields)
	}
}
