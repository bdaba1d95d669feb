package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DCAClock/internal/domain/models"
	"DCAClock/pkg/metrics"
)

type fakeStream struct {
	mu         sync.Mutex
	batches    [][]models.Candle
	reads      int
	reconnects int
	closed     bool
}

func (s *fakeStream) Connect(context.Context) error { return nil }

func (s *fakeStream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	s.mu.Lock()
	i := s.reads
	s.reads++
	s.mu.Unlock()

	candles := make(chan models.Candle, 16)
	errc := make(chan error, 1)
	if i < len(s.batches) {
		for _, c := range s.batches[i] {
			candles <- c
		}
		errc <- errors.New("connection reset")
		close(candles)
		close(errc)
		return candles, errc
	}
	go func() {
		<-ctx.Done()
		close(candles)
		close(errc)
	}()
	return candles, errc
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type recordingProc struct {
	mu      sync.Mutex
	seen    []models.Candle
	stopped bool
}

func (p *recordingProc) Start(context.Context) {}

func (p *recordingProc) Process(_ context.Context, c models.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, c)
	return nil
}

func (p *recordingProc) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestCollectorReconnectsAfterDrop(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	stream := &fakeStream{batches: [][]models.Candle{{
		{Symbol: "BTC/USDT", Bucket: t0, Low: 1, High: 1, Close: 1},
		{Symbol: "BTC/USDT", Bucket: t0.Add(15 * time.Minute), Low: 1, High: 1, Close: 1},
	}}}
	proc := &recordingProc{}
	c := NewCandleCollector(stream, proc, metrics.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		stream.mu.Lock()
		reconnected := stream.reconnects == 1 && stream.reads == 2
		stream.mu.Unlock()
		if reconnected && proc.count() == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("collector did not reconnect: reads=%d candles=%d", stream.reads, proc.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not stop")
	}
	if !proc.stopped || !stream.closed {
		t.Fatalf("expected flush and close on shutdown")
	}
}
