package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
)

// CandlePipeline sits between the kline stream and the candle store. It
// validates bars, drops replays, batches writes and keeps unwritten bars
// buffered while the store is unavailable.
type CandlePipeline struct {
	sink     domrepo.CandleSink
	metrics  domrepo.Metrics
	batch    int
	bufSize  int
	interval time.Duration

	mu       sync.Mutex
	pending  []models.Candle
	lastSeen map[string]time.Time // per-symbol last accepted bucket
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type PipelineOption func(*CandlePipeline)

// WithBatchSize flushes once this many bars are pending.
func WithBatchSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.batch = n
		}
	}
}

// WithBufferSize caps bars held while the store fails; the oldest are dropped.
func WithBufferSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *CandlePipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

func NewCandlePipeline(sink domrepo.CandleSink, metrics domrepo.Metrics, opts ...PipelineOption) *CandlePipeline {
	p := &CandlePipeline{
		sink:     sink,
		metrics:  metrics,
		batch:    50,
		bufSize:  5000,
		interval: 5 * time.Second,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start flushes pending bars on an interval until Stop.
func (p *CandlePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = p.Flush(ctx)
			}
		}
	}()
}

// Stop ends the flush loop and writes what is still pending.
func (p *CandlePipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	stop, done := p.stopCh, p.doneCh
	p.stopCh, p.doneCh = nil, nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	return p.Flush(ctx)
}

// Process accepts one closed bar.
func (p *CandlePipeline) Process(ctx context.Context, c models.Candle) error {
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.Lock()
	if last, ok := p.lastSeen[c.Symbol]; ok && !c.Bucket.After(last) {
		p.mu.Unlock()
		return nil
	}
	p.lastSeen[c.Symbol] = c.Bucket
	p.pending = append(p.pending, c)
	full := len(p.pending) >= p.batch
	p.mu.Unlock()

	if full {
		return p.Flush(ctx)
	}
	return nil
}

// Flush writes pending bars. On failure they stay pending, bounded by the
// buffer size.
func (p *CandlePipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return nil
	}
	out := p.pending
	p.pending = nil
	p.mu.Unlock()

	start := time.Now()
	if err := p.sink.StoreCandles(ctx, out); err != nil {
		p.metrics.RecordError("pipeline_flush")
		p.mu.Lock()
		p.pending = append(out, p.pending...)
		if over := len(p.pending) - p.bufSize; over > 0 {
			p.pending = p.pending[over:]
			p.metrics.RecordError("pipeline_buffer_drop")
		}
		p.mu.Unlock()
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
	return nil
}

// Pending reports how many bars await a write.
func (p *CandlePipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func validateCandle(c models.Candle) error {
	if c.Symbol == "" {
		return fmt.Errorf("candle symbol empty")
	}
	if c.Bucket.IsZero() || !c.Bucket.Equal(c.Bucket.Truncate(models.SlotInterval)) {
		return fmt.Errorf("%s: candle bucket %s not on a %s boundary", c.Symbol, c.Bucket, models.SlotInterval)
	}
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s: candle has invalid value %v", c.Symbol, v)
		}
	}
	if c.Low <= 0 || c.High < c.Low {
		return fmt.Errorf("%s: candle range %v..%v invalid", c.Symbol, c.Low, c.High)
	}
	return nil
}
