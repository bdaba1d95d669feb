package usecase

import (
	"context"
	"errors"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	applogger "DCAClock/pkg/logger"
)

// CandleProcessor is satisfied by *middleware.CandlePipeline.
type CandleProcessor interface {
	Start(ctx context.Context)
	Process(ctx context.Context, c models.Candle) error
	Stop(ctx context.Context) error
}

var errStreamClosed = errors.New("candle stream closed")

// CandleCollector keeps the candle store filled from a live kline stream.
type CandleCollector struct {
	stream  domrepo.CandleStream
	proc    CandleProcessor
	metrics domrepo.Metrics
	logger  *applogger.Logger
	retryIn time.Duration
}

func NewCandleCollector(stream domrepo.CandleStream, proc CandleProcessor, metrics domrepo.Metrics, logger *applogger.Logger) *CandleCollector {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &CandleCollector{stream: stream, proc: proc, metrics: metrics, logger: logger, retryIn: 5 * time.Second}
}

// Run blocks until ctx ends, reconnecting whenever the stream drops.
func (c *CandleCollector) Run(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	c.proc.Start(ctx)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.proc.Stop(flushCtx); err != nil {
			c.logger.Warn("final candle flush failed", applogger.Error(err))
		}
		_ = c.stream.Close()
	}()

	for {
		candles, errc := c.stream.Read(ctx)
		err := c.consume(ctx, candles, errc)
		if ctx.Err() != nil {
			return nil
		}
		c.metrics.RecordError("stream")
		c.logger.Warn("candle stream interrupted, reconnecting", applogger.Error(err))

		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("reconnect failed", applogger.Error(rerr))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryIn):
			}
		}
		c.logger.Info("candle stream reconnected")
	}
}

func (c *CandleCollector) consume(ctx context.Context, candles <-chan models.Candle, errc <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cd, ok := <-candles:
			if !ok {
				if err, ok := <-errc; ok && err != nil {
					return err
				}
				return errStreamClosed
			}
			if err := c.proc.Process(ctx, cd); err != nil {
				c.logger.Warn("candle not stored",
					applogger.String("symbol", cd.Symbol), applogger.Stringer("bucket", cd.Bucket), applogger.Error(err))
			}
		}
	}
}
