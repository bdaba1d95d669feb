package bitkub

import (
	"context"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	applogger "DCAClock/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Paper simulates market buys at the last candle close. pairFor maps a
// trade config key back to the feed symbol.
type Paper struct {
	feed    domrepo.CandleFeed
	pairFor func(key string) string
	logger  *applogger.Logger
	now     func() time.Time
}

func NewPaper(feed domrepo.CandleFeed, pairFor func(string) string, logger *applogger.Logger) *Paper {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Paper{feed: feed, pairFor: pairFor, logger: logger, now: time.Now}
}

func (p *Paper) Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*models.Fill, error) {
	now := p.now().UTC()
	fill := &models.Fill{
		OrderID:    "paper-" + uuid.NewString(),
		Symbol:     symbol,
		Spent:      amount,
		ExecutedAt: now,
		Paper:      true,
	}
	if p.feed == nil || p.pairFor == nil {
		return fill, nil
	}
	candles, err := p.feed.GetCandles(ctx, p.pairFor(symbol), now.Add(-2*time.Hour), now)
	if err != nil || len(candles) == 0 {
		p.logger.Warn("paper buy without price", applogger.String("symbol", symbol), applogger.Error(err))
		return fill, nil
	}
	price := decimal.NewFromFloat(candles[len(candles)-1].Close)
	if price.IsPositive() {
		fill.Rate = price
		fill.Received = amount.Div(price)
	}
	return fill, nil
}
