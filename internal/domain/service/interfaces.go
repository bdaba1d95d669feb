package service

import (
	"context"

	"DCAClock/internal/domain/models"

	"github.com/shopspring/decimal"
)

// AdvisoryProvider suggests a target time from period summaries. A nil
// advice with nil error means no suggestion.
type AdvisoryProvider interface {
	Suggest(ctx context.Context, symbol string, periods []models.PeriodResult) (*models.Advice, error)
}

// TradeExecutor places a market buy spending amount of the quote currency.
type TradeExecutor interface {
	Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*models.Fill, error)
}
