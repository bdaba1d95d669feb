package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill confirms an executed market buy.
type Fill struct {
	OrderID    string
	Symbol     string
	Spent      decimal.Decimal // quote currency
	Received   decimal.Decimal // base currency
	Rate       decimal.Decimal // quote per unit
	ExecutedAt time.Time
	Paper      bool
}
