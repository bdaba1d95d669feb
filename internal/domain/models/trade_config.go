package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetTradeConfig is the persisted per-asset trading record. JSON names
// match the DCA target map format; Version drives optimistic concurrency.
type AssetTradeConfig struct {
	Time        string          `json:"TIME"`
	Amount      decimal.Decimal `json:"AMOUNT"`
	BuyEnabled  bool            `json:"BUY_ENABLED"`
	LastBuyDate string          `json:"LAST_BUY_DATE"`
	Version     int64           `json:"VERSION"`
	UpdatedAt   time.Time       `json:"UPDATED_AT"`
}

// UnmarshalJSON accepts both the object form and the legacy bare "HH:MM"
// string. A missing BUY_ENABLED means enabled.
func (c *AssetTradeConfig) UnmarshalJSON(b []byte) error {
	var legacy string
	if err := json.Unmarshal(b, &legacy); err == nil {
		*c = AssetTradeConfig{Time: strings.TrimSpace(legacy), BuyEnabled: true}
		return nil
	}

	type plain AssetTradeConfig
	var raw struct {
		plain
		BuyEnabled *bool `json:"BUY_ENABLED"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("asset trade config: %w", err)
	}
	*c = AssetTradeConfig(raw.plain)
	c.BuyEnabled = raw.BuyEnabled == nil || *raw.BuyEnabled
	return nil
}

// ConfigKey builds the exchange key for an analysis pair, e.g.
// ("BTC/USDT", "THB") -> "BTC_THB".
func ConfigKey(pair, quote string) string {
	base := pair
	if i := strings.IndexAny(pair, "/_-"); i > 0 {
		base = pair[:i]
	}
	return strings.ToUpper(base) + "_" + strings.ToUpper(quote)
}

// CandidateKeys lists the keys a pair may be stored under, most specific first.
func CandidateKeys(pair, quote string) []string {
	key := ConfigKey(pair, quote)
	if key == pair {
		return []string{key}
	}
	return []string{key, pair}
}
