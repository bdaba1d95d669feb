// Package binance reads 15-minute klines from Binance spot, over REST for
// history and over the websocket stream for live collection.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	apphttp "DCAClock/pkg/http"
	applogger "DCAClock/pkg/logger"
)

const (
	interval  = "15m"
	pageLimit = 1000
)

// MarketSymbol converts an analysis pair to the exchange form: BTC/USDT -> BTCUSDT.
func MarketSymbol(pair string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "")
	return strings.ToUpper(r.Replace(pair))
}

// Klines implements CandleFeed over GET /api/v3/klines.
type Klines struct {
	client  *apphttp.Client
	baseURL string
	logger  *applogger.Logger
}

func NewKlines(client *apphttp.Client, baseURL string, logger *applogger.Logger) *Klines {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Klines{client: client, baseURL: baseURL, logger: logger}
}

// GetCandles pages through [from, to). Bars that have not closed by to are
// dropped.
func (k *Klines) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	market := MarketSymbol(symbol)
	var out []models.Candle
	cursor := from

	for cursor.Before(to) {
		var rows [][]json.RawMessage
		err := k.client.SendAndParse(ctx, &apphttp.RequestOptions{
			Method: apphttp.MethodGet,
			URL:    apphttp.JoinURL(k.baseURL, "/api/v3/klines"),
			QueryParams: map[string][]string{
				"symbol":    {market},
				"interval":  {interval},
				"startTime": {strconv.FormatInt(cursor.UnixMilli(), 10)},
				"endTime":   {strconv.FormatInt(to.UnixMilli()-1, 10)},
				"limit":     {strconv.Itoa(pageLimit)},
			},
		}, &rows)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", market, err)
		}

		var last time.Time
		for _, row := range rows {
			c, err := parseRow(symbol, row)
			if err != nil {
				return nil, fmt.Errorf("binance klines %s: %w", market, err)
			}
			last = c.Bucket
			if c.Bucket.Add(models.SlotInterval).After(to) {
				continue
			}
			out = append(out, c)
		}
		if len(rows) < pageLimit {
			break
		}
		next := last.Add(models.SlotInterval)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	k.logger.Debug("binance klines fetched",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)))
	return out, nil
}

// parseRow decodes [openTime, open, high, low, close, volume, closeTime, ...].
func parseRow(symbol string, row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("short kline row (%d fields)", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	var fields [5]float64
	for i := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		fields[i] = v
	}
	return models.Candle{
		Bucket: time.UnixMilli(openMs).UTC(),
		Symbol: symbol,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
