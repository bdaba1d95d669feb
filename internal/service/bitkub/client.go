// Package bitkub places market buys on Bitkub's v3 REST API.
package bitkub

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	apphttp "DCAClock/pkg/http"
	applogger "DCAClock/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	pathServerTime = "/api/v3/servertime"
	pathPlaceBid   = "/api/v3/market/place-bid"
	pathOrderInfo  = "/api/v3/market/order-info"
)

// Client signs requests with HMAC-SHA256 over
// timestamp + method + path[?query] + body.
type Client struct {
	http     *apphttp.Client
	baseURL  string
	key      string
	secret   string
	fillWait time.Duration
	logger   *applogger.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

func NewClient(httpClient *apphttp.Client, baseURL, key, secret string, fillWait time.Duration, logger *applogger.Logger) *Client {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		key:      key,
		secret:   secret,
		fillWait: fillWait,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

type envelope struct {
	Error  int             `json:"error"`
	Result json.RawMessage `json:"result"`
}

type placeBidRequest struct {
	Sym string      `json:"sym"`
	Amt json.Number `json:"amt"`
	Rat int         `json:"rat"`
	Typ string      `json:"typ"`
}

type placeBidResult struct {
	ID string `json:"id"`
}

type orderInfo struct {
	Filled  decimal.Decimal `json:"filled"`
	Total   decimal.Decimal `json:"total"`
	TS      int64           `json:"ts"`
	History []struct {
		Amount decimal.Decimal `json:"amount"`
		Rate   decimal.Decimal `json:"rate"`
	} `json:"history"`
}

// Buy spends amount of the quote currency at market. symbol is the trade
// config key, e.g. BTC_THB.
func (c *Client) Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*models.Fill, error) {
	if c.key == "" || c.secret == "" {
		return nil, errors.New("bitkub credentials not configured")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	sym := strings.ToLower(symbol)

	var placed placeBidResult
	if err := c.signed(ctx, apphttp.MethodPost, pathPlaceBid, "", placeBidRequest{Sym: sym, Amt: json.Number(amount.String()), Rat: 0, Typ: "market"}, &placed); err != nil {
		return nil, fmt.Errorf("place bid: %w", err)
	}
	if placed.ID == "" {
		return nil, errors.New("place bid: empty order id")
	}
	c.logger.Info("bitkub order placed",
		applogger.String("symbol", symbol), applogger.String("order_id", placed.ID), applogger.Stringer("amount", amount))

	// From here on the order exists; a failed lookup still yields a fill.
	fill := &models.Fill{OrderID: placed.ID, Symbol: symbol, Spent: amount, ExecutedAt: c.now().UTC()}
	if err := c.sleep(ctx, c.fillWait); err != nil {
		return fill, nil
	}

	query := url.Values{"sym": {sym}, "id": {placed.ID}, "sd": {"buy"}}.Encode()
	var info orderInfo
	if err := c.signed(ctx, apphttp.MethodGet, pathOrderInfo, query, nil, &info); err != nil {
		c.logger.Warn("bitkub order info unavailable",
			applogger.String("order_id", placed.ID), applogger.Error(err))
		return fill, nil
	}
	applyOrderInfo(fill, info)
	return fill, nil
}

func applyOrderInfo(fill *models.Fill, info orderInfo) {
	spent := info.Filled
	if spent.IsZero() {
		spent = info.Total
	}
	if !spent.IsZero() {
		fill.Spent = spent
	}
	received := decimal.Zero
	for _, h := range info.History {
		if h.Rate.IsPositive() {
			received = received.Add(h.Amount.Div(h.Rate))
		}
	}
	fill.Received = received
	if received.IsPositive() {
		fill.Rate = fill.Spent.Div(received)
	}
	if info.TS > 0 {
		if info.TS > 1e12 {
			fill.ExecutedAt = time.UnixMilli(info.TS).UTC()
		} else {
			fill.ExecutedAt = time.Unix(info.TS, 0).UTC()
		}
	}
}

func (c *Client) signed(ctx context.Context, method, path, query string, body interface{}, dest interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}
	target := path
	if query != "" {
		target += "?" + query
	}
	ts := strconv.FormatInt(c.serverTime(ctx), 10)

	var env envelope
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: method,
		URL:    apphttp.JoinURL(c.baseURL, target),
		Headers: map[string]string{
			"Accept":          "application/json",
			"Content-Type":    "application/json",
			"X-BTK-APIKEY":    c.key,
			"X-BTK-TIMESTAMP": ts,
			"X-BTK-SIGN":      Sign(c.secret, ts, method, target, payload),
		},
		Body: payload,
	}, &env)
	if err != nil {
		var se *apphttp.StatusError
		if errors.As(err, &se) && json.Unmarshal(se.Body, &env) == nil && env.Error != 0 {
			return &APIError{Code: env.Error}
		}
		return err
	}
	if env.Error != 0 {
		return &APIError{Code: env.Error}
	}
	if dest != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, dest); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// serverTime returns exchange milliseconds, falling back to the local clock.
func (c *Client) serverTime(ctx context.Context) int64 {
	var raw json.Number
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    apphttp.JoinURL(c.baseURL, pathServerTime),
	}, &raw)
	if err == nil {
		if ms, err := raw.Int64(); err == nil && ms > 0 {
			return ms
		}
	}
	return c.now().UnixMilli()
}

// Sign computes the X-BTK-SIGN header value.
func Sign(secret, ts, method, target string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(target))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// APIError is a non-zero Bitkub error code.
type APIError struct {
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitkub api error %d", e.Code)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
