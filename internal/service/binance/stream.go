package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"DCAClock/internal/domain/models"
	applogger "DCAClock/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements CandleStream over the kline websocket. Only closed bars
// are emitted.
type Stream struct {
	websocketURL   string
	pairs          map[string]string // BTCUSDT -> BTC/USDT
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewStream(websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) *Stream {
	if logger == nil {
		logger = applogger.Nop()
	}
	pairs := make(map[string]string, len(symbols))
	for _, s := range symbols {
		pairs[MarketSymbol(s)] = s
	}
	return &Stream{
		websocketURL:   websocketURL,
		pairs:          pairs,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
	}
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Connect dials and subscribes to every configured symbol.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	params := make([]string, 0, len(s.pairs))
	for market := range s.pairs {
		params = append(params, strings.ToLower(market)+"@kline_"+interval)
	}
	if err := conn.WriteJSON(subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: time.Now().UnixNano()}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("binance subscribe: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("binance stream connected", applogger.Strings("streams", params))
	return nil
}

type klineEvent struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Kline  struct {
		Start  int64  `json:"t"`
		Open   string `json:"o"`
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Volume string `json:"v"`
		Closed bool   `json:"x"`
	} `json:"k"`
}

func (e *klineEvent) candle(pair string) (models.Candle, error) {
	var vals [5]float64
	for i, raw := range []string{e.Kline.Open, e.Kline.High, e.Kline.Low, e.Kline.Close, e.Kline.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Candle{}, err
		}
		vals[i] = v
	}
	return models.Candle{
		Bucket: time.UnixMilli(e.Kline.Start).UTC(),
		Symbol: pair,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// Read streams closed candles until ctx ends or the connection fails. Both
// channels are closed when reading stops.
func (s *Stream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 256)
	errc := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	go s.keepAlive(readCtx, conn)

	go func() {
		defer cancel()
		defer close(candles)
		defer close(errc)
		if conn == nil {
			errc <- errors.New("binance stream not connected")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errc <- fmt.Errorf("binance read: %w", err)
				}
				return
			}
			var ev klineEvent
			if err := json.Unmarshal(b, &ev); err != nil || ev.Event != "kline" || !ev.Kline.Closed {
				continue
			}
			pair, ok := s.pairs[ev.Symbol]
			if !ok {
				continue
			}
			c, err := ev.candle(pair)
			if err != nil {
				s.logger.Warn("binance kline parse failed", applogger.String("symbol", ev.Symbol), applogger.Error(err))
				continue
			}
			select {
			case candles <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Unblock ReadMessage when the caller goes away.
	go func() {
		<-readCtx.Done()
		if ctx.Err() != nil && conn != nil {
			_ = conn.Close()
		}
	}()
	return candles, errc
}

func (s *Stream) keepAlive(ctx context.Context, conn *websocket.Conn) {
	if conn == nil || s.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Reconnect closes the current connection, waits and dials again.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	return s.Connect(ctx)
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
