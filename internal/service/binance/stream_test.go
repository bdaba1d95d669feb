package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamEmitsClosedKlines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeRequest
		if err := conn.ReadJSON(&sub); err != nil || sub.Method != "SUBSCRIBE" || len(sub.Params) != 1 || sub.Params[0] != "btcusdt@kline_15m" {
			t.Errorf("unexpected subscribe %+v %v", sub, err)
			return
		}
		frames := []string{
			`{"result":null,"id":1}`,
			`{"e":"kline","s":"BTCUSDT","k":{"t":1717200000000,"o":"1","h":"2","l":"0.5","c":"1.5","v":"10","x":false}}`,
			`{"e":"kline","s":"BTCUSDT","k":{"t":1717200000000,"o":"1","h":"2","l":"0.5","c":"1.6","v":"12","x":true}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTC/USDT"}, time.Millisecond, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	candles, _ := s.Read(ctx)
	select {
	case c, ok := <-candles:
		if !ok {
			t.Fatalf("channel closed before a candle arrived")
		}
		if c.Symbol != "BTC/USDT" || c.Close != 1.6 || c.Volume != 12 || c.Bucket.UnixMilli() != 1717200000000 {
			t.Fatalf("unexpected candle %+v", c)
		}
	case <-ctx.Done():
		t.Fatalf("timed out")
	}
}

func TestReadWithoutConnect(t *testing.T) {
	s := NewStream("ws://unused", nil, 0, 0, nil)
	_, errc := s.Read(context.Background())
	if err := <-errc; err == nil {
		t.Fatalf("expected error")
	}
}
