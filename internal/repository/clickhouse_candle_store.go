package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	pkgch "DCAClock/pkg/clickhouse"
	applogger "DCAClock/pkg/logger"
)

const candleInsertChunk = 2000

// CHCandleStore reads and writes 15-minute candles in ClickHouse. It is both
// the historical CandleFeed and the collector's CandleSink.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{db: ch.DB(), table: ch.Database() + "." + table, l: l}
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND bucket >= ? AND bucket < ?
        ORDER BY bucket ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse get_candles query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 96*32)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_candles ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// StoreCandles inserts in multi-row chunks. Rewrites of the same bucket are
// collapsed by the table engine.
func (s *CHCandleStore) StoreCandles(ctx context.Context, candles []models.Candle) error {
	for begin := 0; begin < len(candles); begin += candleInsertChunk {
		end := begin + candleInsertChunk
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-begin)
		args := make([]interface{}, 0, (end-begin)*7)
		for _, c := range candles[begin:end] {
			if c.Symbol == "" || c.Bucket.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Bucket.UTC(), c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (bucket, symbol, open, high, low, close, vol) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
