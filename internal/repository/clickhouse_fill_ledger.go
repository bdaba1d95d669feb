package repository

import (
	"context"
	"database/sql"
	"fmt"

	"DCAClock/internal/domain/models"
	pkgch "DCAClock/pkg/clickhouse"
)

// CHFillLedger appends executed buys to ClickHouse.
type CHFillLedger struct {
	db    *sql.DB
	table string
}

func NewCHFillLedger(ch *pkgch.Client, table string) *CHFillLedger {
	return &CHFillLedger{db: ch.DB(), table: ch.Database() + "." + table}
}

func (l *CHFillLedger) Append(ctx context.Context, f models.Fill) error {
	q := fmt.Sprintf("INSERT INTO %s (order_id, symbol, spent, received, rate, executed_at, paper) VALUES (?, ?, ?, ?, ?, ?, ?)", l.table)
	var paper uint8
	if f.Paper {
		paper = 1
	}
	if _, err := l.db.ExecContext(ctx, q,
		f.OrderID,
		f.Symbol,
		f.Spent,
		f.Received,
		f.Rate,
		f.ExecutedAt.UTC(),
		paper,
	); err != nil {
		return fmt.Errorf("append fill %s: %w", f.OrderID, err)
	}
	return nil
}

// NopLedger drops fills when no ledger backend is configured.
type NopLedger struct{}

func (NopLedger) Append(context.Context, models.Fill) error { return nil }
