package clickhouse

import "fmt"

// CandleSchema creates the 15-minute candle table. ReplacingMergeTree keeps
// the latest write per (symbol, bucket) so re-collected bars overwrite.
func CandleSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    bucket      DateTime64(3, 'UTC'),
    symbol      LowCardinality(String),
    open        Float64,
    high        Float64,
    low         Float64,
    close       Float64,
    vol         Float64,
    inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(inserted_at)
PARTITION BY toYYYYMM(bucket)
ORDER BY (symbol, bucket)`, database, table),
	}
}

// FillSchema creates the executed-buy ledger table.
func FillSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    order_id    String,
    symbol      LowCardinality(String),
    spent       Decimal(38, 8),
    received    Decimal(38, 12),
    rate        Decimal(38, 8),
    executed_at DateTime64(3, 'UTC'),
    paper       UInt8
) ENGINE = MergeTree
ORDER BY (symbol, executed_at)`, database, table),
	}
}
