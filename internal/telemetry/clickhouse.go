package telemetry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ki7mt-nlmetric/internal/common"
	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// TelemetryTable is the default source table. Expected schema:
//
//	CREATE TABLE nlmetric.telemetry (
//	    body  LowCardinality(String),
//	    field LowCardinality(String),
//	    time  DateTime64(3, 'UTC'),
//	    value Nullable(Float64)
//	) ENGINE = MergeTree ORDER BY (body, field, time)
const TelemetryTable = "telemetry"

// querier is the part of driver.Conn the source needs.
type querier interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// ClickHouseSource reads raw samples from a ClickHouse table.
type ClickHouseSource struct {
	conn     querier
	tableFQN string
}

// NewClickHouseSource wraps an open connection.
func NewClickHouseSource(conn driver.Conn, database string) *ClickHouseSource {
	return newClickHouseSource(conn, database)
}

func newClickHouseSource(conn querier, database string) *ClickHouseSource {
	return &ClickHouseSource{
		conn:     conn,
		tableFQN: fmt.Sprintf("%s.%s", database, TelemetryTable),
	}
}

// OpenClickHouse opens a clickhouse-go connection from cfg and pings it.
func OpenClickHouse(ctx context.Context, cfg *common.Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr()},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 120,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:     10 * time.Second,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return conn, nil
}

// Fetch implements nlmetric.Telemetry. NULL values become NaN.
func (s *ClickHouseSource) Fetch(ctx context.Context, iv nlmetric.Interval, body nlmetric.Body, field nlmetric.Field) ([]nlmetric.Sample, error) {
	query := fmt.Sprintf(
		"SELECT time, value FROM %s WHERE body = ? AND field = ? AND time >= ? AND time < ? ORDER BY time",
		s.tableFQN)

	rows, err := s.conn.Query(ctx, query, string(body), string(field), iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", body, field, err)
	}
	defer rows.Close()

	var out []nlmetric.Sample
	for rows.Next() {
		var (
			ts    time.Time
			value *float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("scan %s %s: %w", body, field, err)
		}
		v := math.NaN()
		if value != nil {
			v = *value
		}
		out = append(out, nlmetric.Sample{Time: ts.UTC(), Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s %s: %w", body, field, err)
	}
	return out, nil
}
