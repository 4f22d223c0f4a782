// Package columnar appends click events into the append-only analytics
// store (C7's write side). ClickHouse is the concrete backend, matching
// the Python reference's aiochclient usage and the MergeTree DDL it issued
// (event-consumer/consumer.py).
package columnar

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/sxyafiq/urlshortener/internal/events"
)

// Config holds the ClickHouse connection parameters named in §6's env var
// table (CLICKHOUSE_HOST/PORT/DATABASE/USER/PASSWORD).
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Store appends rows to the click_events table.
type Store struct {
	conn clickhouse.Conn
}

// New opens a connection to ClickHouse. It does not create the table;
// call EnsureTable for that (the consumer does so once at startup).
func New(cfg Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("columnar: open clickhouse: %w", err)
	}
	return &Store{conn: conn}, nil
}

// EnsureTable idempotently creates the click_events table with the columns
// and engine the spec names (§4.7, §6) plus a request_id column carrying
// ClickEvent.RequestID: ordered by (code, timestamp) under a MergeTree
// engine, tolerating the duplicate rows that at-least-once delivery can
// produce.
func (s *Store) EnsureTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS click_events (
			code String,
			timestamp DateTime,
			user_agent String,
			ip_address String,
			referrer String,
			original_url String,
			request_id String
		) ENGINE = MergeTree()
		ORDER BY (code, timestamp)
	`)
}

// AppendEvent inserts one row. Duplicate rows under at-least-once
// redelivery are tolerated by design (§3, §8 I1); this method does not
// attempt deduplication.
func (s *Store) AppendEvent(ctx context.Context, event events.ClickEvent) error {
	return s.conn.Exec(ctx, `
		INSERT INTO click_events (code, timestamp, user_agent, ip_address, referrer, original_url, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.Code, event.Timestamp, event.UserAgent, event.IPAddress, event.Referrer, event.OriginalURL, event.RequestID)
}

// CountForCode returns the number of recorded click events for code,
// backing the GET /stats/{code} endpoint (§6). Aggregation beyond a raw
// count is explicitly out of core scope.
func (s *Store) CountForCode(ctx context.Context, code string) (uint64, error) {
	row := s.conn.QueryRow(ctx, `SELECT count() FROM click_events WHERE code = ?`, code)
	var count uint64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("columnar: count for code: %w", err)
	}
	return count, nil
}

// Ping verifies connectivity, used by the /health handler.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
