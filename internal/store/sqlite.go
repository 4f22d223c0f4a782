package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a Store implementation over mattn/go-sqlite3, the
// teacher's own direct dependency (examples/database/main.go). It is not
// used in production — Postgres is — but backs local development and the
// package's own tests, so the rest of the system can be exercised without
// a live Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn (":memory:" for tests, a file path otherwise)
// and creates the mapping table if it does not exist.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// The CGo sqlite3 driver only tolerates one writer at a time; a
	// dev/test store never needs connection pooling.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS mappings (
			id INTEGER PRIMARY KEY,
			original_url TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, m Mapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mappings (id, original_url, code, created_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.OriginalURL, m.Code, m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteUniqueConstraint(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("store: insert mapping: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, code string) (Mapping, error) {
	var m Mapping
	var createdAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, original_url, code, created_at FROM mappings WHERE code = ?`, code)
	if err := row.Scan(&m.ID, &m.OriginalURL, &m.Code, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mapping{}, ErrNotFound
		}
		return Mapping{}, fmt.Errorf("store: get mapping: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Mapping{}, fmt.Errorf("store: parse created_at: %w", err)
	}
	m.CreatedAt = parsed
	return m, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

// isSQLiteUniqueConstraint reports whether err is a UNIQUE constraint
// violation, mirroring how PostgresStore classifies SQLSTATE 23505. The
// mattn/go-sqlite3 driver surfaces this as a *sqlite3.Error whose message
// contains "UNIQUE constraint failed"; matching on that string is the
// idiomatic approach for this driver, which does not export a typed
// constant for it.
func isSQLiteUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
