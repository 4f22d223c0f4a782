package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PostgresConfig mirrors the connection-pool tuning the Python reference
// exposed via DB_POOL_SIZE/DB_MAX_OVERFLOW/DB_POOL_TIMEOUT/DB_POOL_RECYCLE
// (app/core/setting.py), translated onto pgxpool's knobs.
type PostgresConfig struct {
	DSN         string
	PoolSize    int32         // maps to MaxConns
	MaxOverflow int32         // added to PoolSize for MaxConns, pgxpool has no separate overflow concept
	PoolTimeout time.Duration // maps to the pool's connect timeout
	PoolRecycle time.Duration // maps to MaxConnLifetime
}

// PostgresStore is the production Store backed by jackc/pgx's connection
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore parses cfg.DSN, applies the pool tuning, and connects.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = cfg.PoolSize + cfg.MaxOverflow
	}
	if cfg.PoolRecycle > 0 {
		poolCfg.MaxConnLifetime = cfg.PoolRecycle
	}
	if cfg.PoolTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.PoolTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the mapping table if it does not already exist. The
// spec treats migrations as externally managed, but a dev/test entry point
// still needs somewhere to create the table idempotently.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mappings (
			id BIGINT PRIMARY KEY,
			original_url TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, m Mapping) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mappings (id, original_url, code, created_at) VALUES ($1, $2, $3, $4)`,
		m.ID, m.OriginalURL, m.Code, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateCode
		}
		return fmt.Errorf("store: insert mapping: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, code string) (Mapping, error) {
	var m Mapping
	row := s.pool.QueryRow(ctx,
		`SELECT id, original_url, code, created_at FROM mappings WHERE code = $1`, code)
	if err := row.Scan(&m.ID, &m.OriginalURL, &m.Code, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, ErrNotFound
		}
		return Mapping{}, fmt.Errorf("store: get mapping: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
