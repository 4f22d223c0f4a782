// Package store defines the relational mapping-table contract and its two
// implementations: Postgres for production, SQLite for local development
// and tests, both behind the same interface so the rest of the system
// never imports a driver directly.
package store

import (
	"context"
	"errors"
	"time"
)

// Mapping is the authoritative record for one short code (§3, Mapping
// record). code is always Base62(id) at insert time (invariant M1); the
// pair (id, code) never changes afterward (invariant M2).
type Mapping struct {
	ID          int64
	OriginalURL string
	Code        string
	CreatedAt   time.Time
}

// ErrNotFound is returned by Get when no row matches the requested code.
var ErrNotFound = errors.New("store: mapping not found")

// ErrDuplicateCode is returned by Insert when the unique index on code
// rejects the row. Per the spec's design notes (§9), this is never
// silently retried with a fresh ID: a duplicate code means worker-ID
// uniqueness (W1) was already broken, and retrying would hide that.
var ErrDuplicateCode = errors.New("store: duplicate code, worker id uniqueness violated")

// Store is the relational persistence contract used by C4 (redirect
// resolver) and C5 (shortener intake). The relational store is the source
// of truth (invariant M3); every cache entry is a projection of a Store
// row.
type Store interface {
	// Insert durably writes a new mapping. It returns ErrDuplicateCode if
	// m.Code collides with an existing row.
	Insert(ctx context.Context, m Mapping) error

	// Get looks up the mapping for code. It returns ErrNotFound if absent.
	Get(ctx context.Context, code string) (Mapping, error)

	// Ping verifies connectivity, used by the /health handler.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close()
}
