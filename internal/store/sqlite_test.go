package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := Mapping{
		ID:          4_222_976,
		OriginalURL: "https://example.com/a",
		Code:        "hIAw",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.Insert(ctx, m))

	got, err := s.Get(ctx, "hIAw")
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, m.OriginalURL, got.OriginalURL)
	require.Equal(t, m.Code, got.Code)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicateCodeIsRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := Mapping{ID: 1, OriginalURL: "https://example.com/a", Code: "dup", CreatedAt: time.Now().UTC()}
	second := Mapping{ID: 2, OriginalURL: "https://example.com/b", Code: "dup", CreatedAt: time.Now().UTC()}

	require.NoError(t, s.Insert(ctx, first))
	err := s.Insert(ctx, second)
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
