package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sxyafiq/urlshortener/internal/cache"
	"github.com/sxyafiq/urlshortener/internal/events"
	"github.com/sxyafiq/urlshortener/internal/store"
)

// fakeCache is an in-memory stand-in for *cache.Cache so the redirect
// properties (C1/C2/C3) can be tested without a live Redis instance.
type fakeCache struct {
	data     map[string]string
	getCalls int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Get(ctx context.Context, code string) (string, error) {
	f.getCalls++
	if v, ok := f.data[code]; ok {
		return v, nil
	}
	return "", cache.ErrMiss
}

func (f *fakeCache) Set(ctx context.Context, code, url string) error {
	f.data[code] = url
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

// fakeStore is an in-memory stand-in for store.Store that also counts
// reads, so C1 ("zero DB reads on a cache hit") is directly assertable.
type fakeStore struct {
	rows     map[string]store.Mapping
	getCalls int
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]store.Mapping{}} }

func (f *fakeStore) Insert(ctx context.Context, m store.Mapping) error {
	f.rows[m.Code] = m
	return nil
}

func (f *fakeStore) Get(ctx context.Context, code string) (store.Mapping, error) {
	f.getCalls++
	if m, ok := f.rows[code]; ok {
		return m, nil
	}
	return store.Mapping{}, store.ErrNotFound
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close()                         {}

// fakeGenerator returns a fixed sequence of IDs, avoiding any dependency
// on wall-clock timing in handler tests.
type fakeGenerator struct{ next int64 }

func (g *fakeGenerator) GenerateID() (int64, error) {
	g.next++
	return g.next, nil
}

// throwingPublisher simulates a publisher that fails internally on every
// call (matching the real Publisher's "never let the failure escape"
// contract, §4.6) while still letting the test observe that it was
// invoked, to prove the failure never reaches the HTTP response (E1).
type throwingPublisher struct{ called chan struct{} }

func newThrowingPublisher() *throwingPublisher {
	return &throwingPublisher{called: make(chan struct{}, 1)}
}

func (p *throwingPublisher) Publish(ctx context.Context, event events.ClickEvent) {
	defer func() {
		recover() // the real Publisher never lets an internal failure escape
		p.called <- struct{}{}
	}()
	panic("simulated publisher failure")
}

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return logger.Sugar()
}

// TestRedirectCacheHit covers C1: a cache hit returns 301 with zero DB
// reads.
func TestRedirectCacheHit(t *testing.T) {
	fc := newFakeCache()
	fc.data["abc"] = "https://example.com/b"
	fs := newFakeStore()

	api := &API{
		Store:     fs,
		Cache:     fc,
		Generator: &fakeGenerator{},
		Publisher: newThrowingPublisher(),
		BaseURL:   "http://localhost:8000",
		Logger:    testLogger(t),
	}

	router := NewRouter(api, []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://example.com/b", rec.Header().Get("Location"))
	require.Zero(t, fs.getCalls, "cache hit must not touch the store")
}

// TestRedirectCacheMissBackfills covers C2: a cache miss with a DB row
// present returns 301 and leaves the cache primed afterward.
func TestRedirectCacheMissBackfills(t *testing.T) {
	fc := newFakeCache()
	fs := newFakeStore()
	fs.rows["xyz"] = store.Mapping{ID: 1, Code: "xyz", OriginalURL: "https://example.com/c"}

	api := &API{
		Store:     fs,
		Cache:     fc,
		Generator: &fakeGenerator{},
		Publisher: newThrowingPublisher(),
		BaseURL:   "http://localhost:8000",
		Logger:    testLogger(t),
	}

	router := NewRouter(api, []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/xyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://example.com/c", rec.Header().Get("Location"))
	require.Equal(t, "https://example.com/c", fc.data["xyz"], "cache must be backfilled after a miss")
}

// TestRedirectNotFound covers C3: empty cache and DB yields 404.
func TestRedirectNotFound(t *testing.T) {
	api := &API{
		Store:     newFakeStore(),
		Cache:     newFakeCache(),
		Generator: &fakeGenerator{},
		Publisher: newThrowingPublisher(),
		BaseURL:   "http://localhost:8000",
		Logger:    testLogger(t),
	}

	router := NewRouter(api, []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not found")
}

// TestRedirectFanOutIsolation covers E1: a publisher that panics never
// changes the HTTP status or Location of a redirect, because the publish
// is scheduled on a detached goroutine the response does not wait on.
func TestRedirectFanOutIsolation(t *testing.T) {
	fc := newFakeCache()
	fc.data["abc"] = "https://example.com/b"
	pub := newThrowingPublisher()

	api := &API{
		Store:     newFakeStore(),
		Cache:     fc,
		Generator: &fakeGenerator{},
		Publisher: pub,
		BaseURL:   "http://localhost:8000",
		Logger:    testLogger(t),
	}

	router := NewRouter(api, []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://example.com/b", rec.Header().Get("Location"))

	// The publisher was invoked (and panicked) on its own goroutine; the
	// response above already completed successfully regardless.
	<-pub.called
}

func TestShortenValidatesURL(t *testing.T) {
	api := &API{
		Store:     newFakeStore(),
		Cache:     newFakeCache(),
		Generator: &fakeGenerator{},
		Publisher: newThrowingPublisher(),
		BaseURL:   "http://localhost:8000",
		Logger:    testLogger(t),
	}

	router := NewRouter(api, []string{"*"})
	req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(`{"original_url":"not-a-url"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestShortenSucceeds(t *testing.T) {
	fs := newFakeStore()
	api := &API{
		Store:     fs,
		Cache:     newFakeCache(),
		Generator: &fakeGenerator{},
		Publisher: newThrowingPublisher(),
		BaseURL:   "http://localhost:8000",
		Logger:    testLogger(t),
	}

	router := NewRouter(api, []string{"*"})
	req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(`{"original_url":"https://example.com/a"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://example.com/a")
	require.Len(t, fs.rows, 1)
}
