// Package httpapi is the front-end HTTP surface: POST /shorten, GET
// /{code}, GET /stats/{code}, GET /health (§6). Wiring the framework,
// CORS, and request logging middleware here is deliberate: the spec
// treats these as external-collaborator concerns, but a runnable Go
// service still has to ship them (§10).
package httpapi

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sxyafiq/urlshortener/internal/cache"
	"github.com/sxyafiq/urlshortener/internal/codec"
	"github.com/sxyafiq/urlshortener/internal/events"
	"github.com/sxyafiq/urlshortener/internal/store"
)

// ErrInvalidURL is returned by shorten when the submitted URL does not
// parse as an absolute HTTP(S) URL with a host.
type ErrInvalidURL struct{ Reason string }

func (e *ErrInvalidURL) Error() string { return "httpapi: invalid url: " + e.Reason }

// CacheClient is the subset of *cache.Cache the HTTP layer needs,
// declared here so tests can substitute an in-memory fake instead of a
// live Redis connection.
type CacheClient interface {
	Get(ctx context.Context, code string) (string, error)
	Set(ctx context.Context, code, url string) error
	Ping(ctx context.Context) error
}

// IDGenerator is the subset of *idgen.Generator the HTTP layer needs.
type IDGenerator interface {
	GenerateID() (int64, error)
}

// PublisherClient is the subset of *events.Publisher the HTTP layer needs.
type PublisherClient interface {
	Publish(ctx context.Context, event events.ClickEvent)
}

// AnalyticsClient is the subset of *columnar.Store the HTTP layer needs
// for GET /stats/{code}.
type AnalyticsClient interface {
	CountForCode(ctx context.Context, code string) (uint64, error)
}

// API holds every dependency the HTTP handlers need. Nothing here is a
// package-level global; everything is constructed once in cmd/server and
// threaded through via this struct, per §9's singleton-lifecycle note.
type API struct {
	Store     store.Store
	Cache     CacheClient
	Generator IDGenerator
	Publisher PublisherClient
	Analytics AnalyticsClient // may be nil; /stats degrades to 404 if so
	BaseURL   string
	Logger    *zap.SugaredLogger
}

// shortenResult is the response body for POST /shorten (§6).
type shortenResult struct {
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
}

// shorten implements C5: validate, allocate an ID, encode, persist,
// prime the cache.
func (a *API) shorten(ctx context.Context, rawURL string) (shortenResult, error) {
	if err := validateURL(rawURL); err != nil {
		return shortenResult{}, err
	}

	id, err := a.Generator.GenerateID()
	if err != nil {
		return shortenResult{}, err
	}

	code, err := codec.Encode(id)
	if err != nil {
		return shortenResult{}, err
	}

	m := store.Mapping{
		ID:          id,
		OriginalURL: rawURL,
		Code:        code,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.Store.Insert(ctx, m); err != nil {
		return shortenResult{}, err
	}

	// Cache priming is best-effort: the DB insert already committed, so a
	// subsequent redirect still resolves via a DB read even if this fails.
	if err := a.Cache.Set(ctx, code, rawURL); err != nil {
		a.Logger.Warnw("cache prime failed after insert", "code", code, "error", err)
	}

	return shortenResult{
		ShortCode:   code,
		ShortURL:    a.BaseURL + "/" + code,
		OriginalURL: rawURL,
	}, nil
}

// resolveSource reports which tier answered a redirect lookup, matching
// C4's resolve(code) -> (url, source) contract.
type resolveSource int

const (
	sourceCache resolveSource = iota
	sourceDB
)

// resolve implements C4: cache-first lookup, DB fallback with cache
// backfill on miss. The caller is responsible for scheduling the
// click-event publish as a detached goroutine after this returns.
func (a *API) resolve(ctx context.Context, code string) (string, resolveSource, error) {
	if url, err := a.Cache.Get(ctx, code); err == nil {
		return url, sourceCache, nil
	} else if err != cache.ErrMiss {
		a.Logger.Warnw("cache read failed, falling back to db", "code", code, "error", err)
	}

	m, err := a.Store.Get(ctx, code)
	if err != nil {
		return "", sourceDB, err
	}

	if err := a.Cache.Set(ctx, code, m.OriginalURL); err != nil {
		a.Logger.Warnw("cache backfill failed", "code", code, "error", err)
	}

	return m.OriginalURL, sourceDB, nil
}

// publishClickEvent schedules (does not await) a click-event publish, per
// §4.4's fan-out requirement and §9's note that the detached goroutine
// must not retain request-scoped resources beyond the payload it needs.
func (a *API) publishClickEvent(code, originalURL, userAgent, ip, referrer string) {
	event := events.ClickEvent{
		Code:        code,
		Timestamp:   time.Now().UTC(),
		UserAgent:   userAgent,
		IPAddress:   ip,
		Referrer:    referrer,
		OriginalURL: originalURL,
		RequestID:   uuid.NewString(),
	}
	go a.Publisher.Publish(context.Background(), event)
}

func validateURL(raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return &ErrInvalidURL{Reason: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ErrInvalidURL{Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return &ErrInvalidURL{Reason: "url must have a host"}
	}
	return nil
}
