package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	gocors "github.com/go-chi/cors"

	"github.com/sxyafiq/urlshortener/internal/store"
)

// NewRouter assembles the chi router for the front-end HTTP surface
// (§6): POST /shorten, GET /{code}, GET /stats/{code}, GET /health.
func NewRouter(api *API, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLoggingMiddleware(api.Logger))
	r.Use(gocors.Handler(gocors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/shorten", api.handleShorten)
	r.Get("/health", api.handleHealth)
	r.Get("/stats/{code}", api.handleStats)
	r.Get("/{code}", api.handleRedirect)

	return r
}

type shortenRequest struct {
	OriginalURL string `json:"original_url"`
}

func (a *API) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	result, err := a.shorten(r.Context(), req.OriginalURL)
	if err != nil {
		if _, ok := err.(*ErrInvalidURL); ok {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		a.Logger.Errorw("shorten failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	originalURL, _, err := a.resolve(r.Context(), code)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "Short URL not found")
			return
		}
		a.Logger.Errorw("redirect lookup failed", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.publishClickEvent(code, originalURL, r.UserAgent(), clientIP(r), r.Referer())

	http.Redirect(w, r, originalURL, http.StatusMovedPermanently)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if a.Analytics == nil {
		writeError(w, http.StatusNotFound, "no events exist for this code")
		return
	}

	count, err := a.Analytics.CountForCode(r.Context(), code)
	if err != nil {
		a.Logger.Errorw("stats query failed", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count == 0 {
		writeError(w, http.StatusNotFound, "no events exist for this code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": code, "click_count": count})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	if err := a.Store.Ping(ctx); err != nil {
		status = "degraded"
	}
	if err := a.Cache.Ping(ctx); err != nil {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status, "service": "url-shortener"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
