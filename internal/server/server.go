// Package server exposes the HTTP surface: wish submission and the
// public gallery listing.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"wishwall/internal/app"
	"wishwall/internal/photo"
	"wishwall/internal/ratelimit"
	"wishwall/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
	// BurstLimiter is an optional Redis-backed first-line limiter keyed by
	// client address. The store-window guard still applies behind it.
	BurstLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the wish wall.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	trusted        *util.TrustedProxies
	maxUploadBytes int64
	burstLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trusted:        cfg.TrustedProxies,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		burstLimiter:   cfg.BurstLimiter,
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithRecover(h)
	h = util.WithRequestLog("wishwall", h)
	h = util.WithRequestID(h)
	h = util.WithCORS(h)
	return util.WithSecurityHeaders(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/wish", s.handleWish)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWish(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListWishes()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	ip := util.ClientIP(r, s.trusted)
	if s.burstLimiter != nil && !s.burstLimiter.Allow(ip) {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "Too many requests. Try again in a minute.")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	sub := app.Submission{
		Name:      r.FormValue("name"),
		Wish:      r.FormValue("wish"),
		Avatar:    r.FormValue("avatar"),
		IP:        ip,
		UserAgent: r.UserAgent(),
		Meta:      clientMeta(r),
	}

	file, header, err := r.FormFile("photo")
	switch {
	case err == nil:
		defer file.Close()
		data, readErr := io.ReadAll(io.LimitReader(file, photo.MaxInputBytes+1))
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		if len(data) > 0 {
			sub.Photo = data
			sub.PhotoType = header.Header.Get("Content-Type")
		}
	case errors.Is(err, http.ErrMissingFile):
		// photo is optional
	default:
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	if _, err := s.app.CreateWish(r.Context(), sub); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// clientMeta captures a small set of audit headers persisted alongside
// the submission.
func clientMeta(r *http.Request) map[string]string {
	meta := map[string]string{}
	if v := r.Header.Get("Referer"); v != "" {
		meta["referer"] = v
	}
	if v := r.Header.Get("Accept-Language"); v != "" {
		meta["accept_language"] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	var reqErr *app.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", retryAfterSeconds(reqErr))
		}
		writeError(w, reqErr.Status, reqErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "Server error")
}

// retryAfterSeconds derives the Retry-After hint from the underlying limit
// error; minute-window rejections default to 60.
func retryAfterSeconds(err error) string {
	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) && limitErr.RetryAfter > 0 {
		return strconv.FormatInt(int64(limitErr.RetryAfter.Seconds()), 10)
	}
	return "60"
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}
