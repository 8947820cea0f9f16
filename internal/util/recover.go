package util

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WithRecover converts handler panics into a generic 500 JSON response.
// Nothing is retried; the client must resubmit.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panic",
					"panic", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", RequestIDFromRequest(r),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
