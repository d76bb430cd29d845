// Package admin gates policy administration endpoints behind a shared
// token. Operator tooling, not end-user auth.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"checkpoint/pkg/requestcontext"
)

// RequireAdminToken rejects requests whose X-Admin-Token header does not
// match. Comparison is constant-time.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				if logger != nil {
					logger.WarnContext(r.Context(), "admin token mismatch",
						"request_id", requestcontext.RequestID(r.Context()),
					)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
