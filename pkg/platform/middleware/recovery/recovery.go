// Package recovery provides panic recovery middleware so a handler bug
// surfaces as a 500 instead of tearing down the connection.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"checkpoint/pkg/requestcontext"
)

// Middleware recovers handler panics, logs them with the stack, and returns
// an internal error response.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logger != nil {
						logger.ErrorContext(r.Context(), "handler panicked",
							"request_id", requestcontext.RequestID(r.Context()),
							"path", r.URL.Path,
							"panic", rec,
							"stack", string(debug.Stack()),
						)
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal_error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
