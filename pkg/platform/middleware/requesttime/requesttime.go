// Package requesttime pins a single "now" per HTTP request so audit events,
// rate-limit windows, and policy evaluation within one request agree on the
// time.
package requesttime

import (
	"net/http"
	"time"

	"checkpoint/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
