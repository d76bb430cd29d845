// Package request provides request correlation ID middleware. Every request
// gets an ID, either propagated from the X-Request-ID header or freshly
// generated, and carries it in the context and the response.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"checkpoint/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware assigns the request correlation ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerName)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerName, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
