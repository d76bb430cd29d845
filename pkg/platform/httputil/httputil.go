// Package httputil provides JSON response helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "checkpoint/pkg/domain-errors"
)

// codeStatus maps domain error codes to HTTP status codes.
var codeStatus = map[dErrors.Code]int{
	dErrors.CodeInvalidInput:  http.StatusBadRequest,
	dErrors.CodeBadRequest:    http.StatusBadRequest,
	dErrors.CodeUnauthorized:  http.StatusUnauthorized,
	dErrors.CodeForbidden:     http.StatusForbidden,
	dErrors.CodeNotFound:      http.StatusNotFound,
	dErrors.CodeConflict:      http.StatusConflict,
	dErrors.CodeRateLimited:   http.StatusTooManyRequests,
	dErrors.CodeUnavailable:   http.StatusServiceUnavailable,
	dErrors.CodeConfiguration: http.StatusInternalServerError,
	dErrors.CodeInternal:      http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError maps a domain error to an HTTP error response. Internal and
// configuration errors omit the description so store details never leak to
// callers; everything else surfaces the coded message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, status, body)
}

// Decode parses the request body into T, writing a bad-request response and
// returning ok=false on malformed input.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.DebugContext(r.Context(), "request body decode failed", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		var zero T
		return zero, false
	}
	return req, true
}
