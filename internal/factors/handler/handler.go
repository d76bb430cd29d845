// Package handler exposes the rotating QR token issuer over HTTP. Office
// displays poll it and render a fresh code every rotation interval.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"checkpoint/internal/factors"
	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/httputil"
	"checkpoint/pkg/requestcontext"
)

// Handler mints office display tokens with the same secret the QR factor
// checker verifies against.
type Handler struct {
	secret []byte
	issuer string
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs a QR token handler.
func New(secret []byte, issuer string, ttl time.Duration, logger *slog.Logger) *Handler {
	return &Handler{secret: secret, issuer: issuer, ttl: ttl, logger: logger}
}

// Register mounts the token endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/offices/{officeID}/qr-token", h.HandleIssue)
}

// TokenResponse is the wire shape of an issued display token.
type TokenResponse struct {
	Token     string    `json:"token"`
	OfficeID  string    `json:"office_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleIssue handles GET /offices/{officeID}/qr-token requests.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	officeID, err := id.ParseOfficeID(chi.URLParam(r, "officeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	now := requestcontext.Now(ctx)
	token, err := factors.IssueQRToken(h.secret, h.issuer, officeID, h.ttl, now)
	if err != nil {
		h.logger.ErrorContext(ctx, "qr token issue failed",
			"request_id", requestcontext.RequestID(ctx),
			"office_id", officeID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		OfficeID:  officeID.String(),
		ExpiresAt: now.Add(h.ttl),
	})
}
