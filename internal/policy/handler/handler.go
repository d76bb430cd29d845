// Package handler exposes policy administration over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/platform/httputil"
	"checkpoint/pkg/platform/sentinel"
	"checkpoint/pkg/requestcontext"
)

// Handler wires policy administration endpoints to the policy store.
type Handler struct {
	store  policy.Store
	logger *slog.Logger
}

// New constructs a policy handler.
func New(store policy.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies", h.HandlePublish)
	r.Post("/policies/{policyID}/publish", h.HandlePublishVersion)
	r.Get("/policies", h.HandleList)
	r.Get("/policies/resolve", h.HandleResolve)
	r.Get("/policies/{policyID}", h.HandleGet)
}

// HandlePublish handles POST /policies requests. A request carrying an
// existing policy ID publishes the next version of that identity; without
// one it creates a new policy.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wire, ok := httputil.Decode[PublishRequest](w, r, h.logger)
	if !ok {
		return
	}

	doc, err := wire.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stored, err := h.store.Publish(ctx, doc)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy publish failed",
			"request_id", requestcontext.RequestID(ctx),
			"policy_name", wire.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy published",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", stored.ID,
		"version", stored.Version,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromPolicy(stored))
}

// HandlePublishVersion handles POST /policies/{policyID}/publish requests,
// publishing the request body as the next version of an existing identity.
func (h *Handler) HandlePublishVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The identity must already have a published version; a bare POST
	// /policies is the creation path.
	if _, err := h.store.GetCurrent(ctx, policyID); err != nil {
		httputil.WriteError(w, notFound(err, "policy not found"))
		return
	}

	wire, ok := httputil.Decode[PublishRequest](w, r, h.logger)
	if !ok {
		return
	}

	doc, err := wire.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc.ID = policyID

	stored, err := h.store.Publish(ctx, doc)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy version publish failed",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", policyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy published",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", stored.ID,
		"version", stored.Version,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromPolicy(stored))
}

// HandleList handles GET /policies requests, returning every current
// policy version.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	current, err := h.store.ListCurrent(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]PolicyResponse, 0, len(current))
	for _, p := range current {
		out = append(out, FromPolicy(p))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": out})
}

// HandleGet handles GET /policies/{policyID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.store.GetCurrent(r.Context(), policyID)
	if err != nil {
		httputil.WriteError(w, notFound(err, "policy not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPolicy(p))
}

// HandleResolve handles GET /policies/resolve?office_id= requests, returning
// the policy that would govern a check-in at the given office.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var officeID *id.OfficeID
	if raw := r.URL.Query().Get("office_id"); raw != "" {
		parsed, err := id.ParseOfficeID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		officeID = &parsed
	}

	p, err := h.store.ResolveForOffice(r.Context(), officeID)
	if err != nil {
		httputil.WriteError(w, notFound(err, "no policy governs this office"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPolicy(p))
}

func notFound(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, msg)
	}
	return err
}
