// Package handler exposes the attendance pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"checkpoint/internal/attendance"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/platform/httputil"
	"checkpoint/pkg/platform/sentinel"
	"checkpoint/pkg/requestcontext"
)

// Service defines the pipeline operations the handler needs.
type Service interface {
	CheckIn(ctx context.Context, req *attendance.CheckInRequest) (*attendance.IntegrityVerdict, error)
	Get(ctx context.Context, attendanceID id.AttendanceID) (*attendance.IntegrityVerdict, error)
}

// Handler wires attendance endpoints to the pipeline service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an attendance handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts attendance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/attendance/check-in", h.HandleCheckIn)
	r.Get("/attendance/{attendanceID}", h.HandleGet)
}

// HandleCheckIn handles POST /attendance/check-in requests.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	wire, ok := httputil.Decode[CheckInRequest](w, r, h.logger)
	if !ok {
		return
	}

	req, err := wire.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.DeviceMetadata = deviceMetadata(ctx)

	verdict, err := h.service.CheckIn(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "check-in failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "check-in handled",
		"request_id", requestID,
		"attendance_id", verdict.ID,
		"decision", verdict.Decision,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusCreated
	if verdict.Decision == id.DecisionRejected {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, FromVerdict(verdict))
}

// HandleGet handles GET /attendance/{attendanceID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attendanceID, err := id.ParseAttendanceID(chi.URLParam(r, "attendanceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verdict, err := h.service.Get(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "attendance record not found")
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerdict(verdict))
}

// deviceMetadata distills the request User-Agent into verdict metadata.
func deviceMetadata(ctx context.Context) map[string]string {
	raw := requestcontext.UserAgent(ctx)
	if raw == "" {
		return nil
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()
	md := map[string]string{
		"platform": ua.Platform(),
		"os":       ua.OS(),
		"client":   name + "/" + version,
	}
	if ua.Mobile() {
		md["mobile"] = "true"
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		md["client_ip"] = ip
	}
	return md
}
