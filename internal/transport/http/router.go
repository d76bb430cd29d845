// Package httptransport composes the public HTTP surface: middleware chain,
// health and metrics endpoints, and the versioned API routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attendancehandler "checkpoint/internal/attendance/handler"
	factorshandler "checkpoint/internal/factors/handler"
	policyhandler "checkpoint/internal/policy/handler"
	"checkpoint/pkg/platform/httputil"
	"checkpoint/pkg/platform/middleware/admin"
	"checkpoint/pkg/platform/middleware/metadata"
	"checkpoint/pkg/platform/middleware/recovery"
	"checkpoint/pkg/platform/middleware/request"
	"checkpoint/pkg/platform/middleware/requesttime"
)

// HealthCheck reports the readiness of one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Attendance *attendancehandler.Handler
	Policy     *policyhandler.Handler
	QRTokens   *factorshandler.Handler
	Logger     *slog.Logger

	// AdminToken gates the administration surface (policy documents and the
	// QR display token issuer); empty leaves it open.
	AdminToken string

	HealthChecks []HealthCheck
}

// NewRouter builds the HTTP handler tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(recovery.Middleware(deps.Logger))

	r.Get("/healthz", healthHandler(deps.Logger, deps.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		deps.Attendance.Register(r)

		r.Group(func(r chi.Router) {
			if deps.AdminToken != "" {
				r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
			}
			deps.Policy.Register(r)
			if deps.QRTokens != nil {
				deps.QRTokens.Register(r)
			}
		})
	})

	return r
}

// healthHandler pings every backing dependency with a short deadline. Any
// failure makes the service not ready.
func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "health check failed",
						"dependency", hc.Name,
						"error", err,
					)
				}
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[hc.Name] = err.Error()
			}
		}

		httputil.WriteJSON(w, status, body)
	}
}
