package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attendancehandler "checkpoint/internal/attendance/handler"
	"checkpoint/internal/policy"
	policyhandler "checkpoint/internal/policy/handler"
)

func testDeps(adminToken string, checks ...HealthCheck) Deps {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Deps{
		Attendance:   attendancehandler.New(nil, logger),
		Policy:       policyhandler.New(policy.NewInMemoryStore(), logger),
		Logger:       logger,
		AdminToken:   adminToken,
		HealthChecks: checks,
	}
}

func TestHealthz_OK(t *testing.T) {
	router := NewRouter(testDeps("",
		HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
	))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthz_DependencyDown(t *testing.T) {
	router := NewRouter(testDeps("",
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["redis"], "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(testDeps(""))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPolicyAdminToken(t *testing.T) {
	router := NewRouter(testDeps("sesame"))

	// Missing token.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/policies", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Matching token.
	req := httptest.NewRequest(http.MethodGet, "/v1/policies", nil)
	req.Header.Set("X-Admin-Token", "sesame")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAttendanceRoutesMounted(t *testing.T) {
	router := NewRouter(testDeps(""))

	// A mounted route with a bad ID is a 400, not a 404.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/attendance/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	router := NewRouter(testDeps(""))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
