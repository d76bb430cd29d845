package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the device trust module.
type Metrics struct {
	// Verification outcomes by provider and validity
	Verifications *prometheus.CounterVec

	// Verification latency by provider
	VerifyLatency *prometheus.HistogramVec

	// Binding validation outcomes by status
	BindingStatus *prometheus.CounterVec

	// Fused root signals by type
	RootSignals *prometheus.CounterVec

	// Root-signal adapter failures by adapter
	AdapterFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all device trust metrics registered.
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_integrity_verifications_total",
			Help: "Total attestation verifications by provider and validity",
		}, []string{"provider", "valid"}),

		VerifyLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkpoint_integrity_verify_duration_seconds",
			Help:    "Duration of attestation verification by provider",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"provider"}),

		BindingStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_integrity_binding_validations_total",
			Help: "Total device binding validations by status",
		}, []string{"status"}),

		RootSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_integrity_root_signals_total",
			Help: "Total fused root signals by type",
		}, []string{"type"}),

		AdapterFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_integrity_adapter_failures_total",
			Help: "Total root-signal adapter failures by adapter",
		}, []string{"adapter"}),
	}
}

// ObserveVerification records one completed verification.
func (m *Metrics) ObserveVerification(provider string, valid bool, d time.Duration) {
	if m != nil {
		validLabel := "false"
		if valid {
			validLabel = "true"
		}
		m.Verifications.WithLabelValues(provider, validLabel).Inc()
		m.VerifyLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementBindingStatus records a binding validation outcome.
func (m *Metrics) IncrementBindingStatus(status string) {
	if m != nil {
		m.BindingStatus.WithLabelValues(status).Inc()
	}
}

// IncrementRootSignal records one fused root signal.
func (m *Metrics) IncrementRootSignal(signalType string) {
	if m != nil {
		m.RootSignals.WithLabelValues(signalType).Inc()
	}
}

// IncrementAdapterFailure records a root-signal adapter failure.
func (m *Metrics) IncrementAdapterFailure(adapter string) {
	if m != nil {
		m.AdapterFailures.WithLabelValues(adapter).Inc()
	}
}
