package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	// Factor check latencies by presence mode
	FactorLatency *prometheus.HistogramVec

	// Evaluation outcomes by decision
	EvaluationOutcome *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram

	// Policy cache hits and misses
	CacheLookups *prometheus.CounterVec
}

// New creates a new Metrics instance with all policy module metrics registered.
func New() *Metrics {
	return &Metrics{
		FactorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkpoint_policy_factor_duration_seconds",
			Help:    "Duration of factor checker invocations by presence mode",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"mode"}),

		EvaluationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_policy_evaluations_total",
			Help: "Total policy evaluation outcomes by decision",
		}, []string{"decision"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_policy_evaluate_duration_seconds",
			Help:    "Duration of full policy evaluation including factor fan-out",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_policy_cache_lookups_total",
			Help: "Policy cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

// ObserveFactorLatency records the duration of one factor checker call.
func (m *Metrics) ObserveFactorLatency(mode string, d time.Duration) {
	if m != nil {
		m.FactorLatency.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// IncrementOutcome records an evaluation outcome.
func (m *Metrics) IncrementOutcome(decision string) {
	if m != nil {
		m.EvaluationOutcome.WithLabelValues(decision).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a policy cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
