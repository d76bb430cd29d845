package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance pipeline.
type Metrics struct {
	// Check-in outcomes by decision and reason code
	Checkins *prometheus.CounterVec

	// Full pipeline latency
	PipelineLatency prometheus.Histogram

	// Overall score distribution
	Scores prometheus.Histogram

	// Motion guard downgrades
	MotionDowngrades prometheus.Counter
}

// New creates a new Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		Checkins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_attendance_checkins_total",
			Help: "Total check-in attempts by decision and reason code",
		}, []string{"decision", "reason"}),

		PipelineLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_attendance_pipeline_duration_seconds",
			Help:    "Duration of the full check-in pipeline",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Scores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_attendance_overall_score",
			Help:    "Distribution of overall integrity scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),

		MotionDowngrades: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkpoint_attendance_motion_downgrades_total",
			Help: "Total verdicts downgraded to review by the motion guard",
		}),
	}
}

// ObserveCheckin records one completed check-in attempt.
func (m *Metrics) ObserveCheckin(decision, reason string, score float64, d time.Duration) {
	if m != nil {
		m.Checkins.WithLabelValues(decision, reason).Inc()
		m.PipelineLatency.Observe(d.Seconds())
		m.Scores.Observe(score)
	}
}

// IncrementMotionDowngrade records a motion guard downgrade.
func (m *Metrics) IncrementMotionDowngrade() {
	if m != nil {
		m.MotionDowngrades.Inc()
	}
}
