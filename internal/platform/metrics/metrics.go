package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus metrics. Module-specific
// metrics (lifecycle transitions, pool occupancy) live next to their
// modules; this covers the shared HTTP surface.
type Metrics struct {
	RequestsSubmitted prometheus.Counter
	DecisionsRecorded *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all shared Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "firegate_requests_submitted_total",
			Help: "Total number of firefighter access requests submitted",
		}),
		DecisionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firegate_decisions_recorded_total",
			Help: "Total number of approval/review decisions recorded",
		}, []string{"step", "outcome"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "firegate_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// IncSubmitted records an accepted request submission.
func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.RequestsSubmitted.Inc()
	}
}

// IncDecision records a recorded approval or review decision.
func (m *Metrics) IncDecision(step, outcome string) {
	if m != nil {
		m.DecisionsRecorded.WithLabelValues(step, outcome).Inc()
	}
}
