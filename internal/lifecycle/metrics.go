package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks lifecycle transitions and connector health.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	ConnectorFailures *prometheus.CounterVec
	AwaitingCapacity  prometheus.Gauge
}

// NewMetrics creates and registers the lifecycle metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firegate_lifecycle_transitions_total",
			Help: "Status transitions by destination status",
		}, []string{"to"}),
		ConnectorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firegate_connector_failures_total",
			Help: "Exhausted connector retry sequences by operation",
		}, []string{"operation"}),
		AwaitingCapacity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "firegate_requests_awaiting_capacity",
			Help: "Approved requests parked on pool exhaustion",
		}),
	}
}

func (m *Metrics) observeTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) observeConnectorFailure(operation string) {
	if m == nil {
		return
	}
	m.ConnectorFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) observeParked(delta float64) {
	if m == nil {
		return
	}
	m.AwaitingCapacity.Add(delta)
}
