package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pool occupancy and reservation churn.
type Metrics struct {
	Reservations *prometheus.CounterVec
	EntriesState *prometheus.GaugeVec
}

// NewMetrics creates and registers the pool metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Reservations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firegate_pool_reservations_total",
			Help: "Credential reservations by target system",
		}, []string{"target_system"}),
		EntriesState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "firegate_pool_entries",
			Help: "Pool entries by target system and state",
		}, []string{"target_system", "state"}),
	}
}

// ObserveReserve counts one successful reservation.
func (m *Metrics) ObserveReserve(targetSystem string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(targetSystem).Inc()
}

// ObserveOccupancy refreshes the state gauges from a full listing.
func (m *Metrics) ObserveOccupancy(entries []*Entry) {
	if m == nil {
		return
	}
	m.EntriesState.Reset()
	for _, e := range entries {
		m.EntriesState.WithLabelValues(e.TargetSystem, string(e.State)).Inc()
	}
}
