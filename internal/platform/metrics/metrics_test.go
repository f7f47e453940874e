package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := New()

	m.IncSubmitted()
	m.IncSubmitted()
	m.IncDecision("manager_approval", "approve")

	require.Equal(t, float64(2), testutil.ToFloat64(m.RequestsSubmitted))
	require.Equal(t, float64(1), testutil.ToFloat64(m.DecisionsRecorded.WithLabelValues("manager_approval", "approve")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.IncSubmitted()
	m.IncDecision("manager_approval", "approve")
}
