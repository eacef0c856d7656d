package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks boundary guard outcomes. Violation counts feed alerting;
// any nonzero rate means a client is sending foreign tenant IDs.
type Metrics struct {
	PayloadsStamped    prometheus.Counter
	BoundaryViolations prometheus.Counter
}

// New creates a Metrics instance with all guard metrics registered.
func New() *Metrics {
	return &Metrics{
		PayloadsStamped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_guard_payloads_stamped_total",
			Help: "Payloads that arrived without a tenant ID and were stamped from the request identity",
		}),
		BoundaryViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_guard_boundary_violations_total",
			Help: "Rejected writes that targeted a foreign tenant",
		}),
	}
}

func (m *Metrics) IncrementPayloadsStamped() {
	if m == nil {
		return
	}
	m.PayloadsStamped.Inc()
}

func (m *Metrics) IncrementBoundaryViolations() {
	if m == nil {
		return
	}
	m.BoundaryViolations.Inc()
}
