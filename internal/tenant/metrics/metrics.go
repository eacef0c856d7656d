package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tenant module.
// Tracks tenant/client creation counts and resolver latency.
type Metrics struct {
	TenantsCreated         prometheus.Counter
	ClientsCreated         prometheus.Counter
	ResolveContextDuration prometheus.Histogram
	ResolveFailures        prometheus.Counter
}

// New creates a Metrics instance with all tenant module metrics registered.
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		ClientsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_clients_created_total",
			Help: "Total number of care recipients registered",
		}),
		ResolveContextDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretrack_resolve_context_duration_seconds",
			Help:    "Duration of tenant context resolution (runs on every request)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ResolveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_resolve_context_failures_total",
			Help: "Requests rejected because no tenant context could be resolved",
		}),
	}
}

func (m *Metrics) IncrementTenantsCreated() {
	if m == nil {
		return
	}
	m.TenantsCreated.Inc()
}

func (m *Metrics) IncrementClientsCreated() {
	if m == nil {
		return
	}
	m.ClientsCreated.Inc()
}

// ObserveResolveContext records the duration of one resolution. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObserveResolveContext(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveContextDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementResolveFailures() {
	if m == nil {
		return
	}
	m.ResolveFailures.Inc()
}
