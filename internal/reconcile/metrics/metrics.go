package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks reconciliation sweep outcomes.
type Metrics struct {
	SweepsRun       prometheus.Counter
	TenantsRepaired prometheus.Counter
	TenantsFailed   prometheus.Counter
	SweepDuration   prometheus.Histogram
}

// New creates a Metrics instance with all reconciliation metrics registered.
func New() *Metrics {
	return &Metrics{
		SweepsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_reconcile_sweeps_total",
			Help: "Number of reconciliation sweeps run",
		}),
		TenantsRepaired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_reconcile_tenants_repaired_total",
			Help: "Tenants whose baseline configuration was repaired by a sweep",
		}),
		TenantsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_reconcile_tenants_failed_total",
			Help: "Tenants whose reconciliation failed",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretrack_reconcile_sweep_duration_seconds",
			Help:    "Duration of full reconciliation sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

func (m *Metrics) IncrementSweepsRun() {
	if m == nil {
		return
	}
	m.SweepsRun.Inc()
}

func (m *Metrics) IncrementTenantsRepaired() {
	if m == nil {
		return
	}
	m.TenantsRepaired.Inc()
}

func (m *Metrics) IncrementTenantsFailed() {
	if m == nil {
		return
	}
	m.TenantsFailed.Inc()
}

// ObserveSweep records the duration of a full sweep. Call with time.Now() at
// sweep start.
func (m *Metrics) ObserveSweep(start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(start).Seconds())
}
