package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks provisioning activity.
type Metrics struct {
	TenantsProvisioned prometheus.Counter
	CategoriesSeeded   prometheus.Counter
}

// New creates a Metrics instance with all provisioning metrics registered.
func New() *Metrics {
	return &Metrics{
		TenantsProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_tenants_provisioned_total",
			Help: "Number of EnsureBaseline runs that seeded at least one category",
		}),
		CategoriesSeeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_baseline_categories_seeded_total",
			Help: "Total baseline categories seeded across all tenants",
		}),
	}
}

func (m *Metrics) IncrementTenantsProvisioned() {
	if m == nil {
		return
	}
	m.TenantsProvisioned.Inc()
}

func (m *Metrics) AddCategoriesSeeded(n int) {
	if m == nil {
		return
	}
	m.CategoriesSeeded.Add(float64(n))
}
