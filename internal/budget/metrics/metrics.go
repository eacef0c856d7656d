package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the budget ledger.
// Tracks ledger entry counts, over-allocation events and deduction latency.
type Metrics struct {
	DeductionsRecorded  prometheus.Counter
	AdjustmentsRecorded prometheus.Counter
	RefundsRecorded     prometheus.Counter
	OverAllocated       prometheus.Counter
	LockTimeouts        prometheus.Counter
	DeductionDuration   prometheus.Histogram
}

// New creates a Metrics instance with all budget ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		DeductionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_deductions_recorded_total",
			Help: "Total number of deduction ledger entries recorded",
		}),
		AdjustmentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_adjustments_recorded_total",
			Help: "Total number of adjustment ledger entries recorded",
		}),
		RefundsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_refunds_recorded_total",
			Help: "Total number of refund ledger entries recorded",
		}),
		OverAllocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_budget_over_allocated_total",
			Help: "Number of times a deduction pushed a budget over its allocation",
		}),
		LockTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_ledger_lock_timeouts_total",
			Help: "Number of ledger operations that timed out waiting for a budget lock",
		}),
		DeductionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretrack_deduction_duration_seconds",
			Help:    "Duration of RecordDeduction operations (service recording critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// Methods are nil-safe so service unit tests can run without a registry.

func (m *Metrics) IncrementDeductionsRecorded() {
	if m == nil {
		return
	}
	m.DeductionsRecorded.Inc()
}

func (m *Metrics) IncrementAdjustmentsRecorded() {
	if m == nil {
		return
	}
	m.AdjustmentsRecorded.Inc()
}

func (m *Metrics) IncrementRefundsRecorded() {
	if m == nil {
		return
	}
	m.RefundsRecorded.Inc()
}

func (m *Metrics) IncrementOverAllocated() {
	if m == nil {
		return
	}
	m.OverAllocated.Inc()
}

func (m *Metrics) IncrementLockTimeouts() {
	if m == nil {
		return
	}
	m.LockTimeouts.Inc()
}

// ObserveDeduction records the duration of a RecordDeduction operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveDeduction(start time.Time) {
	if m == nil {
		return
	}
	m.DeductionDuration.Observe(time.Since(start).Seconds())
}
