// Package reconcile implements the consistency sweep that detects and repairs
// tenants with incomplete baseline configuration.
//
// The sweep is deliberately sequential. Tenant counts are small, repairs are
// rare, and a serial walk keeps the failure story simple: one tenant's
// failure is recorded and the sweep moves on.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caretrack/internal/activity"
	"caretrack/internal/reconcile/metrics"
	tenantmodels "caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/requestcontext"
)

// State tracks one tenant's progress through a sweep.
type State string

const (
	StateUnchecked  State = "unchecked"
	StateChecking   State = "checking"
	StateConsistent State = "consistent"
	StateRepaired   State = "repaired"
	StateFailed     State = "failed"
)

// Result is the terminal outcome for one tenant.
type Result struct {
	TenantID id.TenantID `json:"tenant_id"`
	State    State       `json:"state"`
	Repaired []string    `json:"repaired,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Summary aggregates one sweep.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Consistent int       `json:"consistent"`
	Repaired   int       `json:"repaired"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"results"`
}

// TenantStore lists the tenants a sweep covers. Inactive tenants are skipped;
// their data is retained but not maintained.
type TenantStore interface {
	ListActive(ctx context.Context) ([]*tenantmodels.Tenant, error)
	FindByID(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
}

// Provisioner is the repair engine. EnsureBaseline must be idempotent; the
// sweep leans on that for its zero-write guarantee on consistent tenants.
type Provisioner interface {
	EnsureBaseline(ctx context.Context, tenantID id.TenantID) ([]string, error)
}

// ActivityStore records repair audit entries.
type ActivityStore interface {
	Append(ctx context.Context, entry activity.Entry) error
}

type Reconciler struct {
	tenants   TenantStore
	provision Provisioner
	activity  ActivityStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(tenants TenantStore, provision Provisioner, activityStore ActivityStore, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tenants:   tenants,
		provision: provision,
		activity:  activityStore,
		logger:    logger,
		metrics:   m,
	}
}

// Run sweeps every active tenant sequentially. A tenant's failure is recorded
// in its Result and never aborts the sweep; only a cancelled context stops
// the walk early.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	defer r.metrics.ObserveSweep(start)
	r.metrics.IncrementSweepsRun()

	tenants, err := r.tenants.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants for sweep")
	}

	summary := &Summary{StartedAt: start}
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "sweep aborted")
		}
		res := r.reconcile(ctx, t.ID)
		switch res.State {
		case StateConsistent:
			summary.Consistent++
		case StateRepaired:
			summary.Repaired++
		case StateFailed:
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}
	summary.FinishedAt = time.Now()

	r.logger.InfoContext(ctx, "reconciliation sweep finished",
		"tenants", len(summary.Results),
		"consistent", summary.Consistent,
		"repaired", summary.Repaired,
		"failed", summary.Failed,
	)
	return summary, nil
}

// ReconcileTenant reconciles a single tenant on demand.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID id.TenantID) (*Result, error) {
	if _, err := r.tenants.FindByID(ctx, tenantID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	res := r.reconcile(ctx, tenantID)
	return &res, nil
}

// reconcile walks one tenant through the state machine:
// unchecked -> checking -> consistent | repaired | failed.
func (r *Reconciler) reconcile(ctx context.Context, tenantID id.TenantID) Result {
	res := Result{TenantID: tenantID, State: StateChecking}

	repaired, err := r.provision.EnsureBaseline(ctx, tenantID)
	if err != nil {
		r.metrics.IncrementTenantsFailed()
		r.logger.ErrorContext(ctx, "tenant reconciliation failed",
			"tenant_id", tenantID.String(),
			"error", err.Error(),
		)
		res.State = StateFailed
		res.Error = err.Error()
		return res
	}
	if len(repaired) == 0 {
		res.State = StateConsistent
		return res
	}

	entry := activity.Entry{
		ID:           uuid.New(),
		TenantID:     tenantID,
		UserID:       actorID(ctx),
		Category:     activity.ActionTenantRepaired.Category(),
		Action:       activity.ActionTenantRepaired,
		ResourceType: "tenant",
		ResourceID:   tenantID.String(),
		Detail:       "reseeded " + strings.Join(repaired, ", "),
		At:           requestcontext.Now(ctx),
	}
	if err := r.activity.Append(ctx, entry); err != nil {
		// The repair itself succeeded; report it as such.
		r.logger.ErrorContext(ctx, "failed to record tenant repair",
			"tenant_id", tenantID.String(),
			"error", err.Error(),
		)
	}

	r.metrics.IncrementTenantsRepaired()
	r.logger.WarnContext(ctx, "tenant baseline repaired",
		"tenant_id", tenantID.String(),
		"categories", strings.Join(repaired, ","),
	)
	res.State = StateRepaired
	res.Repaired = repaired
	return res
}

func actorID(ctx context.Context) id.UserID {
	if ident, ok := requestcontext.Identity(ctx); ok {
		return ident.UserID
	}
	return id.UserID{}
}
