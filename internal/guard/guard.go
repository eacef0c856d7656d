// Package guard enforces the tenant boundary on every mutating payload.
//
// The guard runs between handler decoding and service execution. Reads never
// pass through it; read isolation is structural, provided by the scoped
// repository predicates. Writes carry their target tenant in the payload, and
// the guard compares it against the identity resolved for the request.
package guard

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"caretrack/internal/activity"
	"caretrack/internal/guard/metrics"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/requestcontext"
)

// TenantCarrier is any mutating payload that carries a target tenant.
// Handlers' request types implement it.
type TenantCarrier interface {
	PayloadTenant() id.TenantID
	// StampTenant fills in the target tenant when the payload arrived
	// without one.
	StampTenant(id.TenantID)
}

// ActivityStore records security entries for rejected payloads.
type ActivityStore interface {
	Append(ctx context.Context, entry activity.Entry) error
}

// Guard validates mutating payloads against the request identity.
type Guard struct {
	activity ActivityStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(activity ActivityStore, logger *slog.Logger, m *metrics.Metrics) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{activity: activity, logger: logger, metrics: m}
}

// Enforce applies the boundary rule to one payload:
//
//   - no identity in context: the request never passed the resolver, reject
//   - payload has no tenant: stamp the identity's tenant, accept
//   - payload tenant matches the identity's tenant: accept
//   - payload tenant is foreign and the identity carries the cross-tenant
//     capability: accept
//   - otherwise: reject, and record a security activity entry under the
//     identity's own tenant
//
// A rejected payload is treated as probable tampering, not a user mistake.
func (g *Guard) Enforce(ctx context.Context, payload TenantCarrier) error {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeNoTenantContext, "no tenant context on request")
	}

	target := payload.PayloadTenant()
	if target.IsNil() {
		payload.StampTenant(ident.TenantID)
		g.metrics.IncrementPayloadsStamped()
		return nil
	}
	if target == ident.TenantID {
		return nil
	}
	if ident.CanCrossTenant() {
		return nil
	}

	g.metrics.IncrementBoundaryViolations()
	g.logger.WarnContext(ctx, "tenant boundary violation",
		"log_type", "security",
		"tenant_id", ident.TenantID.String(),
		"user_id", ident.UserID.String(),
		"target_tenant_id", target.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	entry := activity.Entry{
		ID:           uuid.New(),
		TenantID:     ident.TenantID,
		UserID:       ident.UserID,
		Category:     activity.CategorySecurity,
		Action:       activity.ActionBoundaryViolation,
		ResourceType: "tenant",
		ResourceID:   target.String(),
		At:           requestcontext.Now(ctx),
	}
	if err := g.activity.Append(ctx, entry); err != nil {
		// The rejection stands even if the audit write fails.
		g.logger.ErrorContext(ctx, "failed to record boundary violation",
			"error", err.Error(),
		)
	}
	return dErrors.New(dErrors.CodeBoundaryViolation, "payload targets a foreign tenant")
}
