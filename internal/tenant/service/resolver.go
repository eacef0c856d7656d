package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caretrack/internal/session"
	"caretrack/internal/tenant/metrics"
	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/requestcontext"
)

// TokenValidator verifies a session token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*session.Claims, error)
}

// UserFinder is the one pre-scope lookup in the system: the resolver has only
// a user ID and derives the tenant from the user row itself.
type UserFinder interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

// TenantFinder loads the tenant for the active check.
type TenantFinder interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
}

// Resolver builds the request's tenant identity from a session token. It runs
// once per request, before any handler; a request that cannot resolve a
// tenant context never reaches tenant-scoped code.
type Resolver struct {
	validator  TokenValidator
	revocation session.RevocationChecker
	users      UserFinder
	tenants    TenantFinder
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewResolver(
	validator TokenValidator,
	revocation session.RevocationChecker,
	users UserFinder,
	tenants TenantFinder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		validator:  validator,
		revocation: revocation,
		users:      users,
		tenants:    tenants,
		logger:     logger,
		metrics:    m,
	}
}

// ResolveContext validates the token, checks revocation, loads the user and
// confirms both user and tenant are active. Authentication failures return
// CodeUnauthenticated; a valid session whose tenant cannot serve requests
// returns CodeNoTenantContext. Both reject the request before any
// tenant-scoped code runs.
func (r *Resolver) ResolveContext(ctx context.Context, token string) (requestcontext.TenantIdentity, error) {
	start := time.Now()
	defer r.metrics.ObserveResolveContext(start)

	fail := func(err error) (requestcontext.TenantIdentity, error) {
		r.metrics.IncrementResolveFailures()
		return requestcontext.TenantIdentity{}, err
	}

	if token == "" {
		return fail(dErrors.New(dErrors.CodeUnauthenticated, "missing session token"))
	}

	claims, err := r.validator.ValidateToken(token)
	if err != nil {
		return fail(dErrors.Wrap(err, dErrors.CodeUnauthenticated, "invalid session token"))
	}

	if r.revocation != nil && claims.JTI != "" {
		revoked, err := r.revocation.IsTokenRevoked(ctx, claims.JTI)
		if err != nil {
			// Revocation backend down: reject rather than serve a possibly
			// revoked session.
			return fail(dErrors.Wrap(err, dErrors.CodeUnauthenticated, "revocation check unavailable"))
		}
		if revoked {
			return fail(dErrors.New(dErrors.CodeUnauthenticated, "session revoked"))
		}
	}

	user, err := r.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fail(dErrors.New(dErrors.CodeUnauthenticated, "unknown user"))
		}
		return fail(dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user"))
	}
	if !user.IsActive() {
		return fail(dErrors.New(dErrors.CodeUnauthenticated, "user is deactivated"))
	}
	if user.TenantID.IsNil() {
		return fail(dErrors.New(dErrors.CodeNoTenantContext, "user has no tenant"))
	}

	tenant, err := r.tenants.FindByID(ctx, user.TenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fail(dErrors.New(dErrors.CodeNoTenantContext, "tenant not found"))
		}
		return fail(dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant"))
	}
	if !tenant.IsActive() {
		return fail(dErrors.New(dErrors.CodeNoTenantContext, "tenant is deactivated"))
	}

	return requestcontext.TenantIdentity{
		TenantID: user.TenantID,
		UserID:   user.ID,
		Role:     user.Role,
	}, nil
}
