package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"caretrack/internal/activity"
	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/platform/sentinel"
	"caretrack/pkg/requestcontext"
)

// CreateTenantInput carries the onboarding request. The admin fields are
// optional; when set, an initial admin user is created with the tenant.
type CreateTenantInput struct {
	Name       string
	AdminEmail string
	AdminName  string
}

// CreateTenantResult is the onboarding outcome.
type CreateTenantResult struct {
	Tenant      *models.Tenant `json:"tenant"`
	AdminUser   *models.User   `json:"admin_user,omitempty"`
	Provisioned []string       `json:"provisioned"`
}

// CreateTenant onboards a tenant atomically: the tenant row, its baseline
// configuration and the optional initial admin user commit together. A
// half-provisioned tenant never becomes visible.
func (s *Service) CreateTenant(ctx context.Context, in CreateTenantInput) (*CreateTenantResult, error) {
	name := strings.TrimSpace(in.Name)

	now := requestcontext.Now(ctx)
	t, err := models.NewTenant(id.NewTenantID(), name, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	result := &CreateTenantResult{Tenant: t}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tenants.CreateIfNameAvailable(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
		}

		provisioned, err := s.provision.EnsureBaseline(ctx, t.ID)
		if err != nil {
			return err
		}
		result.Provisioned = provisioned

		if in.AdminEmail != "" {
			u, err := models.NewUser(id.NewUserID(), t.ID, in.AdminEmail, in.AdminName, id.RoleAdmin, now)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
				}
				return err
			}
			if err := s.users.Create(ctx, u); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return dErrors.New(dErrors.CodeConflict, "admin email already in use")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create admin user")
			}
			result.AdminUser = u
		}

		for _, action := range []activity.Action{activity.ActionTenantCreated, activity.ActionTenantProvisioned} {
			entry := activity.Entry{
				ID:           uuid.New(),
				TenantID:     t.ID,
				UserID:       actorID(ctx),
				Category:     action.Category(),
				Action:       action,
				ResourceType: "tenant",
				ResourceID:   t.ID.String(),
				At:           now,
			}
			if err := s.activity.Append(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record tenant creation")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "tenant_created", "tenant_id", t.ID.String(), "name", t.Name)
	s.metrics.IncrementTenantsCreated()
	return result, nil
}

// GetTenant fetches tenant metadata with counts.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}

	userCount, err := s.users.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
	}
	clientCount, err := s.clients.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count clients")
	}

	return &models.TenantDetails{Tenant: tenant, UserCount: userCount, ClientCount: clientCount}, nil
}

// ListTenants returns the active tenants.
func (s *Service) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, nil
}

// DeactivateTenant flips the tenant to inactive. Data is retained; requests
// resolving into the tenant start failing at the resolver.
func (s *Service) DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.transition(ctx, tenantID, activity.ActionTenantDeactivated,
		(*models.Tenant).CanDeactivate,
		func(t *models.Tenant) { t.ApplyDeactivation(requestcontext.Now(ctx)) },
	)
}

// ReactivateTenant flips an inactive tenant back to active.
func (s *Service) ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.transition(ctx, tenantID, activity.ActionTenantReactivated,
		(*models.Tenant).CanReactivate,
		func(t *models.Tenant) { t.ApplyReactivation(requestcontext.Now(ctx)) },
	)
}

// transition runs a lifecycle change as validate-then-mutate under the store
// lock, so two concurrent transitions cannot interleave.
func (s *Service) transition(
	ctx context.Context,
	tenantID id.TenantID,
	action activity.Action,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	updated, err := s.tenants.Execute(ctx, tenantID, validate, mutate)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, err
	}

	entry := activity.Entry{
		ID:           uuid.New(),
		TenantID:     tenantID,
		UserID:       actorID(ctx),
		Category:     action.Category(),
		Action:       action,
		ResourceType: "tenant",
		ResourceID:   tenantID.String(),
		At:           requestcontext.Now(ctx),
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to record tenant transition",
			"tenant_id", tenantID.String(),
			"action", string(action),
			"error", err.Error(),
		)
	}
	s.logAudit(ctx, string(action), "tenant_id", tenantID.String())
	return updated, nil
}
