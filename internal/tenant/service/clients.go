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

// CreateClientInput registers a care recipient. TenantID is stamped or
// validated by the boundary guard before the service runs.
type CreateClientInput struct {
	TenantID id.TenantID
	Name     string
	NDISRef  string
}

// UpdateClientInput carries the mutable client fields. Nil means unchanged.
type UpdateClientInput struct {
	Name    *string
	NDISRef *string
	Status  *models.ClientStatus
}

// CreateClient registers a care recipient under the tenant.
func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (*models.Client, error) {
	if in.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeNoTenantContext, "client creation requires a tenant context")
	}

	tenant, err := s.tenants.FindByID(ctx, in.TenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	if !tenant.IsActive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant is deactivated")
	}

	now := requestcontext.Now(ctx)
	client, err := models.NewClient(id.NewClientID(), in.TenantID, strings.TrimSpace(in.Name), in.NDISRef, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.clients.Create(ctx, client); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create client")
		}
		entry := activity.Entry{
			ID:           uuid.New(),
			TenantID:     in.TenantID,
			UserID:       actorID(ctx),
			Category:     activity.ActionClientCreated.Category(),
			Action:       activity.ActionClientCreated,
			ResourceType: "client",
			ResourceID:   client.ID.String(),
			At:           now,
		}
		if err := s.activity.Append(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record client creation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "client_created",
		"tenant_id", in.TenantID.String(),
		"client_id", client.ID.String(),
	)
	s.metrics.IncrementClientsCreated()
	return client, nil
}

// GetClient returns a client scoped to the tenant. Absence and tenant
// mismatch are indistinguishable.
func (s *Service) GetClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	client, err := s.clients.FindByTenantAndID(ctx, tenantID, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get client")
	}
	return client, nil
}

// ListClients returns the tenant's care recipients.
func (s *Service) ListClients(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	clients, err := s.clients.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list clients")
	}
	return clients, nil
}

// UpdateClient updates mutable fields on a client within the tenant.
func (s *Service) UpdateClient(ctx context.Context, tenantID id.TenantID, clientID id.ClientID, in UpdateClientInput) (*models.Client, error) {
	client, err := s.GetClient(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 128 {
			return nil, dErrors.New(dErrors.CodeValidation, "client name must be 1 to 128 characters")
		}
		client.Name = name
	}
	if in.NDISRef != nil {
		client.NDISRef = *in.NDISRef
	}
	if in.Status != nil {
		if *in.Status != models.ClientStatusActive && *in.Status != models.ClientStatusInactive {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown client status")
		}
		client.Status = *in.Status
	}

	now := requestcontext.Now(ctx)
	client.UpdatedAt = now
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.clients.Update(ctx, tenantID, client); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "client not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update client")
		}
		entry := activity.Entry{
			ID:           uuid.New(),
			TenantID:     tenantID,
			UserID:       actorID(ctx),
			Category:     activity.ActionClientUpdated.Category(),
			Action:       activity.ActionClientUpdated,
			ResourceType: "client",
			ResourceID:   client.ID.String(),
			At:           now,
		}
		if err := s.activity.Append(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record client update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
