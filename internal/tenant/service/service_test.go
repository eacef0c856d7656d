package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"caretrack/internal/activity"
	activitymemory "caretrack/internal/activity/store/memory"
	provisionservice "caretrack/internal/provision/service"
	provisionmemory "caretrack/internal/provision/store/memory"
	"caretrack/internal/tenant/models"
	clientstore "caretrack/internal/tenant/store/client"
	tenantstore "caretrack/internal/tenant/store/tenant"
	userstore "caretrack/internal/tenant/store/user"
	id "caretrack/pkg/domain"
	dErrors "caretrack/pkg/domain-errors"
)

type TenantServiceSuite struct {
	suite.Suite
	tenants     *tenantstore.InMemory
	users       *userstore.InMemory
	clients     *clientstore.InMemory
	baseline    *provisionmemory.Store
	activityLog *activitymemory.Store
	service     *Service
	ctx         context.Context
}

func TestTenantServiceSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceSuite))
}

func (s *TenantServiceSuite) SetupTest() {
	s.tenants = tenantstore.NewInMemory()
	s.users = userstore.NewInMemory()
	s.clients = clientstore.NewInMemory()
	s.baseline = provisionmemory.New()
	s.activityLog = activitymemory.New()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provision := provisionservice.NewService(s.baseline, logger, nil)
	s.service = New(s.tenants, s.users, s.clients, provision, s.activityLog, PassthroughTx{},
		WithLogger(logger),
	)
	s.ctx = context.Background()
}

// =============================================================================
// Onboarding Tests
// =============================================================================

func (s *TenantServiceSuite) TestCreateTenant() {
	s.Run("creates tenant with baseline and admin user", func() {
		result, err := s.service.CreateTenant(s.ctx, CreateTenantInput{
			Name:       "Sunrise Care",
			AdminEmail: "admin@sunrise.example",
			AdminName:  "Alex Admin",
		})
		s.Require().NoError(err)
		s.Equal("Sunrise Care", result.Tenant.Name)
		s.True(result.Tenant.IsActive())
		s.Len(result.Provisioned, 3, "all baseline categories seeded")

		s.Require().NotNil(result.AdminUser)
		s.Equal(id.RoleAdmin, result.AdminUser.Role)
		s.Equal(result.Tenant.ID, result.AdminUser.TenantID)

		entries, err := s.activityLog.ListByTenant(s.ctx, result.Tenant.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(activity.ActionTenantCreated, entries[0].Action)
		s.Equal(activity.ActionTenantProvisioned, entries[1].Action)
	})

	s.Run("admin user is optional", func() {
		result, err := s.service.CreateTenant(s.ctx, CreateTenantInput{Name: "Solo Care"})
		s.Require().NoError(err)
		s.Nil(result.AdminUser)
	})

	s.Run("duplicate name conflicts", func() {
		_, err := s.service.CreateTenant(s.ctx, CreateTenantInput{Name: "sunrise care"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("empty name is a validation error", func() {
		_, err := s.service.CreateTenant(s.ctx, CreateTenantInput{Name: "   "})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TenantServiceSuite) TestGetTenant() {
	result, err := s.service.CreateTenant(s.ctx, CreateTenantInput{
		Name:       "Counted Care",
		AdminEmail: "admin@counted.example",
	})
	s.Require().NoError(err)

	s.Run("returns counts", func() {
		details, err := s.service.GetTenant(s.ctx, result.Tenant.ID)
		s.Require().NoError(err)
		s.Equal(1, details.UserCount)
		s.Equal(0, details.ClientCount)
	})

	s.Run("unknown tenant is not found", func() {
		_, err := s.service.GetTenant(s.ctx, id.NewTenantID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func (s *TenantServiceSuite) TestLifecycleTransitions() {
	result, err := s.service.CreateTenant(s.ctx, CreateTenantInput{Name: "Cycled Care"})
	s.Require().NoError(err)
	tenantID := result.Tenant.ID

	s.Run("deactivates an active tenant", func() {
		t, err := s.service.DeactivateTenant(s.ctx, tenantID)
		s.Require().NoError(err)
		s.Equal(models.TenantStatusInactive, t.Status)
	})

	s.Run("deactivating twice violates the transition rule", func() {
		_, err := s.service.DeactivateTenant(s.ctx, tenantID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("reactivates an inactive tenant", func() {
		t, err := s.service.ReactivateTenant(s.ctx, tenantID)
		s.Require().NoError(err)
		s.Equal(models.TenantStatusActive, t.Status)
	})

	s.Run("unknown tenant is not found", func() {
		_, err := s.service.DeactivateTenant(s.ctx, id.NewTenantID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Client Tests
// =============================================================================

func (s *TenantServiceSuite) TestCreateClient() {
	result, err := s.service.CreateTenant(s.ctx, CreateTenantInput{Name: "Client Care"})
	s.Require().NoError(err)
	tenantID := result.Tenant.ID

	s.Run("creates a client under the tenant", func() {
		client, err := s.service.CreateClient(s.ctx, CreateClientInput{
			TenantID: tenantID,
			Name:     "Riley P",
			NDISRef:  "NDIS-1234",
		})
		s.Require().NoError(err)
		s.Equal(tenantID, client.TenantID)
		s.True(client.IsActive())
	})

	s.Run("requires a tenant context", func() {
		_, err := s.service.CreateClient(s.ctx, CreateClientInput{Name: "No Tenant"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNoTenantContext))
	})

	s.Run("deactivated tenant refuses new clients", func() {
		_, err := s.service.DeactivateTenant(s.ctx, tenantID)
		s.Require().NoError(err)

		_, err = s.service.CreateClient(s.ctx, CreateClientInput{TenantID: tenantID, Name: "Too Late"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *TenantServiceSuite) TestUpdateClient() {
	result, err := s.service.CreateTenant(s.ctx, CreateTenantInput{Name: "Update Care"})
	s.Require().NoError(err)
	tenantID := result.Tenant.ID
	client, err := s.service.CreateClient(s.ctx, CreateClientInput{TenantID: tenantID, Name: "Before"})
	s.Require().NoError(err)

	strPtr := func(v string) *string { return &v }

	s.Run("updates the supplied fields only", func() {
		updated, err := s.service.UpdateClient(s.ctx, tenantID, client.ID, UpdateClientInput{
			Name: strPtr("After"),
		})
		s.Require().NoError(err)
		s.Equal("After", updated.Name)
		s.Equal(client.NDISRef, updated.NDISRef)
	})

	s.Run("rejects an empty name", func() {
		_, err := s.service.UpdateClient(s.ctx, tenantID, client.ID, UpdateClientInput{
			Name: strPtr("  "),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown status", func() {
		bad := models.ClientStatus("archived")
		_, err := s.service.UpdateClient(s.ctx, tenantID, client.ID, UpdateClientInput{
			Status: &bad,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("foreign tenant cannot see the client", func() {
		_, err := s.service.UpdateClient(s.ctx, id.NewTenantID(), client.ID, UpdateClientInput{
			Name: strPtr("Hijacked"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
