package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context

	tenantID id.TenantID
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.tenantID = id.NewTenantID()
}

func (s *UserStoreSuite) newUser(tenantID id.TenantID, email string) *models.User {
	u, err := models.NewUser(id.NewUserID(), tenantID, email, "Test User", id.RoleSupportWorker, time.Now())
	s.Require().NoError(err)
	return u
}

func (s *UserStoreSuite) TestCreate() {
	s.Run("creates a user", func() {
		u := s.newUser(s.tenantID, "worker@example.com")
		s.Require().NoError(s.store.Create(s.ctx, u))
	})

	s.Run("email unique within the tenant", func() {
		dup := s.newUser(s.tenantID, "WORKER@example.com")
		s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrAlreadyUsed)
	})

	s.Run("same email allowed in another tenant", func() {
		other := s.newUser(id.NewTenantID(), "worker@example.com")
		s.Require().NoError(s.store.Create(s.ctx, other))
	})
}

func (s *UserStoreSuite) TestFindByID() {
	u := s.newUser(s.tenantID, "lookup@example.com")
	s.Require().NoError(s.store.Create(s.ctx, u))

	s.Run("pre-scope lookup finds any tenant's user", func() {
		found, err := s.store.FindByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(s.tenantID, found.TenantID)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestFindByTenantAndID() {
	u := s.newUser(s.tenantID, "scoped@example.com")
	s.Require().NoError(s.store.Create(s.ctx, u))

	s.Run("owning tenant finds the row", func() {
		found, err := s.store.FindByTenantAndID(s.ctx, s.tenantID, u.ID)
		s.Require().NoError(err)
		s.Equal(u.Email, found.Email)
	})

	s.Run("foreign tenant sees not found", func() {
		_, err := s.store.FindByTenantAndID(s.ctx, id.NewTenantID(), u.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestCountByTenant() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser(s.tenantID, "one@example.com")))
	s.Require().NoError(s.store.Create(s.ctx, s.newUser(s.tenantID, "two@example.com")))

	n, err := s.store.CountByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(2, n)
}
