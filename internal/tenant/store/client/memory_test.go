package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

type ClientStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context

	tenantA id.TenantID
	tenantB id.TenantID
}

func TestClientStoreSuite(t *testing.T) {
	suite.Run(t, new(ClientStoreSuite))
}

func (s *ClientStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.tenantA = id.NewTenantID()
	s.tenantB = id.NewTenantID()
}

func (s *ClientStoreSuite) newClient(tenantID id.TenantID, name string) *models.Client {
	c, err := models.NewClient(id.NewClientID(), tenantID, name, "", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func (s *ClientStoreSuite) TestFindByTenantAndID() {
	c := s.newClient(s.tenantA, "Riley P")

	s.Run("owning tenant finds the row", func() {
		found, err := s.store.FindByTenantAndID(s.ctx, s.tenantA, c.ID)
		s.Require().NoError(err)
		s.Equal("Riley P", found.Name)
	})

	s.Run("foreign tenant sees not found, not forbidden", func() {
		_, err := s.store.FindByTenantAndID(s.ctx, s.tenantB, c.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ClientStoreSuite) TestListByTenant() {
	s.newClient(s.tenantA, "A One")
	s.newClient(s.tenantA, "A Two")
	s.newClient(s.tenantB, "B One")

	out, err := s.store.ListByTenant(s.ctx, s.tenantA)
	s.Require().NoError(err)
	s.Len(out, 2)
	for _, c := range out {
		s.Equal(s.tenantA, c.TenantID)
	}
}

func (s *ClientStoreSuite) TestUpdate() {
	c := s.newClient(s.tenantA, "Before")

	s.Run("owning tenant updates", func() {
		c.Name = "After"
		s.Require().NoError(s.store.Update(s.ctx, s.tenantA, c))

		found, err := s.store.FindByTenantAndID(s.ctx, s.tenantA, c.ID)
		s.Require().NoError(err)
		s.Equal("After", found.Name)
	})

	s.Run("foreign tenant cannot update", func() {
		c.Name = "Hijacked"
		err := s.store.Update(s.ctx, s.tenantB, c)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("a row can never change tenants", func() {
		moved := *c
		moved.TenantID = s.tenantB
		err := s.store.Update(s.ctx, s.tenantB, &moved)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		found, err := s.store.FindByTenantAndID(s.ctx, s.tenantA, c.ID)
		s.Require().NoError(err)
		s.Equal(s.tenantA, found.TenantID)
	})
}

func (s *ClientStoreSuite) TestCountByTenant() {
	s.newClient(s.tenantA, "One")
	s.newClient(s.tenantA, "Two")

	n, err := s.store.CountByTenant(s.ctx, s.tenantA)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.store.CountByTenant(s.ctx, s.tenantB)
	s.Require().NoError(err)
	s.Equal(0, n)
}
