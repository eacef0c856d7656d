// Package tenant provides tenant persistence. The memory store is the unit
// test double; the postgres store is production.
package tenant

import (
	"context"
	"sort"
	"strings"
	"sync"

	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

// InMemory keeps tenants in a map guarded by a mutex.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[id.TenantID]*models.Tenant)}
}

// CreateIfNameAvailable inserts the tenant unless another tenant already holds
// the name (case-insensitive).
func (s *InMemory) CreateIfNameAvailable(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Name, tenant.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if strings.EqualFold(t.Name, name) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListActive returns active tenants ordered by creation time. The
// reconciliation sweep iterates this.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		if t.IsActive() {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Execute runs validate-then-mutate atomically under the store lock. This is
// the memory analogue of SELECT ... FOR UPDATE.
func (s *InMemory) Execute(
	_ context.Context,
	tenantID id.TenantID,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(t); err != nil {
		return nil, err
	}
	mutate(t)
	cp := *t
	return &cp, nil
}
