// Package client provides care-recipient persistence. Every operation takes
// the caller's tenant id; rows outside that tenant are invisible.
package client

import (
	"context"
	"sort"
	"sync"

	"caretrack/internal/tenant/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*models.Client
}

func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[id.ClientID]*models.Client)}
}

func (s *InMemory) Create(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	cp := *client
	s.clients[client.ID] = &cp
	return nil
}

func (s *InMemory) FindByTenantAndID(_ context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok || c.TenantID != tenantID {
		// Mismatch and absence are indistinguishable on purpose.
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Client
	for _, c := range s.clients {
		if c.TenantID == tenantID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update re-validates the stored row's tenant before applying the change. A
// guard defect upstream still cannot move a row across tenants.
func (s *InMemory) Update(_ context.Context, tenantID id.TenantID, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.clients[client.ID]
	if !ok || existing.TenantID != tenantID || client.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	cp := *client
	s.clients[client.ID] = &cp
	return nil
}

func (s *InMemory) CountByTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.clients {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}
