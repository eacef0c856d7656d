// Package memory keeps baseline configuration in memory for unit tests and
// dev mode.
package memory

import (
	"context"
	"sync"

	"caretrack/internal/provision/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

type tenantBaseline struct {
	payScales       map[string]models.PayScale
	taxBrackets     []models.TaxBracket
	hourAllocations []models.HourAllocation
}

type Store struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*tenantBaseline
	writes  int
}

func New() *Store {
	return &Store{tenants: make(map[id.TenantID]*tenantBaseline)}
}

func (s *Store) baseline(tenantID id.TenantID) *tenantBaseline {
	b, ok := s.tenants[tenantID]
	if !ok {
		b = &tenantBaseline{payScales: make(map[string]models.PayScale)}
		s.tenants[tenantID] = b
	}
	return b
}

// MissingCategories reports which baseline categories have no rows for the
// tenant, in seeding order.
func (s *Store) MissingCategories(_ context.Context, tenantID id.TenantID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.tenants[tenantID]
	if !ok {
		return models.BaselineCategories(), nil
	}
	var missing []string
	if len(b.payScales) == 0 {
		missing = append(missing, models.CategoryPayScales)
	}
	if len(b.taxBrackets) == 0 {
		missing = append(missing, models.CategoryTaxBrackets)
	}
	if len(b.hourAllocations) == 0 {
		missing = append(missing, models.CategoryHourAllocations)
	}
	return missing, nil
}

func (s *Store) InsertPayScales(_ context.Context, scales []models.PayScale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scales {
		s.baseline(sc.TenantID).payScales[sc.Code] = sc
		s.writes++
	}
	return nil
}

func (s *Store) InsertTaxBrackets(_ context.Context, brackets []models.TaxBracket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tb := range brackets {
		b := s.baseline(tb.TenantID)
		b.taxBrackets = append(b.taxBrackets, tb)
		s.writes++
	}
	return nil
}

func (s *Store) InsertHourAllocations(_ context.Context, allocations []models.HourAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ha := range allocations {
		b := s.baseline(ha.TenantID)
		b.hourAllocations = append(b.hourAllocations, ha)
		s.writes++
	}
	return nil
}

func (s *Store) FindPayScale(_ context.Context, tenantID id.TenantID, code string) (*models.PayScale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	sc, ok := b.payScales[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := sc
	return &cp, nil
}

// Writes reports the total number of row writes. Test helper for the sweep's
// zero-write idempotence assertions.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
