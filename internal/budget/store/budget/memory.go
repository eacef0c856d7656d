// Package budget provides budget persistence. The memory store relies on the
// ledger transaction runner's per-budget shard lock for serialization; the
// postgres store uses row locks.
package budget

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"caretrack/internal/budget/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	budgets map[id.BudgetID]*models.Budget
}

func NewInMemory() *InMemory {
	return &InMemory{budgets: make(map[id.BudgetID]*models.Budget)}
}

func (s *InMemory) Create(_ context.Context, b *models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.TenantID == b.TenantID && existing.ClientID == b.ClientID && existing.Category == b.Category {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *b
	s.budgets[b.ID] = &cp
	return nil
}

func (s *InMemory) FindByTenantAndID(_ context.Context, tenantID id.TenantID, budgetID id.BudgetID) (*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[budgetID]
	if !ok || b.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// GetForUpdate fetches the budget for the (tenant, client, category) triple.
// Serialization against concurrent deductions comes from the transaction
// runner's shard lock, which the caller holds for the duration of the ledger
// transaction.
func (s *InMemory) GetForUpdate(_ context.Context, tenantID id.TenantID, clientID id.ClientID, category string) (*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.budgets {
		if b.TenantID == tenantID && b.ClientID == clientID && b.Category == category {
			cp := *b
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpdateDerived persists the recomputed spent figure and over-allocation
// flag. The stored row's tenant is re-validated, independent of any upstream
// guard.
func (s *InMemory) UpdateDerived(_ context.Context, tenantID id.TenantID, b *models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.budgets[b.ID]
	if !ok || existing.TenantID != tenantID || b.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	cp := *b
	s.budgets[b.ID] = &cp
	return nil
}

func (s *InMemory) ListByTenantAndClient(_ context.Context, tenantID id.TenantID, clientID id.ClientID) ([]*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Budget
	for _, b := range s.budgets {
		if b.TenantID == tenantID && b.ClientID == clientID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// ConsoleBillingSummary is the single unscoped read in the repository layer,
// reserved for console-manager billing aggregates. The budget service gates
// it on the cross-tenant capability; it must never be reachable from a
// tenant-scoped context.
func (s *InMemory) ConsoleBillingSummary(_ context.Context) ([]models.TenantSpend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTenant := make(map[id.TenantID]*models.TenantSpend)
	for _, b := range s.budgets {
		ts, ok := byTenant[b.TenantID]
		if !ok {
			ts = &models.TenantSpend{TenantID: b.TenantID, TotalAllocation: decimal.Zero, TotalSpent: decimal.Zero}
			byTenant[b.TenantID] = ts
		}
		ts.Budgets++
		ts.TotalAllocation = ts.TotalAllocation.Add(b.TotalAllocation)
		ts.TotalSpent = ts.TotalSpent.Add(b.CurrentSpent)
		if b.OverAllocated {
			ts.OverAllocated++
		}
	}
	out := make([]models.TenantSpend, 0, len(byTenant))
	for _, ts := range byTenant {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID.String() < out[j].TenantID.String() })
	return out, nil
}
