// Package transaction provides ledger-entry persistence. Entries are
// write-once: the store exposes insert and reads only.
package transaction

import (
	"context"
	"sort"
	"sync"

	"caretrack/internal/budget/models"
	id "caretrack/pkg/domain"
	"caretrack/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	entries map[id.TransactionID]*models.BudgetTransaction
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.TransactionID]*models.BudgetTransaction)}
}

// Insert adds the entry unless the (tenant, source event) pair was already
// recorded. The uniqueness check backs the engine's in-lock idempotency test.
func (s *InMemory) Insert(_ context.Context, txn *models.BudgetTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.TenantID == txn.TenantID && existing.SourceEventID == txn.SourceEventID {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *txn
	s.entries[txn.ID] = &cp
	return nil
}

// FindBySourceEvent is the idempotency lookup.
func (s *InMemory) FindBySourceEvent(_ context.Context, tenantID id.TenantID, sourceEventID string) (*models.BudgetTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, txn := range s.entries {
		if txn.TenantID == tenantID && txn.SourceEventID == sourceEventID {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByBudget(_ context.Context, tenantID id.TenantID, budgetID id.BudgetID) ([]*models.BudgetTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BudgetTransaction
	for _, txn := range s.entries {
		if txn.TenantID == tenantID && txn.BudgetID == budgetID {
			cp := *txn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
