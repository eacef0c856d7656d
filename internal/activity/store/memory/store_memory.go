package memory

import (
	"context"
	"sync"

	"caretrack/internal/activity"
	id "caretrack/pkg/domain"
)

// Store keeps activity entries in memory for unit tests and dev mode.
type Store struct {
	mu      sync.RWMutex
	entries []activity.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry activity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// ListByTenant returns entries for one tenant in append order.
func (s *Store) ListByTenant(_ context.Context, tenantID id.TenantID) ([]activity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []activity.Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len reports the total number of entries. Test helper for zero-write
// assertions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
