package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"cityfix/internal/auditlog/models"
)

// InMemory is an append-only audit store for tests and standalone mode.
type InMemory struct {
	mu      sync.RWMutex
	records []models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *r)
	return nil
}

// Find returns matching records, newest first. Ties keep the latest append
// first.
func (s *InMemory) Find(_ context.Context, f models.Filter) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Record
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Record) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
