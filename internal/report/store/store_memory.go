package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"cityfix/internal/report/models"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/sentinel"
)

// InMemory is a report store for tests and standalone mode. It supports
// RunInTx by journaling undo steps and replaying them when fn fails.
type InMemory struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*models.Report
	nextID  id.ReportID
	now     func() time.Time
}

type journalKey struct{}

type journal struct {
	undo []func()
}

func NewInMemory() *InMemory {
	return &InMemory{
		reports: make(map[id.ReportID]*models.Report),
		now:     time.Now,
	}
}

// RunInTx reverts every write fn made when it returns an error.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		s.mu.Lock()
		for _, undo := range slices.Backward(j.undo) {
			undo()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// record must be called with mu held.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func (s *InMemory) Create(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now().UTC()
	r.ID = s.nextID
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reports[r.ID] = r.Clone()
	reportID := r.ID
	record(ctx, func() { delete(s.reports, reportID) })
	return nil
}

func (s *InMemory) FindByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// List returns every report, oldest first.
func (s *InMemory) List(_ context.Context) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Report) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.reports[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.CreatedAt = prev.CreatedAt
	r.UpdatedAt = s.now().UTC()
	s.reports[r.ID] = r.Clone()
	record(ctx, func() { s.reports[prev.ID] = prev })
	return nil
}

func (s *InMemory) Delete(ctx context.Context, reportID id.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.reports[reportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.reports, reportID)
	record(ctx, func() { s.reports[prev.ID] = prev })
	return nil
}
