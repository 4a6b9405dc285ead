package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"cityfix/internal/user/models"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/sentinel"
)

// InMemory is a user store for tests and standalone mode.
type InMemory struct {
	mu     sync.RWMutex
	users  map[id.UserID]*models.User
	nextID id.UserID
	now    func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		users: make(map[id.UserID]*models.User),
		now:   time.Now,
	}
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrConflict
		}
	}
	s.nextID++
	now := s.now().UTC()
	u.ID = s.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// Update saves profile fields. ReportsCount is owned by
// IncrementReportsCount and is never overwritten here.
func (s *InMemory) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, other := range s.users {
		if other.ID != u.ID && strings.EqualFold(other.Email, u.Email) {
			return sentinel.ErrConflict
		}
	}
	next := u.Clone()
	next.PasswordHash = prev.PasswordHash
	next.ReportsCount = prev.ReportsCount
	next.CreatedAt = prev.CreatedAt
	next.UpdatedAt = s.now().UTC()
	s.users[u.ID] = next
	u.ReportsCount = next.ReportsCount
	u.UpdatedAt = next.UpdatedAt
	return nil
}

// IncrementReportsCount adds one to the stored counter under the lock and
// returns the new value.
func (s *InMemory) IncrementReportsCount(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	u.ReportsCount++
	return u.ReportsCount, nil
}
