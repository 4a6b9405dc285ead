package store

import (
	"context"
	"sync"

	"github.com/stretchr/testify/suite"

	"cityfix/internal/user/models"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/sentinel"
)

// Backend is the behavior shared by every user store.
type Backend interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *models.User) error
	IncrementReportsCount(ctx context.Context, userID id.UserID) (int, error)
}

type StoreSuite struct {
	suite.Suite
	newStore func() Backend
	store    Backend
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func (s *StoreSuite) create(username, email string) *models.User {
	u := &models.User{Username: username, Email: email, PasswordHash: "hash"}
	s.Require().NoError(s.store.Create(s.ctx, u))
	return u
}

func (s *StoreSuite) TestCreateAndFind() {
	u := s.create("alice", "alice@example.com")
	s.NotZero(u.ID)
	s.Zero(u.ReportsCount)

	byID, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
	s.Equal("hash", byID.PasswordHash)

	byName, err := s.store.FindByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(u.ID, byName.ID)

	_, err = s.store.FindByUsername(s.ctx, "bob")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByID(s.ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestUniqueness() {
	s.create("alice", "alice@example.com")

	s.ErrorIs(s.store.Create(s.ctx, &models.User{Username: "alice", Email: "other@example.com"}), sentinel.ErrConflict)
	s.ErrorIs(s.store.Create(s.ctx, &models.User{Username: "other", Email: "ALICE@example.com"}), sentinel.ErrConflict)

	ok, err := s.store.ExistsByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.ExistsByEmail(s.ctx, "Alice@Example.com")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.ExistsByEmail(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestUpdateKeepsCounterAndHash() {
	u := s.create("alice", "alice@example.com")
	_, err := s.store.IncrementReportsCount(s.ctx, u.ID)
	s.Require().NoError(err)

	u.Apply(models.ProfileUpdate{FirstName: "Alice", Phone: "123"})
	u.PasswordHash = "ignored"
	u.ReportsCount = 0
	s.Require().NoError(s.store.Update(s.ctx, u))
	s.Equal(1, u.ReportsCount)

	got, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Alice", got.FirstName)
	s.Equal("hash", got.PasswordHash)
	s.Equal(1, got.ReportsCount)
}

func (s *StoreSuite) TestUpdateEmailConflict() {
	s.create("alice", "alice@example.com")
	bob := s.create("bob", "bob@example.com")
	bob.Email = "alice@example.com"
	s.ErrorIs(s.store.Update(s.ctx, bob), sentinel.ErrConflict)
}

func (s *StoreSuite) TestIncrementReportsCount() {
	u := s.create("alice", "alice@example.com")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.IncrementReportsCount(s.ctx, u.ID)
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(20, got.ReportsCount)

	_, err = s.store.IncrementReportsCount(s.ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
