package store

import (
	"context"
	"errors"

	"github.com/stretchr/testify/suite"

	"cityfix/internal/report/models"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/sentinel"
)

// Backend is a report store together with its transaction runner.
type Backend interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	List(ctx context.Context) ([]*models.Report, error)
	Update(ctx context.Context, r *models.Report) error
	Delete(ctx context.Context, reportID id.ReportID) error
}

// StoreSuite runs the same behavioral checks against every backend.
type StoreSuite struct {
	suite.Suite
	newStore func() Backend
	store    Backend
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
}

func lat(v float64) *float64 { return &v }

func (s *StoreSuite) TestCreateAssignsIDAndTimestamps() {
	ctx := context.Background()
	r := models.New(7, models.CreateInput{Title: "Pothole", Category: "ROADS", Latitude: lat(52.2)})
	s.Require().NoError(s.store.Create(ctx, r))
	s.NotZero(r.ID)
	s.False(r.CreatedAt.IsZero())

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal("Pothole", got.Title)
	s.Equal(models.StatusOpen, got.Status)
	s.InDelta(52.2, *got.Latitude, 0.0001)
	s.Nil(got.Longitude)
}

func (s *StoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), 9999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestListOrdersByID() {
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		s.Require().NoError(s.store.Create(ctx, models.New(1, models.CreateInput{Title: title, Category: "X"})))
	}
	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("a", list[0].Title)
	s.Equal("c", list[2].Title)
}

func (s *StoreSuite) TestUpdateAndDelete() {
	ctx := context.Background()
	r := models.New(1, models.CreateInput{Title: "a", Category: "X"})
	s.Require().NoError(s.store.Create(ctx, r))

	title := "b"
	r.Apply(models.Patch{Title: &title})
	s.Require().NoError(s.store.Update(ctx, r))
	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal("b", got.Title)

	s.Require().NoError(s.store.Delete(ctx, r.ID))
	s.ErrorIs(s.store.Delete(ctx, r.ID), sentinel.ErrNotFound)
	r.ID = 424242
	s.ErrorIs(s.store.Update(ctx, r), sentinel.ErrNotFound)
}

func (s *StoreSuite) TestRunInTxRollsBackOnError() {
	ctx := context.Background()
	boom := errors.New("publish failed")
	var created *models.Report
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		created = models.New(1, models.CreateInput{Title: "rolled back", Category: "X"})
		s.Require().NoError(s.store.Create(ctx, created))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindByID(ctx, created.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestRunInTxCommits() {
	ctx := context.Background()
	var created *models.Report
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context) error {
		created = models.New(1, models.CreateInput{Title: "kept", Category: "X"})
		return s.store.Create(ctx, created)
	}))
	got, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("kept", got.Title)
}
