package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"cityfix/internal/auditlog/models"
)

// Backend is the behavior shared by every audit store.
type Backend interface {
	Append(ctx context.Context, r *models.Record) error
	Find(ctx context.Context, f models.Filter) ([]models.Record, error)
}

type StoreSuite struct {
	suite.Suite
	newStore func() Backend
	store    Backend
	ctx      context.Context
	base     time.Time
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, r := range []models.Record{
		{EventType: "USER", UserID: 1, Username: "alice", EntityType: "User", EntityID: 1, Action: "register"},
		{EventType: "USER", UserID: 1, Username: "alice", EntityType: "User", EntityID: 1, Action: "login", IPAddress: "10.0.0.1"},
		{EventType: "REPORT", UserID: 1, EntityType: "Report", EntityID: 5, Action: "report.create", Details: "Report created: Pothole"},
		{EventType: "USER", Username: "mallory", EntityType: "User", Action: "login-log"},
		{EventType: "REPORT", UserID: 2, EntityType: "Report", EntityID: 6, Action: "report.create"},
	} {
		r.Timestamp = s.base.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Append(s.ctx, &r))
		s.NotZero(r.ID)
	}
}

func (s *StoreSuite) actions(records []models.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Action)
	}
	return out
}

func (s *StoreSuite) TestRecentNewestFirst() {
	got, err := s.store.Find(s.ctx, models.Filter{Limit: 3})
	s.Require().NoError(err)
	s.Equal([]string{"report.create", "login-log", "report.create"}, s.actions(got))
	s.Equal(int64(6), got[0].EntityID)
}

func (s *StoreSuite) TestByUser() {
	got, err := s.store.Find(s.ctx, models.Filter{UserID: 1})
	s.Require().NoError(err)
	s.Equal([]string{"report.create", "login", "register"}, s.actions(got))
	s.Equal("10.0.0.1", got[1].IPAddress)
}

func (s *StoreSuite) TestByEventType() {
	got, err := s.store.Find(s.ctx, models.Filter{EventType: "REPORT"})
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *StoreSuite) TestByRange() {
	got, err := s.store.Find(s.ctx, models.Filter{From: s.base.Add(time.Minute), To: s.base.Add(3 * time.Minute)})
	s.Require().NoError(err)
	s.Equal([]string{"login-log", "report.create", "login"}, s.actions(got))
}

func (s *StoreSuite) TestAbsentIDsStayZero() {
	got, err := s.store.Find(s.ctx, models.Filter{EventType: "USER", Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("mallory", got[0].Username)
	s.Zero(got[0].UserID)
	s.Zero(got[0].EntityID)
}

func (s *StoreSuite) TestDuplicatesAreKept() {
	r := models.Record{EventType: "USER", UserID: 9, EntityType: "User", Action: "login", Timestamp: s.base}
	dup := r
	s.Require().NoError(s.store.Append(s.ctx, &r))
	s.Require().NoError(s.store.Append(s.ctx, &dup))
	got, err := s.store.Find(s.ctx, models.Filter{UserID: 9})
	s.Require().NoError(err)
	s.Len(got, 2)
}
