package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"cityfix/internal/auditlog/handler/mocks"
	"cityfix/internal/auditlog/models"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type LogHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestLogHandlerSuite(t *testing.T) {
	suite.Run(t, new(LogHandlerSuite))
}

func (s *LogHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), "s3cret").Register(s.router)
}

func (s *LogHandlerSuite) get(path string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, path, nil))
}

func (s *LogHandlerSuite) TestWrongPasswordIsUnauthorized() {
	w := s.get("/logs?password=nope")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("unauthorized", testutil.ErrorCode(s.T(), w))
	s.Equal(http.StatusUnauthorized, s.get("/logs").Code)
}

func (s *LogHandlerSuite) TestHealthIsPublic() {
	w := s.get("/logs/health")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "log-service")
}

func (s *LogHandlerSuite) TestPassesParsedQuery() {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s.service.EXPECT().
		Query(gomock.Any(), models.Filter{UserID: 4, EventType: "USER", From: from, To: to, Limit: 20}).
		Return(nil, nil)

	w := s.get("/logs?password=s3cret&userId=4&eventType=USER&from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z&limit=20")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())
}

func (s *LogHandlerSuite) TestRendersRecords() {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.service.EXPECT().Query(gomock.Any(), models.Filter{}).Return([]models.Record{
		{ID: 2, EventType: "REPORT", UserID: 7, EntityType: "Report", EntityID: 9, Action: "report.create", Timestamp: ts},
		{ID: 1, EventType: "USER", Username: "mallory", EntityType: "User", Action: "login-log", Timestamp: ts},
	}, nil)

	w := s.get("/logs?password=s3cret")
	s.Require().Equal(http.StatusOK, w.Code)

	got := testutil.DecodeJSON[[]AuditLogResponse](s.T(), w)
	s.Require().Len(got, 2)
	s.Equal(int64(7), *got[0].UserID)
	s.Equal(int64(9), *got[0].EntityID)
	s.Nil(got[1].UserID)
	s.Nil(got[1].EntityID)
}

func (s *LogHandlerSuite) TestRejectsMalformedParameters() {
	for _, q := range []string{"limit=abc", "limit=0", "userId=x", "from=yesterday", "to=2026-13-01"} {
		w := s.get("/logs?password=s3cret&" + q)
		s.Equal(http.StatusBadRequest, w.Code, q)
	}
}

func (s *LogHandlerSuite) TestServiceErrorIsMapped() {
	s.service.EXPECT().Query(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "failed to query audit logs"))
	s.Equal(http.StatusInternalServerError, s.get("/logs?password=s3cret").Code)
}
