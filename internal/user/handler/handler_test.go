package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	jwttoken "cityfix/internal/jwt_token"
	"cityfix/internal/user/service"
	"cityfix/internal/user/store"
	"cityfix/pkg/platform/events"
	authmw "cityfix/pkg/platform/middleware/auth"
)

type discardAudit struct{}

func (discardAudit) Record(context.Context, events.Audit) {}

// UserHandlerSuite drives the handler through the auth filter with a real
// service and in-memory store.
type UserHandlerSuite struct {
	suite.Suite
	router chi.Router
	store  *store.InMemory
}

func TestUserHandlerSuite(t *testing.T) {
	suite.Run(t, new(UserHandlerSuite))
}

func (s *UserHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService("test-signing-key", "cityfix")
	s.store = store.NewInMemory()
	svc := service.New(s.store, jwt, discardAudit{},
		service.WithLogger(logger),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithTokenTTL(time.Hour),
	)

	s.router = chi.NewRouter()
	s.router.Use(authmw.Authenticate(jwttoken.NewJWTServiceAdapter(jwt), authmw.DefaultCookieName, logger))
	New(svc, logger, CookieConfig{}).Register(s.router)
}

func (s *UserHandlerSuite) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *UserHandlerSuite) registerAndLogin() *http.Cookie {
	w := s.do(http.MethodPost, "/users/register",
		`{"username":"alice","email":"alice@example.com","password":"s3cret!","firstName":"Alice"}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/users/login", `{"username":"alice","password":"s3cret!"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	s.Require().Len(cookies, 1)
	return cookies[0]
}

func (s *UserHandlerSuite) TestLoginSetsHardenedCookie() {
	cookie := s.registerAndLogin()
	s.Equal(authmw.DefaultCookieName, cookie.Name)
	s.True(cookie.HttpOnly)
	s.Equal(http.SameSiteStrictMode, cookie.SameSite)
	s.Equal("/", cookie.Path)
	s.Equal(int(time.Hour.Seconds()), cookie.MaxAge)
}

func (s *UserHandlerSuite) TestLoginBodyOmitsToken() {
	s.registerAndLogin()
	w := s.do(http.MethodPost, "/users/login", `{"username":"alice","password":"s3cret!"}`)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.NotContains(body, "token")
	s.Equal("alice", body["username"])
}

func (s *UserHandlerSuite) TestLoginWrongPassword() {
	s.registerAndLogin()
	w := s.do(http.MethodPost, "/users/login", `{"username":"alice","password":"nope!!"}`)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Empty(w.Result().Cookies())
}

func (s *UserHandlerSuite) TestDuplicateRegistration() {
	s.registerAndLogin()
	w := s.do(http.MethodPost, "/users/register", `{"username":"alice","email":"new@example.com","password":"s3cret!"}`)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *UserHandlerSuite) TestRegisterValidation() {
	for name, body := range map[string]string{
		"short username": `{"username":"al","email":"a@example.com","password":"s3cret!"}`,
		"bad email":      `{"username":"alice","email":"not-an-email","password":"s3cret!"}`,
		"short password": `{"username":"alice","email":"a@example.com","password":"123"}`,
		"multibyte password over 72 bytes": `{"username":"alice","email":"a@example.com","password":"` + strings.Repeat("ж", 40) + `"}`,
	} {
		s.Run(name, func() {
			s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/users/register", body).Code)
		})
	}
}

func (s *UserHandlerSuite) TestMeRequiresIdentity() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/users/me", "").Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPut, "/users/me", `{"phone":"1"}`).Code)

	forged := &http.Cookie{Name: authmw.DefaultCookieName, Value: "not.a.jwt"}
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/users/me", "", forged).Code)
}

func (s *UserHandlerSuite) TestMeAndUpdate() {
	cookie := s.registerAndLogin()

	w := s.do(http.MethodGet, "/users/me", "", cookie)
	s.Require().Equal(http.StatusOK, w.Code)
	var me UserResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &me))
	s.Equal("alice@example.com", me.Email)

	w = s.do(http.MethodPut, "/users/me", `{"lastName":"Liddell","phone":"555"}`, cookie)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &me))
	s.Equal("Liddell", me.LastName)
	s.Equal("Alice", me.FirstName)
}

func (s *UserHandlerSuite) TestPublicProfile() {
	s.registerAndLogin()
	_, err := s.store.IncrementReportsCount(context.Background(), 1)
	s.Require().NoError(err)

	w := s.do(http.MethodGet, "/users/1", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.InDelta(1, body["reportsCount"], 0)
	s.NotContains(body, "email")

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/users/42", "").Code)
}

func (s *UserHandlerSuite) TestLogoutClearsCookie() {
	w := s.do(http.MethodPost, "/users/logout", "")
	s.Equal(http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(authmw.DefaultCookieName, cookies[0].Name)
	s.Less(cookies[0].MaxAge, 0)
	s.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func (s *UserHandlerSuite) TestHealth() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/users/health", "").Code)
}
