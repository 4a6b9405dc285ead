package logaccess

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequirePassword(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name     string
		expected string
		url      string
		want     int
	}{
		{"correct", "s3cret", "/logs?password=s3cret", http.StatusOK},
		{"wrong", "s3cret", "/logs?password=guess", http.StatusUnauthorized},
		{"missing", "s3cret", "/logs", http.StatusUnauthorized},
		{"prefix", "s3cret", "/logs?password=s3c", http.StatusUnauthorized},
		{"unconfigured", "", "/logs?password=", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RequirePassword(tc.expected, logger)(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized","error_description":"invalid password"}`, rr.Body.String())
			}
		})
	}
}
