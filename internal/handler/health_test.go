package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		db     error
		status int
		body   string
	}{
		{"health", "/health", nil, http.StatusOK, `{"status":"ok","timestamp":"2024-05-01T12:00:00Z"}`},
		{"ready", "/ready", nil, http.StatusOK, `{"status":"ready","database":"connected","timestamp":"2024-05-01T12:00:00Z"}`},
		{"not ready", "/ready", errors.New("dial tcp: refused"), http.StatusServiceUnavailable, `{"status":"not ready","database":"disconnected","timestamp":"2024-05-01T12:00:00Z"}`},
		{"health ignores database", "/health", errors.New("down"), http.StatusOK, `{"status":"ok","timestamp":"2024-05-01T12:00:00Z"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(fakePinger{err: tc.db})
			h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

			e := echo.New()
			Mount(e, NewGate(&mockAuth{}), h.Routes())

			rec := serve(e, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}
