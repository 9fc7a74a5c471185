package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/drivetransfer/internal/session"
)

func serveHealth(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker(nil)
	h.BeginShutdown()

	code, body := serveHealth(t, h.LivenessHandler())

	assert.Equal(t, http.StatusOK, code, "liveness ignores readiness")
	assert.Equal(t, "ok", body["status"])
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name         string
		ready        bool
		shuttingDown bool
		wantCode     int
		wantStatus   string
		wantChecks   map[string]any
	}{
		{
			name:       "ready",
			ready:      true,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]any{"ready": "ok", "shutdown": "ok"},
		},
		{
			name:       "starting",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
			wantChecks: map[string]any{"ready": "not ready", "shutdown": "ok"},
		},
		{
			name:         "shutting down",
			ready:        true,
			shuttingDown: true,
			wantCode:     http.StatusServiceUnavailable,
			wantStatus:   "not ready",
			wantChecks:   map[string]any{"ready": "ok", "shutdown": "shutting down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(nil)
			if tt.ready {
				h.MarkReady()
			}
			if tt.shuttingDown {
				h.BeginShutdown()
			}

			code, body := serveHealth(t, h.ReadinessHandler())

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.wantChecks, body["checks"])
		})
	}
}

func TestDetailedHealthHandler(t *testing.T) {
	h := NewHealthChecker(&fakeAuth{user: session.User{Authenticated: true}})

	code, body := serveHealth(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body["status"])

	h.MarkReady()
	code, body = serveHealth(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["authenticated"])
	assert.NotEmpty(t, body["uptime"])

	h.BeginShutdown()
	code, body = serveHealth(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting down", body["status"])
}

func TestDetailedHealthHandler_NoAuth(t *testing.T) {
	h := NewHealthChecker(nil)
	h.MarkReady()

	code, body := serveHealth(t, h.DetailedHealthHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])
}
