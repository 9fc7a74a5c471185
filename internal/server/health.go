package server

import (
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves liveness and readiness probes.
//
// A new checker is not ready. The command marks it ready once every listener
// is bound and flips it back when shutdown begins, so a local supervisor can
// tell a starting or draining process from a serving one.
type HealthChecker struct {
	ready        atomic.Bool
	shuttingDown atomic.Bool
	auth         Authenticator
	startTime    time.Time
}

// NewHealthChecker creates a HealthChecker. auth may be nil.
func NewHealthChecker(auth Authenticator) *HealthChecker {
	return &HealthChecker{auth: auth, startTime: time.Now()}
}

// MarkReady reports the server as able to take requests.
func (h *HealthChecker) MarkReady() {
	h.ready.Store(true)
}

// BeginShutdown marks the server as draining; readiness fails from now on.
func (h *HealthChecker) BeginShutdown() {
	h.shuttingDown.Store(true)
}

// HealthResponse is the body of the liveness and readiness probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and sign-in state.
type DetailedHealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Authenticated bool   `json:"authenticated"`
}

// checks evaluates readiness. The overall status is the first failing check.
func (h *HealthChecker) checks() (string, map[string]string) {
	checks := map[string]string{"ready": healthStatusOK, "shutdown": healthStatusOK}
	status := healthStatusOK

	if h.shuttingDown.Load() {
		checks["shutdown"] = healthStatusShuttingDown
		status = healthStatusShuttingDown
	}
	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
		status = healthStatusNotReady
	}
	return status, checks
}

func statusCode(status string) int {
	if status == healthStatusOK {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// LivenessHandler answers /healthz. It succeeds whenever the process can
// serve HTTP at all.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers /readyz.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.checks()
		if status != healthStatusOK {
			// Readiness reports a single "not ready" for any failing check.
			status = healthStatusNotReady
		}
		writeJSON(w, statusCode(status), HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler answers /healthz/detailed.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, _ := h.checks()
		response := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.auth != nil {
			response.Authenticated = h.auth.CurrentUser().Authenticated
		}
		writeJSON(w, statusCode(status), response)
	})
}

// RegisterHealthEndpoints registers the probe routes on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}
