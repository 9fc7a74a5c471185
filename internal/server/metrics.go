package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/drivetransfer/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultShutdownTimeout bounds graceful shutdown of every server.
	DefaultShutdownTimeout = 30 * time.Second

	metricsWriteTimeout = 10 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the address to bind the metrics server to (e.g., ":9090").
	Addr string

	// InstrumentationProvider provides the Prometheus metrics handler.
	InstrumentationProvider *instrumentation.Provider

	Logger *slog.Logger
}

// MetricsServer serves Prometheus metrics on their own port, away from the
// browser-facing routes.
type MetricsServer struct {
	*HTTPServer
	handler http.Handler
}

// NewMetricsServer creates a metrics server. It requires an enabled provider
// using the prometheus exporter.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}

	if config.InstrumentationProvider == nil {
		return nil, errors.New("instrumentation provider is required for metrics server")
	}
	if !config.InstrumentationProvider.Enabled() {
		return nil, errors.New("instrumentation provider is not enabled")
	}

	handler := config.InstrumentationProvider.PrometheusHandler()
	if handler == nil {
		return nil, errors.New("prometheus exporter is not configured")
	}

	s := &MetricsServer{handler: handler}
	s.HTTPServer = newHTTPServer(config.Addr, s.Handler(), config.Logger, "metrics", metricsWriteTimeout)
	return s, nil
}

// Handler returns the metrics server's routes.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
