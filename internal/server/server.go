package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/drivetransfer/internal/logging"
)

const (
	// DefaultAddr is the default listen address of the application server.
	DefaultAddr = ":3000"

	defaultReadHeaderTimeout = 10 * time.Second
	// Transfers make several sequential Drive calls.
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
)

// HTTPServer runs the application handler.
type HTTPServer struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewHTTPServer creates a server for handler on addr.
func NewHTTPServer(addr string, handler http.Handler, logger *slog.Logger) *HTTPServer {
	if addr == "" {
		addr = DefaultAddr
	}
	return newHTTPServer(addr, handler, logger, "http", defaultWriteTimeout)
}

func newHTTPServer(addr string, handler http.Handler, logger *slog.Logger, component string, writeTimeout time.Duration) *HTTPServer {
	if logger == nil {
		logger = logging.Discard()
	}

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       defaultIdleTimeout,
		},
		logger: logging.WithComponent(logger, component),
	}
}

// Listen binds the configured address.
func (s *HTTPServer) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.httpServer.Addr)
}

// Serve accepts connections on l until Shutdown. A clean shutdown returns nil.
func (s *HTTPServer) Serve(l net.Listener) error {
	s.logger.Info("serving", slog.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.httpServer.Addr
}
