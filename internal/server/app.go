package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/teemow/drivetransfer/internal/drive"
	"github.com/teemow/drivetransfer/internal/instrumentation"
	"github.com/teemow/drivetransfer/internal/logging"
	"github.com/teemow/drivetransfer/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Authenticator is the sign-in state the API exposes.
type Authenticator interface {
	CurrentUser() session.User
	AuthorizationURL() (string, error)
	CompleteAuthorization(ctx context.Context, code string) (string, error)
	Reset(ctx context.Context) error
}

// Documents is the Drive functionality the API exposes.
type Documents interface {
	ListOwnDocuments(ctx context.Context, search string) ([]drive.FileSummary, error)
	TransferOwnership(ctx context.Context, fileID, receiverEmail string) (*drive.TransferResult, error)
}

// AppConfig wires an App.
type AppConfig struct {
	Auth      Authenticator
	Documents Documents

	// PublicDir holds the static front-end. Empty disables static serving.
	PublicDir string

	// Health adds /healthz, /readyz and /healthz/detailed when set.
	Health *HealthChecker

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// App is the HTTP surface of the application: the JSON API, the OAuth
// redirect page and the static front-end.
type App struct {
	auth      Authenticator
	documents Documents
	publicDir string
	health    *HealthChecker
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// NewApp creates an App.
func NewApp(cfg AppConfig) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &App{
		auth:      cfg.Auth,
		documents: cfg.Documents,
		publicDir: cfg.PublicDir,
		health:    cfg.Health,
		logger:    logging.WithComponent(logger, "http"),
		metrics:   metrics,
	}
}

// Handler returns the routed handler wrapped in the request middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/auth-status", a.handleAuthStatus)
	mux.HandleFunc("GET /api/auth-url", a.handleAuthURL)
	mux.HandleFunc("POST /api/oauth-callback", a.handleOAuthCallback)
	mux.HandleFunc("POST /api/reset-auth", a.handleResetAuth)
	mux.HandleFunc("GET /api/my-files", a.handleMyFiles)
	mux.HandleFunc("POST /api/transfer", a.handleTransfer)
	mux.HandleFunc("GET /oauth", a.handleOAuthRedirect)

	if a.health != nil {
		a.health.RegisterHealthEndpoints(mux)
	}
	if a.publicDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(a.publicDir)))
	}

	return requestID(a.observe(mux))
}
