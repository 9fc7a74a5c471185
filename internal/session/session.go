package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/drivetransfer/internal/drive"
	"github.com/teemow/drivetransfer/internal/google"
	"github.com/teemow/drivetransfer/internal/instrumentation"
	"github.com/teemow/drivetransfer/internal/logging"
)

var (
	// ErrAuthentication wraps failures of the authorization code exchange.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMissingCode is returned when no authorization code was supplied.
	ErrMissingCode = errors.New("authorization code is required")

	// ErrNotInitialized is returned when the session is used before Initialize.
	ErrNotInitialized = errors.New("session is not initialized")
)

// Config configures a Session.
type Config struct {
	// CredentialsPath is the Google client-secret JSON file.
	CredentialsPath string

	// TokenPath is where the OAuth2 token is persisted.
	TokenPath string

	// RedirectURL overrides the redirect URI from the credentials file.
	RedirectURL string

	// DriveOptions are appended to every Drive client the session builds.
	DriveOptions []option.ClientOption

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// User is a snapshot of who is signed in.
type User struct {
	Authenticated bool
	// Email is empty when nobody is signed in or it could not be resolved.
	Email string
}

// Session is the process-wide authentication state.
type Session struct {
	credentialsPath string
	redirectURL     string
	store           *google.TokenStore
	driveOpts       []option.ClientOption
	logger          *slog.Logger
	metrics         *instrumentation.Metrics

	mu            sync.RWMutex
	baseCtx       context.Context
	conf          *oauth2.Config
	token         *oauth2.Token
	authenticated bool
	email         string
	client        *drive.Client
}

// New creates a Session. Call Initialize before using it.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &Session{
		credentialsPath: cfg.CredentialsPath,
		redirectURL:     cfg.RedirectURL,
		store:           google.NewTokenStore(cfg.TokenPath),
		driveOpts:       cfg.DriveOptions,
		logger:          logging.WithComponent(logger, "session"),
		metrics:         metrics,
	}
}

// Initialize loads the credentials and restores a persisted token.
//
// A credentials error is returned and should be treated as fatal. A missing
// or unreadable token leaves the session signed out. ctx is also used, with
// its cancellation removed, for later token refreshes.
func (s *Session) Initialize(ctx context.Context) error {
	conf, err := google.LoadCredentials(s.credentialsPath)
	if err != nil {
		return err
	}
	if s.redirectURL != "" {
		conf.RedirectURL = s.redirectURL
	}

	s.mu.Lock()
	s.baseCtx = context.WithoutCancel(ctx)
	s.conf = conf
	s.mu.Unlock()

	tok, err := s.store.Load()
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unreadable token file",
			slog.String("path", s.store.Path()),
			logging.Err(err))
		return nil
	}
	if tok == nil {
		s.logger.InfoContext(ctx, "no saved token, sign-in required")
		return nil
	}

	client, err := s.newDriveClient(tok)
	if err != nil {
		return err
	}

	email := ""
	if user, err := client.AboutUser(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to resolve account email for saved token", logging.Err(err))
	} else {
		email = user.EmailAddress
	}

	s.commit(ctx, tok, client, email)
	s.logger.InfoContext(ctx, "restored saved token", logging.UserHash(email))
	return nil
}

// AuthorizationURL returns the Google consent page URL.
func (s *Session) AuthorizationURL() (string, error) {
	s.mu.RLock()
	conf := s.conf
	s.mu.RUnlock()

	if conf == nil {
		return "", ErrNotInitialized
	}
	return google.AuthCodeURL(conf), nil
}

// CompleteAuthorization exchanges code for a token, persists it and resolves
// the account email. On any failure the session is left as it was.
func (s *Session) CompleteAuthorization(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrMissingCode
	}

	s.mu.RLock()
	conf, baseCtx := s.conf, s.baseCtx
	s.mu.RUnlock()
	if conf == nil {
		return "", ErrNotInitialized
	}

	// The oauth2 package reads its HTTP client from the context; keep the
	// one Initialize saw.
	tok, err := conf.Exchange(mergeHTTPClient(ctx, baseCtx), code)
	if err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.logger.WarnContext(ctx, "authorization code exchange failed", logging.Err(err))
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	client, err := s.newDriveClient(tok)
	if err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	user, err := client.AboutUser(ctx)
	if err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.logger.WarnContext(ctx, "failed to resolve account email", logging.Err(err))
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	if err := s.store.Save(tok); err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	s.commit(ctx, tok, client, user.EmailAddress)
	s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	s.logger.InfoContext(ctx, "authorization completed",
		logging.UserHash(user.EmailAddress),
		logging.Status(logging.StatusSuccess))

	return user.EmailAddress, nil
}

// Reset signs out: the token file is removed and the in-memory state cleared.
// Signing out while signed out succeeds.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.store.Delete(); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete token file", logging.Err(err))
		return err
	}

	s.mu.Lock()
	wasAuthenticated := s.authenticated
	s.token = nil
	s.client = nil
	s.email = ""
	s.authenticated = false
	s.mu.Unlock()

	if wasAuthenticated {
		s.metrics.SessionEnded(ctx)
	}
	s.logger.InfoContext(ctx, "signed out")
	return nil
}

// CurrentUser returns a snapshot of the authentication state.
func (s *Session) CurrentUser() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return User{Authenticated: s.authenticated, Email: s.email}
}

// DriveClient returns the Drive client of the signed-in account.
func (s *Session) DriveClient() (*drive.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated || s.client == nil {
		return nil, drive.ErrNotAuthenticated
	}
	return s.client, nil
}

// AccountEmail returns the signed-in account's email, or "".
func (s *Session) AccountEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

func (s *Session) commit(ctx context.Context, tok *oauth2.Token, client *drive.Client, email string) {
	s.mu.Lock()
	wasAuthenticated := s.authenticated
	s.token = tok
	s.client = client
	s.email = email
	s.authenticated = true
	s.mu.Unlock()

	if !wasAuthenticated {
		s.metrics.SessionStarted(ctx)
	}
}

// newDriveClient builds a Drive client whose token source refreshes tok and
// persists refreshed tokens.
func (s *Session) newDriveClient(tok *oauth2.Token) (*drive.Client, error) {
	s.mu.RLock()
	conf, baseCtx := s.conf, s.baseCtx
	s.mu.RUnlock()

	base := &refreshRecorder{
		base:    conf.TokenSource(baseCtx, tok),
		ctx:     baseCtx,
		metrics: s.metrics,
		last:    tok.AccessToken,
	}
	ts := google.NewPersistingTokenSource(base, s.store, tok, func(err error) {
		s.logger.Warn("failed to persist refreshed token", logging.Err(err))
	})

	client, err := drive.NewClient(baseCtx, oauth2.NewClient(baseCtx, ts), s.driveOpts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// mergeHTTPClient carries the oauth2.HTTPClient value from base into ctx
// when ctx does not set one.
func mergeHTTPClient(ctx, base context.Context) context.Context {
	if base == nil || ctx.Value(oauth2.HTTPClient) != nil {
		return ctx
	}
	if hc := base.Value(oauth2.HTTPClient); hc != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return ctx
}

// refreshRecorder counts token refreshes.
type refreshRecorder struct {
	base    oauth2.TokenSource
	ctx     context.Context
	metrics *instrumentation.Metrics

	mu   sync.Mutex
	last string
}

func (r *refreshRecorder) Token() (*oauth2.Token, error) {
	tok, err := r.base.Token()

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err != nil:
		r.metrics.RecordOAuthTokenRefresh(r.ctx, instrumentation.OAuthResultFailure)
	case tok.AccessToken != r.last:
		r.last = tok.AccessToken
		r.metrics.RecordOAuthTokenRefresh(r.ctx, instrumentation.OAuthResultSuccess)
	}
	return tok, err
}
