package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

const (
	// tokenFilePerms restricts the token file to owner-only read/write.
	tokenFilePerms = 0o600

	// tokenDirPerms is used when creating the token directory.
	tokenDirPerms = 0o700
)

// TokenStore persists a single OAuth2 token as JSON at a fixed path.
type TokenStore struct {
	path string
}

// NewTokenStore returns a store backed by the file at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads the saved token. It returns (nil, nil) when no token file exists.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // no token yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", s.path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", s.path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds neither an access nor a refresh token", s.path)
	}

	return &tok, nil
}

// Save writes tok atomically (temp file in the same directory, then rename).
func (s *TokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("token is required")
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, tokenDirPerms); err != nil {
		return fmt.Errorf("failed to create token directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, tokenFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to move token file into place: %w", err)
	}

	success = true
	return nil
}

// Delete removes the token file. A missing file is not an error.
func (s *TokenStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete token file %s: %w", s.path, err)
	}
	return nil
}

// PersistingTokenSource wraps a token source and saves every token whose
// access token differs from the last one seen, so refreshed tokens survive
// a restart.
type PersistingTokenSource struct {
	base  oauth2.TokenSource
	store *TokenStore

	mu         sync.Mutex
	lastAccess string
	onSaveErr  func(error)
}

// NewPersistingTokenSource returns a source that reads from base and writes
// changes to store. initial is the token already on disk, if any. onSaveErr
// is called when persisting fails; the token is still returned.
func NewPersistingTokenSource(base oauth2.TokenSource, store *TokenStore, initial *oauth2.Token, onSaveErr func(error)) *PersistingTokenSource {
	ts := &PersistingTokenSource{
		base:      base,
		store:     store,
		onSaveErr: onSaveErr,
	}
	if initial != nil {
		ts.lastAccess = initial.AccessToken
	}
	return ts
}

// Token implements oauth2.TokenSource.
func (ts *PersistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.base.Token()
	if err != nil {
		return nil, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if tok.AccessToken != ts.lastAccess {
		if err := ts.store.Save(tok); err != nil {
			if ts.onSaveErr != nil {
				ts.onSaveErr(err)
			}
		} else {
			ts.lastAccess = tok.AccessToken
		}
	}

	return tok, nil
}
