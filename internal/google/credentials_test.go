package google

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const installedCredentials = `{
  "installed": {
    "client_id": "123.apps.googleusercontent.com",
    "client_secret": "shh",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost:3000/oauth", "http://localhost"]
  }
}`

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantErr      bool
		wantRedirect string
	}{
		{
			name:         "installed application",
			data:         installedCredentials,
			wantRedirect: "http://localhost:3000/oauth",
		},
		{
			name: "web application",
			data: `{"web":{"client_id":"web-id","client_secret":"web-secret",
				"auth_uri":"https://accounts.google.com/o/oauth2/auth",
				"token_uri":"https://oauth2.googleapis.com/token",
				"redirect_uris":["http://127.0.0.1:3000/oauth"]}}`,
			wantRedirect: "http://127.0.0.1:3000/oauth",
		},
		{
			name:    "no application block",
			data:    `{"other":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `client_id=abc`,
			wantErr: true,
		},
		{
			name:    "empty client id",
			data:    `{"installed":{"client_id":"","client_secret":"s","redirect_uris":["http://localhost"]}}`,
			wantErr: true,
		},
		{
			name:    "empty client secret",
			data:    `{"installed":{"client_id":"id","client_secret":"","redirect_uris":["http://localhost"]}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := ParseCredentials([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCredentials), "error should wrap ErrInvalidCredentials: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRedirect, conf.RedirectURL)
			assert.Equal(t, DefaultOAuthScopes, conf.Scopes)
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "owner_oauth.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		_, err := LoadCredentials(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "owner_oauth.json")
		require.NoError(t, os.WriteFile(path, []byte(installedCredentials), 0o600))

		conf, err := LoadCredentials(path)
		require.NoError(t, err)
		assert.Equal(t, "123.apps.googleusercontent.com", conf.ClientID)
		assert.Equal(t, "shh", conf.ClientSecret)
		assert.Equal(t, "https://oauth2.googleapis.com/token", conf.Endpoint.TokenURL)
	})
}

func TestAuthCodeURL(t *testing.T) {
	conf, err := ParseCredentials([]byte(installedCredentials))
	require.NoError(t, err)

	u, err := url.Parse(AuthCodeURL(conf))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "select_account consent", q.Get("prompt"))
	assert.Equal(t, "https://www.googleapis.com/auth/drive", q.Get("scope"))
	assert.Equal(t, "123.apps.googleusercontent.com", q.Get("client_id"))
	assert.Equal(t, "http://localhost:3000/oauth", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
}
