package google

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrInvalidCredentials is returned when the client-secret file is missing or malformed.
var ErrInvalidCredentials = errors.New("invalid OAuth credentials")

// LoadCredentials reads a client-secret JSON file and returns the OAuth2
// configuration for it. The redirect URL defaults to the first redirect URI
// listed in the file.
func LoadCredentials(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrInvalidCredentials, path, err)
	}

	conf, err := ParseCredentials(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

// ParseCredentials parses client-secret JSON content.
func ParseCredentials(data []byte) (*oauth2.Config, error) {
	conf, err := google.ConfigFromJSON(data, DefaultOAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if conf.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is empty", ErrInvalidCredentials)
	}
	if conf.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret is empty", ErrInvalidCredentials)
	}
	return conf, nil
}

// AuthCodeURL returns the consent page URL for conf, configured for offline
// access and forcing account selection and consent every time.
func AuthCodeURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL(authState,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", promptSelectAccountConsent),
	)
}
