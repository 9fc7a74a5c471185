// Package config resolves drivetransfer's settings from defaults, an optional
// TOML file, the environment and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	// DefaultConfigPath is read when present; a missing file is not an error.
	DefaultConfigPath = "drivetransfer.toml"

	// DefaultDotEnvPath seeds the environment when present.
	DefaultDotEnvPath = ".env"

	// EnvPrefix prefixes every environment variable the package reads.
	EnvPrefix = "DRIVETRANSFER_"

	// OAuthCallbackPath is where Google redirects after consent.
	OAuthCallbackPath = "/oauth"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the resolved settings.
type Config struct {
	// Addr is the listen address of the application server.
	Addr string `toml:"addr"`

	// BaseURL is the address the browser uses to reach the server. The OAuth
	// redirect URI is derived from it.
	BaseURL string `toml:"base_url"`

	CredentialsPath string `toml:"credentials"`
	TokenPath       string `toml:"token"`
	PublicDir       string `toml:"public_dir"`

	Debug     bool   `toml:"debug"`
	LogFormat string `toml:"log_format"`

	// OpenBrowser launches the default browser at BaseURL once serving.
	OpenBrowser bool `toml:"open_browser"`

	Metrics MetricsConfig `toml:"metrics"`
}

// MetricsConfig configures the separate Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:            ":3000",
		BaseURL:         "http://localhost:3000",
		CredentialsPath: "./credentials/owner_oauth.json",
		TokenPath:       "./tokens/owner_token.json",
		PublicDir:       "./public",
		LogFormat:       LogFormatText,
		OpenBrowser:     true,
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// LoadDotEnv exports the variables of the .env file at path that are not
// already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the DRIVETRANSFER_* variables that are set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	strs := map[string]*string{
		"ADDR":         &c.Addr,
		"BASE_URL":     &c.BaseURL,
		"CREDENTIALS":  &c.CredentialsPath,
		"TOKEN":        &c.TokenPath,
		"PUBLIC_DIR":   &c.PublicDir,
		"LOG_FORMAT":   &c.LogFormat,
		"METRICS_ADDR": &c.Metrics.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DEBUG":           &c.Debug,
		"OPEN_BROWSER":    &c.OpenBrowser,
		"METRICS_ENABLED": &c.Metrics.Enabled,
	}
	for name, dst := range bools {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err)
		}
		*dst = b
	}

	return nil
}

// EnvConfigPath returns DRIVETRANSFER_CONFIG, or "".
func EnvConfigPath(lookup LookupFunc) string {
	v, _ := lookup(EnvPrefix + "CONFIG")
	return v
}

// RedirectURL is the OAuth redirect URI for BaseURL.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + OAuthCallbackPath
}

// Validate checks the resolved settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.CredentialsPath == "" {
		errs = append(errs, errors.New("credentials path must not be empty"))
	}
	if c.TokenPath == "" {
		errs = append(errs, errors.New("token path must not be empty"))
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log_format must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics addr must not be empty when metrics are enabled"))
	}
	if err := validateBaseURL(c.BaseURL); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateBaseURL allows plain HTTP only for loopback hosts.
func validateBaseURL(baseURL string) error {
	if baseURL == "" {
		return errors.New("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("base URL %s must use HTTPS unless it points at localhost", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid base URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}
}
