package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "./credentials/owner_oauth.json", cfg.CredentialsPath)
	assert.Equal(t, "./tokens/owner_token.json", cfg.TokenPath)
	assert.Equal(t, "./public", cfg.PublicDir)
	assert.True(t, cfg.OpenBrowser)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "drivetransfer.toml", `
addr = ":8080"
base_url = "http://127.0.0.1:8080"
token = "/var/lib/drivetransfer/token.json"
debug = true

[metrics]
enabled = true
addr = ":9191"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.BaseURL)
	assert.Equal(t, "/var/lib/drivetransfer/token.json", cfg.TokenPath)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
	// Unset keys keep their defaults.
	assert.Equal(t, "./credentials/owner_oauth.json", cfg.CredentialsPath)
}

func TestLoad_UnknownKeys(t *testing.T) {
	path := writeFile(t, "drivetransfer.toml", `
adress = ":8080"

[metrics]
enable = true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys: adress, metrics.enable")
}

func TestLoad_Malformed(t *testing.T) {
	path := writeFile(t, "drivetransfer.toml", `addr = `)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"DRIVETRANSFER_ADDR":            ":4000",
		"DRIVETRANSFER_BASE_URL":        "https://drive.example.com",
		"DRIVETRANSFER_CREDENTIALS":     "/etc/drivetransfer/client.json",
		"DRIVETRANSFER_TOKEN":           "/tmp/token.json",
		"DRIVETRANSFER_PUBLIC_DIR":      "/srv/public",
		"DRIVETRANSFER_DEBUG":           "true",
		"DRIVETRANSFER_LOG_FORMAT":      "json",
		"DRIVETRANSFER_OPEN_BROWSER":    "0",
		"DRIVETRANSFER_METRICS_ENABLED": "1",
		"DRIVETRANSFER_METRICS_ADDR":    ":9999",
	}))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Addr:            ":4000",
		BaseURL:         "https://drive.example.com",
		CredentialsPath: "/etc/drivetransfer/client.json",
		TokenPath:       "/tmp/token.json",
		PublicDir:       "/srv/public",
		Debug:           true,
		LogFormat:       LogFormatJSON,
		OpenBrowser:     false,
		Metrics:         MetricsConfig{Enabled: true, Addr: ":9999"},
	}, cfg)
}

func TestApplyEnv_Unset(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookupFrom(nil)))
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(lookupFrom(map[string]string{"DRIVETRANSFER_DEBUG": "maybe"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DRIVETRANSFER_DEBUG")
}

func TestEnvConfigPath(t *testing.T) {
	assert.Equal(t, "", EnvConfigPath(lookupFrom(nil)))
	assert.Equal(t, "/etc/dt.toml", EnvConfigPath(lookupFrom(map[string]string{"DRIVETRANSFER_CONFIG": "/etc/dt.toml"})))
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "DRIVETRANSFER_TEST_DOTENV=from-file\nDRIVETRANSFER_TEST_PRESET=from-file\n")
	t.Setenv("DRIVETRANSFER_TEST_PRESET", "from-env")
	// Registers cleanup for a variable the file will set.
	t.Setenv("DRIVETRANSFER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DRIVETRANSFER_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("DRIVETRANSFER_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("DRIVETRANSFER_TEST_PRESET"), "existing variables win")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestRedirectURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:3000/oauth", cfg.RedirectURL())

	cfg.BaseURL = "https://drive.example.com/"
	assert.Equal(t, "https://drive.example.com/oauth", cfg.RedirectURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "https base URL",
			mutate: func(c *Config) { c.BaseURL = "https://drive.example.com" },
		},
		{
			name:   "IPv6 loopback",
			mutate: func(c *Config) { c.BaseURL = "http://[::1]:3000" },
		},
		{
			name:    "empty credentials",
			mutate:  func(c *Config) { c.CredentialsPath = "" },
			wantErr: "credentials path must not be empty",
		},
		{
			name:    "empty token",
			mutate:  func(c *Config) { c.TokenPath = "" },
			wantErr: "token path must not be empty",
		},
		{
			name:    "empty addr",
			mutate:  func(c *Config) { c.Addr = "" },
			wantErr: "addr must not be empty",
		},
		{
			name:    "plain http off loopback",
			mutate:  func(c *Config) { c.BaseURL = "http://drive.example.com" },
			wantErr: "must use HTTPS",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.BaseURL = "ftp://localhost" },
			wantErr: "invalid base URL scheme",
		},
		{
			name:    "unparsable base URL",
			mutate:  func(c *Config) { c.BaseURL = "http://local host:%zz" },
			wantErr: "invalid base URL",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.BaseURL = "localhost:3000" },
			wantErr: "invalid base URL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "log_format",
		},
		{
			name: "metrics without addr",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = ""
			},
			wantErr: "metrics addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
