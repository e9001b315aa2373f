package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INCIDENTDESK_DATABASE__URL", "postgres://localhost/incidentdesk")
	t.Setenv("INCIDENTDESK_JWT__SECRET_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/incidentdesk", cfg.Database.URL)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Operation)
	assert.Equal(t, 5, cfg.Incidents.RecentLimit)
	assert.Equal(t, "@every 1h", cfg.Notifications.Schedule)
	assert.False(t, cfg.Evidence.S3.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9000"
database:
  url: postgres://file/db
  max_open_conns: 7
jwt:
  secret_key: from-file
  token_duration: 2h
live:
  max_backoff: 1m
cors:
  allowed_origins:
    - https://a.example
    - https://b.example
`)
	t.Setenv("INCIDENTDESK_DATABASE__URL", "postgres://env/db")
	t.Setenv("INCIDENTDESK_IDENTITY__BOOTSTRAP_ADMINS", "root@example.com, ops@example.com")
	t.Setenv("INCIDENTDESK_TIMEOUTS__OPERATION", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL, "environment overrides the file")
	assert.Equal(t, 7, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns, "unset keys keep their defaults")
	assert.Equal(t, 2*time.Hour, cfg.JWT.TokenDuration)
	assert.Equal(t, time.Minute, cfg.Live.MaxBackoff)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Operation)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.Identity.BootstrapAdmins)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	path := writeFile(t, `
database:
  url: postgres://file/db
jwt:
  secret_key: s
log:
  level: debug
`)
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/db"
		cfg.JWT.SecretKey = "secret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"missing jwt secret", func(c *Config) { c.JWT.SecretKey = "" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"zero operation timeout", func(c *Config) { c.Timeouts.Operation = 0 }},
		{"backoff bounds inverted", func(c *Config) { c.Live.MaxBackoff = time.Millisecond }},
		{"bad bootstrap email", func(c *Config) { c.Identity.BootstrapAdmins = []string{"not-an-email"} }},
		{"s3 without bucket", func(c *Config) {
			c.Evidence.S3 = S3Config{Enabled: true, Region: "eu-central-1", PublicBaseURL: "https://cdn.example"}
		}},
		{"bad cron schedule", func(c *Config) { c.Notifications.Schedule = "every hour" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
