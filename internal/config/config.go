// Package config loads application configuration from defaults, an optional
// YAML file and INCIDENTDESK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix prefixes every environment variable read by Load. A double
// underscore separates nesting levels: INCIDENTDESK_DATABASE__URL.
const EnvPrefix = "INCIDENTDESK_"

// ConfigFileEnv names the variable holding the config file path.
const ConfigFileEnv = EnvPrefix + "CONFIG"

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"cors.allowed_origins":       true,
	"live.origin_patterns":       true,
	"identity.bootstrap_admins": true,
}

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Timeouts      TimeoutsConfig      `koanf:"timeouts"`
	Live          LiveConfig          `koanf:"live"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Identity      IdentityConfig      `koanf:"identity"`
	Incidents     IncidentsConfig     `koanf:"incidents"`
	Evidence      EvidenceConfig      `koanf:"evidence"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"gt=0"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gt=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key" validate:"required"`
	Issuer        string        `koanf:"issuer"`
	TokenDuration time.Duration `koanf:"token_duration" validate:"gt=0"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig holds per-user write rate limits. A zero rate disables
// limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`
}

// TimeoutsConfig holds store operation deadlines.
type TimeoutsConfig struct {
	Operation time.Duration `koanf:"operation" validate:"gt=0"`
}

// LiveConfig holds live query settings.
type LiveConfig struct {
	OriginPatterns []string      `koanf:"origin_patterns"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"gt=0"`
	PingInterval   time.Duration `koanf:"ping_interval" validate:"gt=0"`
	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `koanf:"max_backoff" validate:"gtefield=InitialBackoff"`
}

// NotificationsConfig holds in-app notification settings.
type NotificationsConfig struct {
	Retention time.Duration `koanf:"retention" validate:"gt=0"`
	Schedule  string        `koanf:"schedule" validate:"required"`
}

// IdentityConfig holds identity settings.
type IdentityConfig struct {
	BootstrapAdmins []string `koanf:"bootstrap_admins" validate:"dive,email"`
}

// IncidentsConfig holds incident listing settings.
type IncidentsConfig struct {
	RecentLimit int `koanf:"recent_limit" validate:"gt=0"`
}

// EvidenceConfig selects how evidence URLs are checked. With S3 enabled, only
// objects stored in the configured bucket are accepted.
type EvidenceConfig struct {
	S3 S3Config `koanf:"s3"`
}

// S3Config holds object storage settings.
type S3Config struct {
	Enabled       bool   `koanf:"enabled"`
	Endpoint      string `koanf:"endpoint"`
	Region        string `koanf:"region" validate:"required_if=Enabled true"`
	Bucket        string `koanf:"bucket" validate:"required_if=Enabled true"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
	PublicBaseURL string `koanf:"public_base_url" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			Issuer:        "incidentdesk",
			TokenDuration: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             20,
		},
		Timeouts: TimeoutsConfig{
			Operation: 10 * time.Second,
		},
		Live: LiveConfig{
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
		Notifications: NotificationsConfig{
			Retention: 30 * 24 * time.Hour,
			Schedule:  "@every 1h",
		},
		Incidents: IncidentsConfig{
			RecentLimit: 5,
		},
	}
}

// Load reads configuration. path may be empty, in which case the file named
// by INCIDENTDESK_CONFIG is used if set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps INCIDENTDESK_LIVE__MAX_BACKOFF to live.max_backoff.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	if key == "CONFIG" {
		return "", nil
	}
	key = strings.ReplaceAll(strings.ToLower(key), "__", ".")

	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := cron.ParseStandard(c.Notifications.Schedule); err != nil {
		return fmt.Errorf("invalid config: notifications.schedule: %w", err)
	}
	return nil
}
