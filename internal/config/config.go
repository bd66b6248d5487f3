// Package config provides server configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.chatpad/config.yaml or ./config.yaml)
//  3. Default values
//
// This is the deployment-level configuration: listen address, PostgreSQL
// connection, admin credentials, cookie signing secret, history retention.
// The admin-editable application record (model endpoint, persona, search
// keys) lives in the key-value store and is owned by internal/settings.
//
// Security: sensitive fields (passwords, secrets) are masked in MarshalJSON
// and never logged in the clear.
//
// Error handling: sentinel errors for errors.Is() checks, wrapped with
// context via fmt.Errorf("%w: ...").
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidListenAddr indicates the listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrMissingAdminUser indicates the admin username is not set.
	ErrMissingAdminUser = errors.New("missing admin user")

	// ErrMissingAdminPass indicates the admin password is not set.
	ErrMissingAdminPass = errors.New("missing admin password")

	// ErrMissingCookieSecret indicates the cookie signing secret is not set.
	ErrMissingCookieSecret = errors.New("missing cookie secret")

	// ErrInvalidCookieSecret indicates the cookie signing secret is too short.
	ErrInvalidCookieSecret = errors.New("invalid cookie secret")

	// ErrInvalidHistoryCap indicates history_cap is out of range.
	ErrInvalidHistoryCap = errors.New("invalid history cap")

	// ErrInvalidHistoryTTL indicates history_ttl is out of range.
	ErrInvalidHistoryTTL = errors.New("invalid history TTL")

	// ErrInvalidContextTurns indicates context_turns is out of range.
	ErrInvalidContextTurns = errors.New("invalid context turns")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultListenAddr is the default HTTP listen address.
	DefaultListenAddr = "127.0.0.1:8420"

	// DefaultHistoryCap is the maximum number of turns kept per session.
	// Oldest turns are evicted first.
	DefaultHistoryCap = 20

	// DefaultHistoryTTL is the retention window for session history.
	// Refreshed on every save.
	DefaultHistoryTTL = 7 * 24 * time.Hour

	// DefaultContextTurns bounds how many stored turns are sent upstream
	// per request, independent of the store cap.
	DefaultContextTurns = 20

	// MinCookieSecretLen is the minimum length for the cookie signing secret.
	MinCookieSecretLen = 32
)

// Config stores server configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, secrets), update MarshalJSON.
type Config struct {
	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Admin credentials for POST /api/login.
	// AdminPass may be either a plaintext secret or a bcrypt hash
	// (recognized by its $2a$/$2b$/$2y$ prefix).
	AdminUser string `mapstructure:"admin_user" json:"admin_user"`
	AdminPass string `mapstructure:"admin_pass" json:"admin_pass"` // SENSITIVE: masked in MarshalJSON

	// CookieSecret signs the admin session cookie (HMAC-SHA256).
	CookieSecret string `mapstructure:"cookie_secret" json:"cookie_secret"` // SENSITIVE: masked in MarshalJSON

	// Conversation history policy
	HistoryCap   int           `mapstructure:"history_cap" json:"history_cap"`
	HistoryTTL   time.Duration `mapstructure:"history_ttl" json:"history_ttl"`
	ContextTurns int           `mapstructure:"context_turns" json:"context_turns"`

	// Storage configuration (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".chatpad")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults plus env cover it.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("listen_addr", DefaultListenAddr)

	viper.SetDefault("history_cap", DefaultHistoryCap)
	viper.SetDefault("history_ttl", DefaultHistoryTTL)
	viper.SetDefault("context_turns", DefaultContextTurns)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "chatpad")
	viper.SetDefault("postgres_password", "chatpad_dev_password")
	viper.SetDefault("postgres_db_name", "chatpad")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets are env-only by convention; the rest may also live in the file.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("admin_user", "ADMIN_USER")
	mustBind("admin_pass", "ADMIN_PASS")
	mustBind("cookie_secret", "COOKIE_SECRET")
	mustBind("listen_addr", "CHATPAD_LISTEN_ADDR")
	mustBind("log_level", "CHATPAD_LOG_LEVEL")
	mustBind("log_json", "CHATPAD_LOG_JSON")

	// NOTE: DATABASE_URL is read directly in parseDatabaseURL, not via Viper.
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep
// the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked: AdminPass, CookieSecret, PostgresPassword.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.AdminPass = maskSecret(a.AdminPass)
	a.CookieSecret = maskSecret(a.CookieSecret)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// SlogLevel maps the configured log_level string to a slog.Level.
// Unknown values fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
