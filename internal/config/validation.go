package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// bcrypt hash prefixes recognized in admin_pass.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// AdminPassIsHash reports whether admin_pass holds a bcrypt hash rather
// than a plaintext secret.
func (c *Config) AdminPassIsHash() bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(c.AdminPass, p) {
			return true
		}
	}
	return false
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	// Admin credentials are required: without them every admin endpoint
	// would be permanently unreachable.
	if c.AdminUser == "" {
		return fmt.Errorf("%w: set ADMIN_USER or admin_user in config.yaml", ErrMissingAdminUser)
	}
	if c.AdminPass == "" {
		return fmt.Errorf("%w: set ADMIN_PASS or admin_pass in config.yaml", ErrMissingAdminPass)
	}
	if !c.AdminPassIsHash() && len(c.AdminPass) < 8 {
		return fmt.Errorf("%w: plaintext admin_pass must be at least 8 characters (got %d)",
			ErrMissingAdminPass, len(c.AdminPass))
	}

	// Cookie secret signs the admin session cookie; a short secret makes
	// the signature brute-forceable.
	if c.CookieSecret == "" {
		return fmt.Errorf("%w: set COOKIE_SECRET or cookie_secret in config.yaml", ErrMissingCookieSecret)
	}
	if len(c.CookieSecret) < MinCookieSecretLen {
		return fmt.Errorf("%w: must be at least %d bytes (got %d)",
			ErrInvalidCookieSecret, MinCookieSecretLen, len(c.CookieSecret))
	}

	// History policy
	if c.HistoryCap < 2 || c.HistoryCap > 1000 {
		return fmt.Errorf("%w: must be between 2 and 1000, got %d", ErrInvalidHistoryCap, c.HistoryCap)
	}
	if c.HistoryTTL <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidHistoryTTL, c.HistoryTTL)
	}
	if c.ContextTurns < 2 || c.ContextTurns > 1000 {
		return fmt.Errorf("%w: must be between 2 and 1000, got %d", ErrInvalidContextTurns, c.ContextTurns)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "chatpad_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	// Modern SSL modes only; allow/prefer are MITM-vulnerable.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: must be one of %v, got %q",
			ErrInvalidPostgresSSLMode, validSSLModes, c.PostgresSSLMode)
	}

	return nil
}
