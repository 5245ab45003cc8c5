// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/dashgate/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete dashgate configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Auth holds the reference credentials and token signing settings.
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Server holds HTTP listener and transport settings.
	Server ServerConfig `toml:"server" json:"server"`

	// Idle holds the client idle-timeout monitor settings.
	Idle IdleConfig `toml:"idle" json:"idle"`

	// Journal holds the login-attempt journal settings.
	Journal JournalConfig `toml:"journal" json:"journal"`
}

// AuthConfig contains credential and token signing configuration.
type AuthConfig struct {
	// Username is the single reference username logins are checked against.
	// Empty means login is not configured; attempts fail with a 500.
	Username string `toml:"username" json:"username"`
	// Password is the reference password. Same semantics as Username.
	Password string `toml:"password" json:"password"`
	// TokenSecret keys the session token signatures. Empty falls back to a
	// built-in development secret with a loud startup warning.
	TokenSecret string `toml:"token_secret" json:"token_secret"`
	// FailureDelayMS is the fixed pause in milliseconds imposed on every
	// credential mismatch. Slows online guessing and masks comparison timing.
	FailureDelayMS int `toml:"failure_delay_ms" json:"failure_delay_ms"`
	// CookieTTLHours is the session cookie lifetime in hours.
	CookieTTLHours int `toml:"cookie_ttl_hours" json:"cookie_ttl_hours"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `toml:"listen_addr" json:"listen_addr"`
	// Production marks the deployment as production: session cookies carry
	// the Secure attribute and are only sent over HTTPS.
	Production bool `toml:"production" json:"production"`
	// LoginRateBurst is the per-IP burst allowance for login attempts.
	LoginRateBurst int `toml:"login_rate_burst" json:"login_rate_burst"`
	// LoginRatePerMinute is the per-IP sustained login attempt rate.
	LoginRatePerMinute int `toml:"login_rate_per_minute" json:"login_rate_per_minute"`
	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP handling for
	// requests arriving from private-range proxies.
	TrustProxyHeaders bool `toml:"trust_proxy_headers" json:"trust_proxy_headers"`
}

// IdleConfig contains idle-timeout monitor configuration.
type IdleConfig struct {
	// TimeoutMinutes is the inactivity deadline in minutes.
	TimeoutMinutes int `toml:"timeout_minutes" json:"timeout_minutes"`
	// WarningMinutes is the warning lead before the deadline, in minutes.
	// Zero disables the warning.
	WarningMinutes int `toml:"warning_minutes" json:"warning_minutes"`
}

// JournalConfig contains login-attempt journal configuration.
type JournalConfig struct {
	// Enabled controls whether login attempts are journaled.
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path is the journal database path (empty = ~/.dashgate/journal.db).
	Path string `toml:"path" json:"path"`
	// RetentionDays is how long journal records are kept before pruning.
	RetentionDays int `toml:"retention_days" json:"retention_days"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Auth: AuthConfig{
			Username:       "",
			Password:       "",
			TokenSecret:    "",
			FailureDelayMS: 100,
			CookieTTLHours: 8,
		},

		Server: ServerConfig{
			ListenAddr:         "127.0.0.1:8600",
			Production:         false,
			LoginRateBurst:     5,
			LoginRatePerMinute: 10,
			TrustProxyHeaders:  false,
		},

		Idle: IdleConfig{
			TimeoutMinutes: 30,
			WarningMinutes: 5,
		},

		Journal: JournalConfig{
			Enabled:       true,
			Path:          "",
			RetentionDays: 90,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the dashgate configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".dashgate"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// JournalPath returns the effective journal database path.
func (c *Config) JournalPath() (string, error) {
	if c.Journal.Path != "" {
		return c.Journal.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "journal.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) because they
// hold the reference password and token secret.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err // File doesn't exist or not accessible
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// DURATION ACCESSORS
// =============================================================================

// FailureDelay returns the login failure delay as a duration.
func (c *Config) FailureDelay() time.Duration {
	return time.Duration(c.Auth.FailureDelayMS) * time.Millisecond
}

// CookieTTL returns the session cookie lifetime as a duration.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.Auth.CookieTTLHours) * time.Hour
}

// IdleTimeout returns the idle deadline as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Idle.TimeoutMinutes) * time.Minute
}

// IdleWarning returns the warning lead as a duration.
func (c *Config) IdleWarning() time.Duration {
	return time.Duration(c.Idle.WarningMinutes) * time.Minute
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Defaults only (with any load error for informational purposes)
	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// finishLoad applies env overrides, defaults, and validation to a loaded
// config.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Log warning but don't fail - permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# dashgate configuration file\n")
	buf.WriteString("# Generated by dashgate - edit with care\n")
	buf.WriteString("\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
//
// Missing reference credentials and a missing token secret are NOT validation
// errors: a partially configured server must still start. Login attempts
// against it fail per-request, and the token codec falls back to its
// development secret with a warning.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Listen address must be host:port parseable.
	if c.Server.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.listen_addr",
				Message: fmt.Sprintf("invalid address %q: %v", c.Server.ListenAddr, err),
			})
		}
	}

	if c.Auth.FailureDelayMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "auth.failure_delay_ms",
			Message: "must be non-negative",
		})
	}

	if c.Auth.CookieTTLHours < 1 || c.Auth.CookieTTLHours > 24 {
		errs = append(errs, ValidationError{
			Field:   "auth.cookie_ttl_hours",
			Message: fmt.Sprintf("must be 1-24, got %d", c.Auth.CookieTTLHours),
		})
	}

	if c.Idle.TimeoutMinutes < 1 {
		errs = append(errs, ValidationError{
			Field:   "idle.timeout_minutes",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Idle.TimeoutMinutes),
		})
	}

	if c.Idle.WarningMinutes < 0 {
		errs = append(errs, ValidationError{
			Field:   "idle.warning_minutes",
			Message: "must be non-negative",
		})
	}

	if c.Idle.WarningMinutes >= c.Idle.TimeoutMinutes && c.Idle.WarningMinutes > 0 {
		errs = append(errs, ValidationError{
			Field:   "idle.warning_minutes",
			Message: fmt.Sprintf("must be less than timeout_minutes (%d), got %d", c.Idle.TimeoutMinutes, c.Idle.WarningMinutes),
		})
	}

	if c.Server.LoginRateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.login_rate_burst",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Server.LoginRateBurst),
		})
	}

	if c.Server.LoginRatePerMinute < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.login_rate_per_minute",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Server.LoginRatePerMinute),
		})
	}

	if c.Journal.RetentionDays < 1 {
		errs = append(errs, ValidationError{
			Field:   "journal.retention_days",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Journal.RetentionDays),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value
// configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.Auth.FailureDelayMS == 0 {
		c.Auth.FailureDelayMS = defaults.Auth.FailureDelayMS
	}
	if c.Auth.CookieTTLHours == 0 {
		c.Auth.CookieTTLHours = defaults.Auth.CookieTTLHours
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaults.Server.ListenAddr
	}
	if c.Server.LoginRateBurst == 0 {
		c.Server.LoginRateBurst = defaults.Server.LoginRateBurst
	}
	if c.Server.LoginRatePerMinute == 0 {
		c.Server.LoginRatePerMinute = defaults.Server.LoginRatePerMinute
	}

	if c.Idle.TimeoutMinutes == 0 {
		c.Idle.TimeoutMinutes = defaults.Idle.TimeoutMinutes
	}

	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = defaults.Journal.RetentionDays
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - DASHGATE_USERNAME: overrides auth.username
//   - DASHGATE_PASSWORD: overrides auth.password
//   - DASHGATE_TOKEN_SECRET: overrides auth.token_secret
//   - DASHGATE_PRODUCTION: set to "1" or "true" to enable production mode
//   - DASHGATE_LISTEN: overrides server.listen_addr
//   - DASHGATE_JOURNAL_PATH: overrides journal.path
func (c *Config) ApplyEnvOverrides() {
	if username := os.Getenv("DASHGATE_USERNAME"); username != "" {
		c.Auth.Username = username
	}

	if password := os.Getenv("DASHGATE_PASSWORD"); password != "" {
		c.Auth.Password = password
	}

	if secret := os.Getenv("DASHGATE_TOKEN_SECRET"); secret != "" {
		c.Auth.TokenSecret = secret
	}

	if production := os.Getenv("DASHGATE_PRODUCTION"); production != "" {
		c.Server.Production = production == "1" || strings.ToLower(production) == "true"
	}

	if listen := os.Getenv("DASHGATE_LISTEN"); listen != "" {
		c.Server.ListenAddr = listen
	}

	if path := os.Getenv("DASHGATE_JOURNAL_PATH"); path != "" {
		c.Journal.Path = path
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
// SECURITY: Redacts the reference password and token secret to prevent
// accidental exposure in logs, error messages, or debug output.
func (c *Config) String() string {
	safe := c.Clone()

	if safe.Auth.Password != "" {
		safe.Auth.Password = "[REDACTED]"
	}
	if safe.Auth.TokenSecret != "" {
		safe.Auth.TokenSecret = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
//
// Only the binaries use this; library packages take an explicit *Config or
// narrower values so tests never touch global state.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.ApplyEnvOverrides()
			cfg.SetDefaults()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
