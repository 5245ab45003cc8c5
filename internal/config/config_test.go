// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.ListenAddr != "127.0.0.1:8600" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:8600", cfg.Server.ListenAddr)
	}
	if cfg.Auth.FailureDelayMS != 100 {
		t.Errorf("FailureDelayMS = %d, want 100", cfg.Auth.FailureDelayMS)
	}
	if cfg.Auth.CookieTTLHours != 8 {
		t.Errorf("CookieTTLHours = %d, want 8", cfg.Auth.CookieTTLHours)
	}
	if cfg.Idle.TimeoutMinutes != 30 {
		t.Errorf("TimeoutMinutes = %d, want 30", cfg.Idle.TimeoutMinutes)
	}
	if cfg.Idle.WarningMinutes != 5 {
		t.Errorf("WarningMinutes = %d, want 5", cfg.Idle.WarningMinutes)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestDefault_MissingCredentialsAreValid(t *testing.T) {
	// A partially configured server must still pass validation; login
	// attempts fail per-request instead.
	cfg := Default()
	if cfg.Auth.Username != "" || cfg.Auth.Password != "" {
		t.Fatal("defaults should not include credentials")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadFromPath_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[auth]
username = "admin"
password = "hunter2"
token_secret = "file-secret"
failure_delay_ms = 250

[server]
listen_addr = "0.0.0.0:9000"
production = true

[idle]
timeout_minutes = 20
warning_minutes = 3
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Auth.Username != "admin" {
		t.Errorf("Username = %q, want admin", cfg.Auth.Username)
	}
	if cfg.Auth.FailureDelayMS != 250 {
		t.Errorf("FailureDelayMS = %d, want 250", cfg.Auth.FailureDelayMS)
	}
	if !cfg.Server.Production {
		t.Error("Production = false, want true")
	}
	if cfg.Idle.TimeoutMinutes != 20 {
		t.Errorf("TimeoutMinutes = %d, want 20", cfg.Idle.TimeoutMinutes)
	}

	// Unset fields fall back to defaults.
	if cfg.Auth.CookieTTLHours != 8 {
		t.Errorf("CookieTTLHours = %d, want default 8", cfg.Auth.CookieTTLHours)
	}
	if cfg.Server.LoginRateBurst != 5 {
		t.Errorf("LoginRateBurst = %d, want default 5", cfg.Server.LoginRateBurst)
	}
}

func TestLoadFromPath_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{"auth": {"username": "admin", "password": "hunter2"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Auth.Username != "admin" {
		t.Errorf("Username = %q, want admin", cfg.Auth.Username)
	}
}

func TestLoadFromPath_FixesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("version = \"1.0.0\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DASHGATE_USERNAME", "env-user")
	t.Setenv("DASHGATE_PASSWORD", "env-pass")
	t.Setenv("DASHGATE_TOKEN_SECRET", "env-secret")
	t.Setenv("DASHGATE_PRODUCTION", "true")
	t.Setenv("DASHGATE_LISTEN", "127.0.0.1:7777")
	t.Setenv("DASHGATE_JOURNAL_PATH", "/tmp/j.db")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Auth.Username != "env-user" {
		t.Errorf("Username = %q, want env-user", cfg.Auth.Username)
	}
	if cfg.Auth.Password != "env-pass" {
		t.Errorf("Password = %q, want env-pass", cfg.Auth.Password)
	}
	if cfg.Auth.TokenSecret != "env-secret" {
		t.Errorf("TokenSecret = %q, want env-secret", cfg.Auth.TokenSecret)
	}
	if !cfg.Server.Production {
		t.Error("Production = false, want true")
	}
	if cfg.Server.ListenAddr != "127.0.0.1:7777" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:7777", cfg.Server.ListenAddr)
	}
	if cfg.Journal.Path != "/tmp/j.db" {
		t.Errorf("Journal.Path = %q, want /tmp/j.db", cfg.Journal.Path)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad listen addr", func(c *Config) { c.Server.ListenAddr = "not-an-addr" }, "server.listen_addr"},
		{"negative delay", func(c *Config) { c.Auth.FailureDelayMS = -1 }, "auth.failure_delay_ms"},
		{"cookie ttl too long", func(c *Config) { c.Auth.CookieTTLHours = 48 }, "auth.cookie_ttl_hours"},
		{"negative idle timeout", func(c *Config) { c.Idle.TimeoutMinutes = -5 }, "idle.timeout_minutes"},
		{"warning >= timeout", func(c *Config) { c.Idle.WarningMinutes = 30 }, "idle.warning_minutes"},
		{"zero rate burst", func(c *Config) { c.Server.LoginRateBurst = -1 }, "server.login_rate_burst"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("Validate() = %v, want mention of %s", err, tc.field)
			}
		})
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "super-secret-password"
	cfg.Auth.TokenSecret = "super-secret-key"

	s := cfg.String()
	if strings.Contains(s, "super-secret-password") {
		t.Error("String() leaked the password")
	}
	if strings.Contains(s, "super-secret-key") {
		t.Error("String() leaked the token secret")
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() missing redaction marker")
	}
	if !strings.Contains(s, "admin") {
		t.Error("String() should keep non-secret fields")
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "hunter2"
	cfg.Server.ListenAddr = "127.0.0.1:9999"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("saved config permissions = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Auth.Username != "admin" || loaded.Auth.Password != "hunter2" {
		t.Error("round-trip lost credentials")
	}
	if loaded.Server.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:9999", loaded.Server.ListenAddr)
	}
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and
// ReloadGlobal() can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()
	SetGlobal(Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
