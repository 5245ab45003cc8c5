// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// dashgate.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - AuthConfig: Reference credentials and token signing settings
//   - ServerConfig: HTTP listener and transport settings
//   - IdleConfig: Idle-timeout monitor settings
//   - JournalConfig: Login-attempt journal settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DASHGATE_*)
//   - ~/.dashgate/config.toml
//   - ~/.dashgate/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	addr := cfg.Server.ListenAddr
//	delay := cfg.FailureDelay()
package config
