// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for docchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: API base URL, timeouts and session cookie file
//   - UIConfig: Theme and typewriter reveal pacing
//   - LogConfig: Rotating log file settings
//   - Watcher: Reloads the config file when it changes
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DOCCHAT_*)
//   - .env in the working directory, then ~/.docchat/.env
//   - ~/.docchat/config.toml
//   - ~/.docchat/config.json
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
// Access values with dot notation:
//
//	theme, _ := cfg.Get("ui.theme")
//	_ = cfg.Set("backend.base_url", "http://localhost:9000")
//
// Reload on change:
//
//	w, err := config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
//	defer w.Close()
package config
