// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for docchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.docchat/config.toml
//   - ~/.docchat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend API connection
	Backend BackendConfig `toml:"backend" json:"backend"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log file configuration
	Log LogConfig `toml:"log" json:"log"`
}

// BackendConfig contains the chat API connection settings.
type BackendConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`
	// ChatPath is the streaming chat endpoint relative to BaseURL
	ChatPath string `toml:"chat_path" json:"chat_path"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamConnectTimeoutSecs bounds the wait for chat response headers.
	// The answer body itself never times out.
	StreamConnectTimeoutSecs int `toml:"stream_connect_timeout_secs" json:"stream_connect_timeout_secs"`
	// ReadBufferSize is the size of each read from the answer body
	ReadBufferSize int `toml:"read_buffer_size" json:"read_buffer_size"`
	// CookieFile stores the login session (empty = ~/.docchat/cookies.json)
	CookieFile string `toml:"cookie_file" json:"cookie_file"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// RevealIntervalMs is the typewriter tick period
	RevealIntervalMs int `toml:"reveal_interval_ms" json:"reveal_interval_ms"`
	// RevealCharsPerTick is how many characters each tick reveals
	RevealCharsPerTick int `toml:"reveal_chars_per_tick" json:"reveal_chars_per_tick"`
	// RenderMarkdown renders finished answers with glamour
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
	// ShowSnippets prints citation snippets under answers in line mode
	ShowSnippets bool `toml:"show_snippets" json:"show_snippets"`
	// ShowDocuments shows the document strip in the TUI header
	ShowDocuments bool `toml:"show_documents" json:"show_documents"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Dir holds docchat.log (empty = ~/.docchat/logs)
	Dir string `toml:"dir" json:"dir"`
	// MaxSizeMB rotates the file past this size
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb"`
	// MaxBackups is how many rotated files to keep
	MaxBackups int `toml:"max_backups" json:"max_backups"`
	// MaxAgeDays deletes rotated files older than this
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			BaseURL:                  "http://localhost:8000",
			ChatPath:                 "/chat/",
			TimeoutSecs:              30,
			StreamConnectTimeoutSecs: 30,
			ReadBufferSize:           4096,
		},

		UI: UIConfig{
			Theme:              "auto",
			RevealIntervalMs:   15,
			RevealCharsPerTick: 1,
			RenderMarkdown:     true,
			ShowSnippets:       true,
			ShowDocuments:      true,
		},

		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Timeout returns the non-streaming request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// StreamConnectTimeout returns the chat header timeout.
func (b BackendConfig) StreamConnectTimeout() time.Duration {
	return time.Duration(b.StreamConnectTimeoutSecs) * time.Second
}

// RevealInterval returns the typewriter tick period.
func (u UIConfig) RevealInterval() time.Duration {
	return time.Duration(u.RevealIntervalMs) * time.Millisecond
}

// ZerologLevel parses Level, falling back to info.
func (l LogConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || l.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the docchat configuration directory path.
// DOCCHAT_HOME overrides the default ~/.docchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("DOCCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".docchat"), nil
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

// ActivePath returns the config file Load would read, or the TOML path if
// neither exists yet.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// CookiePath returns where the login session is stored.
func (c *Config) CookiePath() (string, error) {
	if c.Backend.CookieFile != "" {
		return expandHome(c.Backend.CookieFile)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cookies.json"), nil
}

// LogDir returns the log directory.
func (c *Config) LogDir() (string, error) {
	if c.Log.Dir != "" {
		return expandHome(c.Log.Dir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
//
// A file that fails to parse is reported alongside a usable default config.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		def, _ := finish(Default())
		return def, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrap(err, "failed to decode TOML file")
	}
	return fillDefaults(cfg)
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read JSON file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "failed to decode JSON file")
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load JSON config from %s", path)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load TOML config from %s", path)
		}
	}
	return finish(cfg)
}

// finish applies env overrides and validates.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Backend
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if cfg.Backend.ChatPath == "" {
		cfg.Backend.ChatPath = defaults.Backend.ChatPath
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if cfg.Backend.StreamConnectTimeoutSecs == 0 {
		cfg.Backend.StreamConnectTimeoutSecs = defaults.Backend.StreamConnectTimeoutSecs
	}
	if cfg.Backend.ReadBufferSize == 0 {
		cfg.Backend.ReadBufferSize = defaults.Backend.ReadBufferSize
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.RevealIntervalMs == 0 {
		cfg.UI.RevealIntervalMs = defaults.UI.RevealIntervalMs
	}
	if cfg.UI.RevealCharsPerTick == 0 {
		cfg.UI.RevealCharsPerTick = defaults.UI.RevealCharsPerTick
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = defaults.Log.MaxSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = defaults.Log.MaxAgeDays
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

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# docchat configuration file\n")
	buf.WriteString("# Environment variables (DOCCHAT_*) and .env files override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return errors.Wrap(err, "failed to write config file")
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
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Backend
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.Backend.BaseURL),
		})
	}
	if !strings.HasPrefix(c.Backend.ChatPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "backend.chat_path",
			Message: "must start with '/'",
		})
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("%d out of range (1-600)", c.Backend.TimeoutSecs),
		})
	}
	if c.Backend.StreamConnectTimeoutSecs < 1 || c.Backend.StreamConnectTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.stream_connect_timeout_secs",
			Message: fmt.Sprintf("%d out of range (1-600)", c.Backend.StreamConnectTimeoutSecs),
		})
	}
	if c.Backend.ReadBufferSize < 64 || c.Backend.ReadBufferSize > 1<<20 {
		errs = append(errs, ValidationError{
			Field:   "backend.read_buffer_size",
			Message: fmt.Sprintf("%d out of range (64-1048576)", c.Backend.ReadBufferSize),
		})
	}

	// UI
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.RevealIntervalMs < 1 || c.UI.RevealIntervalMs > 1000 {
		errs = append(errs, ValidationError{
			Field:   "ui.reveal_interval_ms",
			Message: fmt.Sprintf("%d out of range (1-1000)", c.UI.RevealIntervalMs),
		})
	}
	if c.UI.RevealCharsPerTick < 1 || c.UI.RevealCharsPerTick > 1000 {
		errs = append(errs, ValidationError{
			Field:   "ui.reveal_chars_per_tick",
			Message: fmt.Sprintf("%d out of range (1-1000)", c.UI.RevealCharsPerTick),
		})
	}

	// Log
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}
	if c.Log.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{Field: "log.max_size_mb", Message: "must be at least 1"})
	}
	if c.Log.MaxBackups < 0 {
		errs = append(errs, ValidationError{Field: "log.max_backups", Message: "must not be negative"})
	}
	if c.Log.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "log.max_age_days", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - DOCCHAT_BASE_URL: overrides backend.base_url
//   - DOCCHAT_LOG_LEVEL: overrides log.level
//   - DOCCHAT_THEME: overrides ui.theme
//   - DOCCHAT_REVEAL_INTERVAL_MS: overrides ui.reveal_interval_ms
//   - DOCCHAT_REVEAL_CHARS: overrides ui.reveal_chars_per_tick
//   - DOCCHAT_NO_MARKDOWN: set to "1" or "true" to disable markdown rendering
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DOCCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("DOCCHAT_REVEAL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.UI.RevealIntervalMs = n
		}
	}
	if v := os.Getenv("DOCCHAT_REVEAL_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.UI.RevealCharsPerTick = n
		}
	}
	if v := os.Getenv("DOCCHAT_NO_MARKDOWN"); v != "" {
		c.UI.RenderMarkdown = !(v == "1" || strings.ToLower(v) == "true")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, errors.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return errors.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return errors.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.base_url",
		"backend.chat_path",
		"backend.timeout_secs",
		"backend.stream_connect_timeout_secs",
		"backend.read_buffer_size",
		"backend.cookie_file",
		"ui.theme",
		"ui.reveal_interval_ms",
		"ui.reveal_chars_per_tick",
		"ui.render_markdown",
		"ui.show_snippets",
		"ui.show_documents",
		"log.level",
		"log.dir",
		"log.max_size_mb",
		"log.max_backups",
		"log.max_age_days",
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
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
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
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
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
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
