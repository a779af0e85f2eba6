// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DOCCHAT_HOME", dir)
	for _, k := range []string{
		"DOCCHAT_BASE_URL", "DOCCHAT_LOG_LEVEL", "DOCCHAT_THEME",
		"DOCCHAT_REVEAL_INTERVAL_MS", "DOCCHAT_REVEAL_CHARS", "DOCCHAT_NO_MARKDOWN",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Millisecond, cfg.UI.RevealInterval())
	assert.Equal(t, 30*time.Second, cfg.Backend.StreamConnectTimeout())
	assert.Equal(t, zerolog.InfoLevel, cfg.Log.ZerologLevel())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
}

func TestLoadFromPath_PartialTOMLKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
base_url = "https://docs.example.com"

[ui]
reveal_chars_per_tick = 4
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "/chat/", cfg.Backend.ChatPath)
	assert.Equal(t, 4, cfg.UI.RevealCharsPerTick)
	assert.Equal(t, 15, cfg.UI.RevealIntervalMs)
	assert.True(t, cfg.UI.RenderMarkdown, "bools absent from the file keep their defaults")
}

func TestLoadFromPath_JSON(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ui":{"theme":"light","show_snippets":false}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.False(t, cfg.UI.ShowSnippets)
}

func TestLoad_InvalidFileReturnsDefaultsAndError(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	cfg, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui.theme")
	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Backend.BaseURL = "http://10.0.0.5:8000"
	cfg.UI.ShowDocuments = false
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.False(t, loaded.UI.ShowDocuments)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "localhost:8000"
	cfg.Backend.ChatPath = "chat"
	cfg.UI.RevealIntervalMs = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{
		"backend.base_url", "backend.chat_path", "ui.reveal_interval_ms", "log.level",
	}, fields)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DOCCHAT_BASE_URL", "https://api.example.com")
	t.Setenv("DOCCHAT_REVEAL_INTERVAL_MS", "40")
	t.Setenv("DOCCHAT_REVEAL_CHARS", "bogus")
	t.Setenv("DOCCHAT_NO_MARKDOWN", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 40, cfg.UI.RevealIntervalMs)
	assert.Equal(t, 1, cfg.UI.RevealCharsPerTick, "unparsable values are ignored")
	assert.False(t, cfg.UI.RenderMarkdown)
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("DOCCHAT_THEME=light\n"), 0600))
	require.NoError(t, os.WriteFile(second, []byte("DOCCHAT_THEME=dark\nDOCCHAT_LOG_LEVEL=debug\n"), 0600))
	t.Setenv("DOCCHAT_LOG_LEVEL", "warn")
	// godotenv treats an empty variable as already set.
	os.Unsetenv("DOCCHAT_THEME")

	loaded, err := LoadDotEnv(first, filepath.Join(dir, "missing.env"), second)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, loaded)
	assert.Equal(t, "light", os.Getenv("DOCCHAT_THEME"))
	assert.Equal(t, "warn", os.Getenv("DOCCHAT_LOG_LEVEL"))
}

func TestGetSet_DotNotation(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("backend.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", v)

	require.NoError(t, cfg.Set("ui.reveal_chars_per_tick", "8"))
	assert.Equal(t, 8, cfg.UI.RevealCharsPerTick)

	require.NoError(t, cfg.Set("ui.render-markdown", "false"))
	assert.False(t, cfg.UI.RenderMarkdown)

	_, err = cfg.Get("backend.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("ui.theme.color", "x"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestCookieAndLogPaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	p, err := cfg.CookiePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cookies.json"), p)

	l, err := cfg.LogDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs"), l)

	cfg.Backend.CookieFile = "/tmp/session.json"
	p, err = cfg.CookiePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/session.json", p)
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()

		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}

	wg.Wait()
}

func TestGlobal_InvalidFileFallsBack(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0600))
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Backend.BaseURL, cfg.Backend.BaseURL)
}

func TestWatcher_ReloadsOnSave(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, 50*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))

	updated := Default()
	updated.UI.Theme = "light"
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "light", cfg.UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher("config.toml", 0, nil)
	assert.Error(t, err)
}
