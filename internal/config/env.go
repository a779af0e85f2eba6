// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for docchat.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// =============================================================================
// .ENV FILES
// =============================================================================

// DotEnvFiles returns the .env files LoadDotEnv considers, in priority order:
// the working directory first, then the config directory.
func DotEnvFiles() []string {
	var files []string
	if wd, err := os.Getwd(); err == nil {
		files = append(files, filepath.Join(wd, ".env"))
	}
	if dir, err := ConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, ".env"))
	}
	return files
}

// LoadDotEnv loads DOCCHAT_* variables from any existing .env files.
// Variables already present in the environment are never overwritten,
// and an earlier file wins over a later one. Returns the files loaded.
func LoadDotEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = DotEnvFiles()
	}

	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, errors.Wrapf(err, "failed to load %s", f)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
