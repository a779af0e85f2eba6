// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across docchat.
package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// RELIABILITY: Atomic write with fsync prevents torn files on crash.
//
// Every writer here follows the same pattern: write to a temp file in the
// target directory, fsync, close, chmod, then rename over the target. Readers
// see either the old file or the complete new one.

// AtomicWriteFile writes data to path atomically, creating parent
// directories with 0755.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return AtomicWriteFileWithDir(path, data, perm, 0755)
}

// AtomicWriteFileWithDir is like AtomicWriteFile but also sets the
// permissions for any parent directory it creates.
func AtomicWriteFileWithDir(path string, data []byte, filePerm, dirPerm os.FileMode) error {
	_, err := AtomicWriteFrom(path, bytes.NewReader(data), filePerm, dirPerm)
	return err
}

// AtomicWriteFrom streams r into path atomically and returns the bytes
// written. A read error from r leaves any existing file untouched.
func AtomicWriteFrom(path string, r io.Reader, filePerm, dirPerm os.FileMode) (n int64, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get absolute path")
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, errors.Wrap(err, "failed to create parent directory")
	}

	// Same directory keeps the rename on one filesystem.
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return 0, errors.Wrap(err, "failed to create temp file")
	}
	tempPath := f.Name()

	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if n, err = io.Copy(f, r); err != nil {
		return n, errors.Wrap(err, "failed to write data")
	}
	if err := f.Sync(); err != nil {
		return n, errors.Wrap(err, "failed to sync data to disk")
	}
	// Close before rename - required on Windows
	if err := f.Close(); err != nil {
		return n, errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tempPath, filePerm); err != nil {
		return n, errors.Wrap(err, "failed to set file permissions")
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		return n, errors.Wrap(err, "failed to rename temp file")
	}

	committed = true
	return n, nil
}
