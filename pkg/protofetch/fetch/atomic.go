// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic stages contents in a tempfile next to dstPath, fsyncs
// and renames it into place. A crash can never leave dstPath holding a
// prefix of the intended content. os.Rename replaces an existing file
// on every supported platform, including Windows.
func WriteFileAtomic(dstPath string, contents io.Reader, mode os.FileMode) error {
	dir := filepath.Dir(dstPath)

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("Creating directory '%s': %s", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".protofetch-tmp-")
	if err != nil {
		return fmt.Errorf("Creating temp file in '%s': %s", dir, err)
	}

	tmpPath := tmpFile.Name()
	RegisterCleanupPath(tmpPath)

	removeTmp := func() {
		tmpFile.Close()
		os.Remove(tmpPath)
		UnregisterCleanupPath(tmpPath)
	}

	if _, err := io.Copy(tmpFile, contents); err != nil {
		removeTmp()
		return fmt.Errorf("Writing temp file '%s': %s", tmpPath, err)
	}

	if err := tmpFile.Chmod(mode); err != nil {
		removeTmp()
		return fmt.Errorf("Setting mode on temp file '%s': %s", tmpPath, err)
	}

	if err := tmpFile.Sync(); err != nil {
		removeTmp()
		return fmt.Errorf("Syncing temp file '%s': %s", tmpPath, err)
	}

	if err := tmpFile.Close(); err != nil {
		removeTmp()
		return fmt.Errorf("Closing temp file '%s': %s", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		UnregisterCleanupPath(tmpPath)
		return fmt.Errorf("Moving temp file to '%s': %s", dstPath, err)
	}

	UnregisterCleanupPath(tmpPath)

	return nil
}
