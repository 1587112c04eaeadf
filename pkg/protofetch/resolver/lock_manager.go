// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"os"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

// LockManager owns reads and writes of the project lock file and the
// staleness comparison between a freshly resolved lock and the one on
// disk.
type LockManager struct {
	path string
}

func NewLockManager(path string) LockManager {
	return LockManager{path: path}
}

func (m LockManager) Path() string { return m.path }

func (m LockManager) Exists() bool { return config.LockFileExists(m.path) }

func (m LockManager) Load() (config.LockFile, error) {
	return config.NewLockFileFromFile(m.path)
}

func (m LockManager) Save(lock config.LockFile) error {
	return lock.WriteToFile(m.path)
}

func (m LockManager) Remove() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return pferr.WrapKind(pferr.Filesystem, err, "Removing lock file '%s'", m.path)
	}
	return nil
}

// LockDiff separates commit-mapping changes (which make a lock stale)
// from rules-only changes (which only force re-materialization).
type LockDiff struct {
	CommitsChanged bool
	RulesChanged   bool
}

func (d LockDiff) Stale() bool { return d.CommitsChanged }
func (d LockDiff) Any() bool   { return d.CommitsChanged || d.RulesChanged }

// Diff compares the lock on disk against a freshly resolved one. The
// commit mapping is the tuple (name, url, revision, branch, protocol,
// commit); everything under rules compares separately.
func Diff(current, desired config.LockFile) LockDiff {
	diff := LockDiff{}

	if current.ModuleName != desired.ModuleName || current.ProtoOutDir != desired.ProtoOutDir {
		diff.CommitsChanged = true
	}

	if len(current.Dependencies) != len(desired.Dependencies) {
		diff.CommitsChanged = true
	}

	for _, want := range desired.Dependencies {
		have, found := current.Dependency(want.Name)
		if !found {
			diff.CommitsChanged = true
			continue
		}
		if have.Coordinate != want.Coordinate || have.CommitHash != want.CommitHash {
			diff.CommitsChanged = true
		}
		if !have.Rules.Equal(want.Rules) {
			diff.RulesChanged = true
		}
	}

	return diff
}
