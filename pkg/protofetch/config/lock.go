// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
	"github.com/protofetch/protofetch/pkg/protofetch/fetch"
)

const DefaultLockName = "protofetch.lock"

// LockFile pins every reachable dependency to a commit plus the rules
// needed by materialization. Dependencies are kept name-sorted; two runs
// against the same inputs render byte-identical documents.
type LockFile struct {
	ModuleName   string             `toml:"module_name"`
	ProtoOutDir  string             `toml:"proto_out_dir,omitempty"`
	Dependencies []LockedDependency `toml:"dependencies"`
}

type LockedDependency struct {
	Name       string           `toml:"name"`
	CommitHash string           `toml:"commit_hash"`
	Coordinate LockedCoordinate `toml:"coordinate"`
	Rules      Rules            `toml:"rules"`
}

type LockedCoordinate struct {
	URL      string   `toml:"url"`
	Revision string   `toml:"revision,omitempty"`
	Branch   string   `toml:"branch,omitempty"`
	Protocol Protocol `toml:"protocol"`
}

func (c LockedCoordinate) Coordinate() (Coordinate, error) {
	return NewCoordinate(c.URL, c.Protocol)
}

func LockFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func NewLockFileFromFile(path string) (LockFile, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return LockFile{}, fmt.Errorf("Reading lock file '%s': %s", path, err)
	}

	return NewLockFileFromBytes(bs)
}

func NewLockFileFromBytes(bs []byte) (LockFile, error) {
	var lock LockFile

	err := toml.Unmarshal(bs, &lock)
	if err != nil {
		return LockFile{}, pferr.WrapKind(pferr.ManifestParse, err, "Unmarshaling lock file")
	}

	err = lock.Validate()
	if err != nil {
		return LockFile{}, fmt.Errorf("Validating lock file: %w", err)
	}

	return lock, nil
}

func (l LockFile) Validate() error {
	seenURLs := map[string]string{}

	for _, dep := range l.Dependencies {
		if len(dep.CommitHash) != 40 {
			return fmt.Errorf("Expected full commit hash for dependency '%s', got '%s'", dep.Name, dep.CommitHash)
		}
		if prev, found := seenURLs[dep.Coordinate.URL]; found {
			return fmt.Errorf("Url '%s' appears in entries '%s' and '%s'", dep.Coordinate.URL, prev, dep.Name)
		}
		seenURLs[dep.Coordinate.URL] = dep.Name
	}

	return nil
}

func (l LockFile) Dependency(name string) (LockedDependency, bool) {
	for _, dep := range l.Dependencies {
		if dep.Name == name {
			return dep, true
		}
	}
	return LockedDependency{}, false
}

// AsBytes renders the lock deterministically: fixed key order, entries
// in the already name-sorted order, empty fields omitted.
func (l LockFile) AsBytes() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "module_name = %q\n", l.ModuleName)
	if len(l.ProtoOutDir) > 0 {
		fmt.Fprintf(&buf, "proto_out_dir = %q\n", l.ProtoOutDir)
	}

	for _, dep := range l.Dependencies {
		fmt.Fprintf(&buf, "\n[[dependencies]]\n")
		fmt.Fprintf(&buf, "name = %q\n", dep.Name)
		fmt.Fprintf(&buf, "commit_hash = %q\n", dep.CommitHash)

		fmt.Fprintf(&buf, "\n[dependencies.coordinate]\n")
		fmt.Fprintf(&buf, "url = %q\n", dep.Coordinate.URL)
		if len(dep.Coordinate.Revision) > 0 {
			fmt.Fprintf(&buf, "revision = %q\n", dep.Coordinate.Revision)
		}
		if len(dep.Coordinate.Branch) > 0 {
			fmt.Fprintf(&buf, "branch = %q\n", dep.Coordinate.Branch)
		}
		fmt.Fprintf(&buf, "protocol = %q\n", dep.Coordinate.Protocol)

		fmt.Fprintf(&buf, "\n[dependencies.rules]\n")
		fmt.Fprintf(&buf, "prune = %t\n", dep.Rules.Prune)
		fmt.Fprintf(&buf, "transitive = %t\n", dep.Rules.Transitive)
		writeStringList(&buf, "content_roots", dep.Rules.ContentRoots)
		writeStringList(&buf, "allow_policies", dep.Rules.AllowPolicies)
		writeStringList(&buf, "deny_policies", dep.Rules.DenyPolicies)
		if len(dep.Rules.RegexPolicy) > 0 {
			fmt.Fprintf(&buf, "regex_policy = %q\n", dep.Rules.RegexPolicy)
		}
	}

	return buf.Bytes()
}

// WriteToFile stages the rendered lock in a sibling tempfile and renames
// it into place, guarded by an exclusive lock on '<path>.lock' so two
// processes never interleave writes. Readers do not lock.
func (l LockFile) WriteToFile(path string) error {
	guard := flock.New(path + ".lock")

	locked, err := guard.TryLock()
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Locking '%s'", guard.Path())
	}
	if !locked {
		if err := guard.Lock(); err != nil {
			return pferr.WrapKind(pferr.Filesystem, err, "Waiting for lock on '%s'", guard.Path())
		}
	}
	defer guard.Unlock()

	err = fetch.WriteFileAtomic(path, bytes.NewReader(l.AsBytes()), 0600)
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Writing lock file '%s'", path)
	}

	return nil
}
