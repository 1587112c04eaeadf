// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package gitcache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	cp "github.com/otiai10/copy"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

// Repository is the handle to one bare mirror inside the cache.
type Repository struct {
	cache     *Cache
	coord     config.Coordinate
	mirrorDir string
	encoded   string

	// fetched marks the mirror as refreshed during this process
	// invocation; a mirror is fetched at most once per run.
	fetched bool
}

var (
	fullHashRegexp  = regexp.MustCompile(`^[0-9a-f]{40}$`)
	hexPrefixRegexp = regexp.MustCompile(`^[0-9a-fA-F]{4,40}$`)
)

func (r *Repository) Coordinate() config.Coordinate { return r.coord }

// clone creates the bare mirror. The clone lands in a temp directory
// and is renamed into place so a crash never leaves a half-cloned
// mirror behind.
func (r *Repository) clone() error {
	parent := filepath.Dir(r.mirrorDir)

	tmpDir := r.mirrorDir + ".tmp-clone"
	if err := os.RemoveAll(tmpDir); err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Removing stale clone dir '%s'", tmpDir)
	}

	_, err := r.cache.runNetwork(parent, r.coord, "clone", "--mirror", r.coord.RemoteURL(), filepath.Base(tmpDir))
	if err != nil {
		os.RemoveAll(tmpDir)
		return err
	}

	if err := os.Rename(tmpDir, r.mirrorDir); err != nil {
		os.RemoveAll(tmpDir)
		return pferr.WrapKind(pferr.Filesystem, err, "Moving mirror into place at '%s'", r.mirrorDir)
	}

	return nil
}

// Fetch refreshes all refs from the remote, at most once per run.
func (r *Repository) Fetch() error {
	if r.fetched {
		return nil
	}

	_, err := r.cache.runNetwork(r.mirrorDir, r.coord, "fetch", "--prune", "origin")
	if err != nil {
		return fmt.Errorf("Fetching '%s': %s", r.coord.URL(), err)
	}

	r.fetched = true
	return nil
}

// ResolveRevision maps (revision, branch) to a full commit hash.
//   - branch set: the branch tip is fetched this run; a revision given
//     alongside must be an ancestor of the tip.
//   - full 40-hex revision: returned verbatim once present, fetching at
//     most once if missing.
//   - otherwise: exact tag ref, then exact branch ref, then commit
//     prefix disambiguation.
func (r *Repository) ResolveRevision(revision, branch string) (string, error) {
	if len(branch) > 0 {
		if err := r.Fetch(); err != nil {
			return "", err
		}

		tip, found := r.revParse("refs/heads/" + branch + "^{commit}")
		if !found {
			return "", pferr.NewKindf(pferr.UnknownRevision, "Branch '%s' not found in '%s'", branch, r.coord.URL())
		}

		if len(revision) == 0 {
			return tip, nil
		}

		resolved, err := r.resolveRevisionSpec(revision)
		if err != nil {
			return "", err
		}

		base, _ := r.cache.run(r.mirrorDir, "merge-base", resolved, tip)
		if strings.TrimSpace(base) != resolved {
			return "", pferr.NewKindf(pferr.UnknownRevision,
				"Revision '%s' does not belong to branch '%s' of '%s'", revision, branch, r.coord.URL())
		}

		return resolved, nil
	}

	if len(revision) == 0 {
		if err := r.Fetch(); err != nil {
			return "", err
		}
		head, found := r.revParse("HEAD^{commit}")
		if !found {
			return "", pferr.NewKindf(pferr.UnknownRevision, "Cannot resolve HEAD of '%s'", r.coord.URL())
		}
		return head, nil
	}

	return r.resolveRevisionSpec(revision)
}

func (r *Repository) resolveRevisionSpec(revision string) (string, error) {
	if fullHashRegexp.MatchString(strings.ToLower(revision)) {
		hash := strings.ToLower(revision)
		if r.hasCommit(hash) {
			return hash, nil
		}
		if err := r.Fetch(); err != nil {
			return "", err
		}
		if r.hasCommit(hash) {
			return hash, nil
		}
		return "", pferr.NewKindf(pferr.UnknownRevision, "Commit '%s' not found in '%s' after fetch", revision, r.coord.URL())
	}

	// Specs already present in the mirror resolve without a fetch, so a
	// process that starts second reuses what the first one fetched.
	if hash, found := r.lookupRef(revision); found {
		return hash, nil
	}

	if err := r.Fetch(); err != nil {
		return "", err
	}

	if hash, found := r.lookupRef(revision); found {
		return hash, nil
	}

	if hexPrefixRegexp.MatchString(revision) {
		stdout, err := r.cache.run(r.mirrorDir, "rev-parse", "--verify", revision+"^{commit}")
		if err != nil {
			if strings.Contains(err.Error(), "ambiguous") {
				return "", pferr.NewKindf(pferr.UnknownRevision, "Commit prefix '%s' is ambiguous in '%s'", revision, r.coord.URL())
			}
		} else {
			return strings.TrimSpace(stdout), nil
		}
	}

	return "", pferr.NewKindf(pferr.UnknownRevision, "Revision '%s' not found in '%s' after fetch", revision, r.coord.URL())
}

// lookupRef tries an exact tag ref, then an exact branch ref.
func (r *Repository) lookupRef(revision string) (string, bool) {
	if hash, found := r.revParse("refs/tags/" + revision + "^{commit}"); found {
		return hash, true
	}
	return r.revParse("refs/heads/" + revision + "^{commit}")
}

func (r *Repository) revParse(spec string) (string, bool) {
	stdout, err := r.cache.run(r.mirrorDir, "rev-parse", "--verify", "--quiet", spec)
	if err != nil {
		return "", false
	}
	hash := strings.TrimSpace(stdout)
	if len(hash) == 0 {
		return "", false
	}
	return hash, true
}

func (r *Repository) hasCommit(hash string) bool {
	_, err := r.cache.run(r.mirrorDir, "cat-file", "-e", hash+"^{commit}")
	return err == nil
}

// FileAtCommit reads one blob from the mirror without a checkout.
// found is false when the path does not exist at the commit.
func (r *Repository) FileAtCommit(commit, path string) ([]byte, bool, error) {
	stdout, err := r.cache.run(r.mirrorDir, "show", commit+":"+path)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") ||
			strings.Contains(errStr, "exists on disk, but not in") ||
			strings.Contains(errStr, "invalid object name") ||
			strings.Contains(errStr, "not found") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("Reading '%s' at %s: %s", path, commit, err)
	}

	return []byte(stdout), true, nil
}

// Worktree produces a read-only snapshot of the tree at commit, stored
// commit-addressed under the cache so repeated runs reuse it. The
// snapshot is extracted through a registered git worktree and copied
// out, so git's worktree bookkeeping never points at the final path.
func (r *Repository) Worktree(commit string) (string, error) {
	snapshotDir := filepath.Join(r.cache.dir, worktreesDir, r.encoded, commit)

	if _, err := os.Stat(snapshotDir); err == nil {
		return snapshotDir, nil
	}

	if err := os.MkdirAll(filepath.Dir(snapshotDir), 0700); err != nil {
		return "", pferr.WrapKind(pferr.Filesystem, err, "Creating worktree dir for '%s'", r.coord.URL())
	}

	extractDir, err := os.MkdirTemp(filepath.Dir(snapshotDir), ".extract-")
	if err != nil {
		return "", pferr.WrapKind(pferr.Filesystem, err, "Creating extraction dir for '%s'", r.coord.URL())
	}

	defer func() {
		r.cache.run(r.mirrorDir, "worktree", "remove", "--force", extractDir)
		r.cache.run(r.mirrorDir, "worktree", "prune")
		os.RemoveAll(extractDir)
	}()

	_, err = r.cache.run(r.mirrorDir, "worktree", "add", "--detach", "--force", extractDir, commit)
	if err != nil {
		return "", fmt.Errorf("Checking out %s of '%s': %s", commit, r.coord.URL(), err)
	}

	tmpSnapshot := snapshotDir + ".tmp"
	os.RemoveAll(tmpSnapshot)

	err = cp.Copy(extractDir, tmpSnapshot, cp.Options{
		Skip: func(src string) (bool, error) {
			return filepath.Base(src) == ".git", nil
		},
	})
	if err != nil {
		os.RemoveAll(tmpSnapshot)
		return "", pferr.WrapKind(pferr.Filesystem, err, "Copying snapshot of '%s' at %s", r.coord.URL(), commit)
	}

	if err := os.Rename(tmpSnapshot, snapshotDir); err != nil {
		os.RemoveAll(tmpSnapshot)
		return "", pferr.WrapKind(pferr.Filesystem, err, "Moving snapshot into place at '%s'", snapshotDir)
	}

	return snapshotDir, nil
}

// HasCommit reports whether the mirror already contains the commit,
// without touching the network.
func (r *Repository) HasCommit(hash string) bool {
	return r.hasCommit(hash)
}
