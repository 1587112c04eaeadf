// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

// LockedModuleResolver decorates another resolver with an existing lock
// file. A lock entry whose coordinate and specification still match
// seeds resolution with the locked commit, so unpinned dependencies do
// not drift between runs. In locked mode a dependency missing from the
// lock, or resolving away from it, is a LockStale error instead.
type LockedModuleResolver struct {
	inner  ModuleResolver
	lock   config.LockFile
	locked bool
}

func NewLockedModuleResolver(inner ModuleResolver, lock config.LockFile, locked bool) LockedModuleResolver {
	return LockedModuleResolver{inner: inner, lock: lock, locked: locked}
}

func (r LockedModuleResolver) Resolve(coord config.Coordinate, revision, branch, commitHint, name string) (ResolvedModule, error) {
	entry, found := r.find(coord, revision, branch)
	if !found {
		if r.locked {
			return ResolvedModule{}, pferr.NewKindf(pferr.LockStale,
				"No lock entry for '%s' (%s)", coord.URL(), specParts(revision, branch))
		}
		return r.inner.Resolve(coord, revision, branch, commitHint, name)
	}

	if len(commitHint) == 0 {
		commitHint = entry.CommitHash
	}

	resolved, err := r.inner.Resolve(coord, revision, branch, commitHint, name)
	if err != nil {
		return ResolvedModule{}, err
	}

	if r.locked && resolved.CommitHash != entry.CommitHash {
		return ResolvedModule{}, pferr.NewKindf(pferr.LockStale,
			"Lock entry for '%s' pins %s but the specification resolves to %s",
			coord.URL(), entry.CommitHash[:12], resolved.CommitHash[:12])
	}

	return resolved, nil
}

func (r LockedModuleResolver) find(coord config.Coordinate, revision, branch string) (config.LockedDependency, bool) {
	for _, dep := range r.lock.Dependencies {
		if dep.Coordinate.URL == coord.URL() &&
			dep.Coordinate.Revision == revision &&
			dep.Coordinate.Branch == branch {
			return dep, true
		}
	}
	return config.LockedDependency{}, false
}

func specParts(revision, branch string) string {
	switch {
	case len(branch) > 0 && len(revision) > 0:
		return revision + "@" + branch
	case len(branch) > 0:
		return "branch " + branch
	case len(revision) > 0:
		return revision
	default:
		return "HEAD"
	}
}
