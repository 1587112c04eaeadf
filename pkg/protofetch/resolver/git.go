// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	"github.com/protofetch/protofetch/pkg/protofetch/gitcache"
)

// CacheModuleResolver resolves modules against the shared git cache: a
// thin facade that picks the repository handle, resolves the revision
// specification and reads the transitive manifest straight from the
// mirror.
type CacheModuleResolver struct {
	cache *gitcache.Cache
}

func NewCacheModuleResolver(cache *gitcache.Cache) CacheModuleResolver {
	return CacheModuleResolver{cache: cache}
}

func (r CacheModuleResolver) Resolve(coord config.Coordinate, revision, branch, commitHint, name string) (ResolvedModule, error) {
	repo, err := r.cache.Repository(coord)
	if err != nil {
		return ResolvedModule{}, err
	}

	var commit string

	// A hint only short-circuits resolution when the specification pins
	// nothing; branch tips are re-fetched every run regardless.
	if len(revision) == 0 && len(branch) == 0 && len(commitHint) > 0 && repo.HasCommit(commitHint) {
		commit = commitHint
	} else {
		commit, err = repo.ResolveRevision(revision, branch)
		if err != nil {
			return ResolvedModule{}, err
		}
	}

	desc, err := r.descriptorAt(repo, coord, commit, name)
	if err != nil {
		return ResolvedModule{}, err
	}

	return ResolvedModule{CommitHash: commit, Descriptor: desc}, nil
}

func (r CacheModuleResolver) descriptorAt(repo *gitcache.Repository, coord config.Coordinate, commit, name string) (config.Descriptor, error) {
	bs, found, err := repo.FileAtCommit(commit, config.DefaultDescriptorName)
	if err != nil {
		return config.Descriptor{}, err
	}
	if !found {
		// No manifest means no transitive dependencies.
		return config.Descriptor{Name: name}, nil
	}

	desc, err := config.NewDescriptorFromTOML(bs, coord.Protocol)
	if err != nil {
		return config.Descriptor{}, fmt.Errorf("Parsing manifest of '%s' at %s: %w", coord.URL(), commit, err)
	}

	return desc, nil
}
