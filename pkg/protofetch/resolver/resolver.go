// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"sort"

	"github.com/cppforlife/go-cli-ui/ui"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

const DefaultMaxDepth = 10

// ResolvedModule is a dependency pinned to a commit plus the manifest
// found at that commit (empty when the repo declares none).
type ResolvedModule struct {
	CommitHash string
	Descriptor config.Descriptor
}

// ModuleResolver maps a coordinate and revision specification to a
// resolved module. commitHint carries a previously locked commit that
// an implementation may reuse when the specification pins nothing.
type ModuleResolver interface {
	Resolve(coord config.Coordinate, revision, branch, commitHint, name string) (ResolvedModule, error)
}

// Graph explores the dependency graph breadth-first and produces the
// name-sorted list of lock entries. The worklist is the only control
// structure; nothing recurses.
type Graph struct {
	resolver ModuleResolver
	ui       ui.UI
	MaxDepth int
}

func NewGraph(resolver ModuleResolver, ui ui.UI) *Graph {
	return &Graph{resolver: resolver, ui: ui, MaxDepth: DefaultMaxDepth}
}

type graphEntry struct {
	dep    config.Dependency
	commit string
}

type workItem struct {
	dep   config.Dependency
	depth int
}

// Resolve walks the graph from the root descriptor. Within a level,
// dependencies are visited in name order so results do not depend on
// manifest insertion order.
func (g *Graph) Resolve(root config.Descriptor) (config.LockFile, error) {
	entries := map[string]*graphEntry{}
	byURL := map[string]*graphEntry{}

	worklist := enqueueSorted(nil, root.Dependencies, 1)

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		if item.depth > g.MaxDepth {
			return config.LockFile{}, pferr.NewKindf(pferr.DepthExceeded,
				"Transitive depth %d exceeded at dependency '%s'", g.MaxDepth, item.dep.Name)
		}

		dep := item.dep

		if existing, found := entries[dep.Name]; found {
			if !existing.dep.Coordinate.SameRemote(dep.Coordinate) {
				return config.LockFile{}, pferr.NewKindf(pferr.NameCollision,
					"Dependency name '%s' refers to both '%s' and '%s'",
					dep.Name, existing.dep.Coordinate.URL(), dep.Coordinate.URL())
			}
		}

		if existing, found := byURL[dep.Coordinate.URL()]; found {
			if sameSpecification(existing.dep, dep) {
				// Silently deduplicated; first-seen entry wins.
				continue
			}

			resolved, err := g.resolveOne(dep)
			if err != nil {
				return config.LockFile{}, err
			}

			if resolved.CommitHash == existing.commit {
				// Different specs, same commit: first-seen entry wins.
				continue
			}

			return config.LockFile{}, pferr.NewKindf(pferr.RevisionConflict,
				"Url '%s' is required at both '%s' (%s) and '%s' (%s)",
				dep.Coordinate.URL(),
				specString(existing.dep), existing.commit[:12],
				specString(dep), resolved.CommitHash[:12])
		}

		resolved, err := g.resolveOne(dep)
		if err != nil {
			return config.LockFile{}, err
		}

		// A dependency that carries its own manifest participates in the
		// prune closure like an explicitly transitive one.
		if len(resolved.Descriptor.Dependencies) > 0 {
			dep.Rules.Transitive = true
		}

		entry := &graphEntry{dep: dep, commit: resolved.CommitHash}
		entries[dep.Name] = entry
		byURL[dep.Coordinate.URL()] = entry

		worklist = enqueueSorted(worklist, resolved.Descriptor.Dependencies, item.depth+1)
	}

	return g.lockFile(root, entries), nil
}

func (g *Graph) resolveOne(dep config.Dependency) (ResolvedModule, error) {
	g.ui.PrintLinef("Resolving %s (%s)", dep.Name, dep.Coordinate.URL())

	if len(dep.Branch) > 0 && len(dep.Revision) == 0 {
		g.ui.BeginLinef("Warning: dependency '%s' tracks branch '%s'; the build is not reproducible without a tag or commit\n",
			dep.Name, dep.Branch)
	}
	if len(dep.Branch) == 0 && len(dep.Revision) == 0 {
		g.ui.BeginLinef("Warning: dependency '%s' pins no revision; the build is not reproducible\n", dep.Name)
	}

	resolved, err := g.resolver.Resolve(dep.Coordinate, dep.Revision, dep.Branch, "", dep.Name)
	if err != nil {
		return ResolvedModule{}, err
	}

	return resolved, nil
}

func (g *Graph) lockFile(root config.Descriptor, entries map[string]*graphEntry) config.LockFile {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	lock := config.LockFile{
		ModuleName:  root.Name,
		ProtoOutDir: root.ProtoOutDir,
	}

	for _, name := range names {
		entry := entries[name]
		lock.Dependencies = append(lock.Dependencies, config.LockedDependency{
			Name:       name,
			CommitHash: entry.commit,
			Coordinate: config.LockedCoordinate{
				URL:      entry.dep.Coordinate.URL(),
				Revision: entry.dep.Revision,
				Branch:   entry.dep.Branch,
				Protocol: entry.dep.Coordinate.Protocol,
			},
			Rules: entry.dep.Rules,
		})
	}

	return lock
}

func enqueueSorted(worklist []workItem, deps []config.Dependency, depth int) []workItem {
	for _, dep := range deps {
		worklist = append(worklist, workItem{dep: dep, depth: depth})
	}

	// The queued items of this depth form the tail; keep the whole level
	// name-sorted, not just one manifest's share of it.
	start := len(worklist)
	for start > 0 && worklist[start-1].depth == depth {
		start--
	}
	level := worklist[start:]
	sort.SliceStable(level, func(i, j int) bool { return level[i].dep.Name < level[j].dep.Name })

	return worklist
}

func sameSpecification(a, b config.Dependency) bool {
	return a.Revision == b.Revision && a.Branch == b.Branch
}

func specString(dep config.Dependency) string {
	switch {
	case len(dep.Branch) > 0 && len(dep.Revision) > 0:
		return dep.Revision + "@" + dep.Branch
	case len(dep.Branch) > 0:
		return "branch " + dep.Branch
	case len(dep.Revision) > 0:
		return dep.Revision
	default:
		return "HEAD"
	}
}
