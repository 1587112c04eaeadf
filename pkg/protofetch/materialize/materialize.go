// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cppforlife/go-cli-ui/ui"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
	ctlfetch "github.com/protofetch/protofetch/pkg/protofetch/fetch"
	"github.com/protofetch/protofetch/pkg/protofetch/policy"
	"github.com/protofetch/protofetch/pkg/protofetch/prune"
)

// WorktreeProvider hands out read-only snapshots of cached commits.
// Implemented by gitcache.Cache.
type WorktreeProvider interface {
	Worktree(coord config.Coordinate, commit string) (string, error)
}

// Materializer extracts the filtered file set of every lock entry into
// the output tree, in lock order.
type Materializer struct {
	provider WorktreeProvider
	ui       ui.UI
}

func NewMaterializer(provider WorktreeProvider, ui ui.UI) *Materializer {
	return &Materializer{provider: provider, ui: ui}
}

// depState is one lock entry's enumerated worktree: rerooted relative
// paths mapped to absolute source paths, plus the root-admitted subset.
type depState struct {
	dep      config.LockedDependency
	pol      policy.Policy
	files    map[string]string
	admitted map[string]struct{}
	imports  map[string][]string
}

func (m *Materializer) Materialize(lock config.LockFile, outDir string) error {
	states := make([]*depState, 0, len(lock.Dependencies))

	for _, dep := range lock.Dependencies {
		state, err := m.enumerate(dep)
		if err != nil {
			return fmt.Errorf("Enumerating dependency '%s': %w", dep.Name, err)
		}
		states = append(states, state)
	}

	reached := m.pruneClosure(states)

	for _, state := range states {
		err := m.write(state, reached, outDir)
		if err != nil {
			return fmt.Errorf("Materializing dependency '%s': %w", state.dep.Name, err)
		}
	}

	return nil
}

func (m *Materializer) enumerate(dep config.LockedDependency) (*depState, error) {
	coord, err := dep.Coordinate.Coordinate()
	if err != nil {
		return nil, err
	}

	worktree, err := m.provider.Worktree(coord, dep.CommitHash)
	if err != nil {
		return nil, err
	}

	files, err := enumerateProtoFiles(worktree, dep.Rules.ContentRoots)
	if err != nil {
		return nil, err
	}

	pol, err := policy.NewPolicy(dep.Rules)
	if err != nil {
		return nil, err
	}

	state := &depState{
		dep:      dep,
		pol:      pol,
		files:    files,
		admitted: map[string]struct{}{},
		imports:  map[string][]string{},
	}

	denied := 0
	for path := range files {
		if pol.Admits(path) {
			state.admitted[path] = struct{}{}
		} else if pol.Denies(path) {
			denied++
		}
	}

	if len(files) > 0 && len(state.admitted) == 0 && denied == len(files) {
		return nil, pferr.NewKindf(pferr.PolicyViolation,
			"Deny policies rejected every file of dependency '%s'", dep.Name)
	}

	return state, nil
}

// pruneClosure runs the import fixpoint when any entry prunes. Roots
// are the root-admitted files of pruning dependencies; imports resolve
// against the union of content roots of dependencies marked transitive.
func (m *Materializer) pruneClosure(states []*depState) map[string]struct{} {
	anyPrune := false
	for _, state := range states {
		if state.dep.Rules.Prune {
			anyPrune = true
			break
		}
	}
	if !anyPrune {
		return nil
	}

	var roots []string
	for _, state := range states {
		if !state.dep.Rules.Prune {
			continue
		}
		for path := range state.admitted {
			roots = append(roots, path)
		}
	}

	resolve := func(path string) ([]string, bool) {
		for _, state := range states {
			if !state.dep.Rules.Transitive {
				continue
			}
			if _, found := state.files[path]; !found {
				continue
			}
			imports, err := state.fileImports(path)
			if err != nil {
				return nil, false
			}
			return imports, true
		}
		return nil, false
	}

	onUnresolved := func(path string) {
		m.ui.BeginLinef("Warning: import '%s' is not provided by any transitive dependency\n", path)
	}

	return prune.Reachable(roots, resolve, onUnresolved)
}

func (s *depState) fileImports(path string) ([]string, error) {
	if imports, found := s.imports[path]; found {
		return imports, nil
	}

	bs, err := os.ReadFile(s.files[path])
	if err != nil {
		return nil, pferr.WrapKind(pferr.Filesystem, err, "Reading '%s'", s.files[path])
	}

	imports := prune.ParseImports(bytes.NewReader(bs))
	s.imports[path] = imports
	return imports, nil
}

// survivors selects what actually lands in the output tree for one
// entry: root-admitted files, minus pruned ones, plus files rescued by
// the closure (still subject to deny and regex policies).
func (s *depState) survivors(reached map[string]struct{}) []string {
	var result []string

	for path := range s.admitted {
		if s.dep.Rules.Prune {
			if _, ok := reached[path]; !ok {
				continue
			}
		}
		result = append(result, path)
	}

	if reached != nil && s.dep.Rules.Transitive {
		for path := range s.files {
			if _, admitted := s.admitted[path]; admitted {
				continue
			}
			if _, ok := reached[path]; !ok {
				continue
			}
			if s.pol.AdmitsReached(path) {
				result = append(result, path)
			}
		}
	}

	sort.Strings(result)
	return result
}

func (m *Materializer) write(state *depState, reached map[string]struct{}, outDir string) error {
	target := filepath.Join(outDir, state.dep.Name)

	// Clear leftovers from prior runs before staging anything new.
	err := os.RemoveAll(target)
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Clearing '%s'", target)
	}

	survivors := state.survivors(reached)

	for _, path := range survivors {
		src := state.files[path]

		info, err := os.Stat(src)
		if err != nil {
			return pferr.WrapKind(pferr.Filesystem, err, "Inspecting '%s'", src)
		}

		srcFile, err := os.Open(src)
		if err != nil {
			return pferr.WrapKind(pferr.Filesystem, err, "Opening '%s'", src)
		}

		err = ctlfetch.WriteFileAtomic(filepath.Join(target, filepath.FromSlash(path)), srcFile, info.Mode())
		srcFile.Close()
		if err != nil {
			return err
		}
	}

	m.ui.PrintLinef("%s -> %s (%d files)", state.dep.Name, target, len(survivors))

	return nil
}

// enumerateProtoFiles walks each content root (or the repository root)
// collecting .proto files keyed by their rerooted slash path. The first
// content root providing a path wins.
func enumerateProtoFiles(worktree string, contentRoots []string) (map[string]string, error) {
	files := map[string]string{}

	bases := contentRoots
	if len(bases) == 0 {
		bases = []string{""}
	}

	for _, base := range bases {
		baseDir, err := ctlfetch.ScopedPath(worktree, filepath.FromSlash(base))
		if err != nil {
			return nil, fmt.Errorf("Resolving content root '%s': %s", base, err)
		}

		info, err := os.Stat(baseDir)
		if err != nil || !info.IsDir() {
			continue
		}

		err = filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(info.Name(), ".proto") {
				return nil
			}

			rel, err := filepath.Rel(baseDir, path)
			if err != nil {
				return err
			}

			rerooted := filepath.ToSlash(rel)
			if _, found := files[rerooted]; !found {
				files[rerooted] = path
			}
			return nil
		})
		if err != nil {
			return nil, pferr.WrapKind(pferr.Filesystem, err, "Walking '%s'", baseDir)
		}
	}

	return files, nil
}
