// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// Rules is the subset of a dependency's configuration needed by
// materialization: path filters, the prune flag, the transitive flag
// and content roots.
type Rules struct {
	Prune         bool     `toml:"prune"`
	Transitive    bool     `toml:"transitive"`
	ContentRoots  []string `toml:"content_roots,omitempty"`
	AllowPolicies []string `toml:"allow_policies,omitempty"`
	DenyPolicies  []string `toml:"deny_policies,omitempty"`
	RegexPolicy   string   `toml:"regex_policy,omitempty"`
}

func (r Rules) Validate() error {
	for _, pattern := range append(append([]string{}, r.AllowPolicies...), r.DenyPolicies...) {
		if _, err := doublestar.Match(NormalizePattern(pattern), "x"); err != nil {
			return fmt.Errorf("Validating policy pattern '%s': %s", pattern, err)
		}
	}
	if len(r.RegexPolicy) > 0 {
		if _, err := regexp.Compile(r.RegexPolicy); err != nil {
			return fmt.Errorf("Validating regex policy '%s': %s", r.RegexPolicy, err)
		}
	}
	return nil
}

// Normalize strips leading slashes from content roots, drops duplicates
// and orders them so that rules compare stable in lock files.
func (r Rules) Normalize() Rules {
	seen := map[string]struct{}{}
	var roots []string
	for _, root := range r.ContentRoots {
		root = strings.TrimPrefix(strings.TrimSuffix(root, "/"), "/")
		if len(root) == 0 {
			continue
		}
		if _, found := seen[root]; found {
			continue
		}
		seen[root] = struct{}{}
		roots = append(roots, root)
	}
	sort.Strings(roots)
	r.ContentRoots = roots
	return r
}

func (r Rules) Equal(other Rules) bool {
	return r.Prune == other.Prune &&
		r.Transitive == other.Transitive &&
		equalStrings(r.ContentRoots, other.ContentRoots) &&
		equalStrings(r.AllowPolicies, other.AllowPolicies) &&
		equalStrings(r.DenyPolicies, other.DenyPolicies) &&
		r.RegexPolicy == other.RegexPolicy
}

// NormalizePattern rewrites a policy pattern into doublestar form:
// a leading slash anchors at the tree root, anything else matches any
// suffix of path segments.
func NormalizePattern(pattern string) string {
	if strings.HasPrefix(pattern, "/") {
		return strings.TrimPrefix(pattern, "/")
	}
	return "**/" + pattern
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
