// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

// Policy evaluates a dependency's allow/deny/regex rules against
// slash-separated paths relative to the content root.
//
// Glob syntax: '*' matches within one segment, '**' spans segments, a
// leading '/' anchors the pattern at the tree root; unanchored patterns
// match any suffix of segments.
type Policy struct {
	allow []string
	deny  []string
	regex *regexp.Regexp
}

func NewPolicy(rules config.Rules) (Policy, error) {
	policy := Policy{
		allow: rules.AllowPolicies,
		deny:  rules.DenyPolicies,
	}

	if len(rules.RegexPolicy) > 0 {
		compiled, err := regexp.Compile(rules.RegexPolicy)
		if err != nil {
			return Policy{}, fmt.Errorf("Compiling regex policy '%s': %s", rules.RegexPolicy, err)
		}
		policy.regex = compiled
	}

	return policy, nil
}

// Admits applies the evaluation order: allow (if any), then deny, then
// regex. A surviving path is root-admitted.
func (p Policy) Admits(path string) bool {
	path = strings.TrimPrefix(path, "/")

	if len(p.allow) > 0 && !matchAny(p.allow, path) {
		return false
	}

	if matchAny(p.deny, path) {
		return false
	}

	if p.regex != nil && !p.regex.MatchString(path) {
		return false
	}

	return true
}

// AdmitsReached is the check applied to files pulled in by the prune
// closure: deny and regex still reject, but the allow list does not,
// since closure members are reached rather than rooted.
func (p Policy) AdmitsReached(path string) bool {
	path = strings.TrimPrefix(path, "/")

	if matchAny(p.deny, path) {
		return false
	}

	if p.regex != nil && !p.regex.MatchString(path) {
		return false
	}

	return true
}

// Denies reports whether a deny pattern matched; used to distinguish a
// misconfigured deny-all from an empty enumeration.
func (p Policy) Denies(path string) bool {
	return matchAny(p.deny, strings.TrimPrefix(path, "/"))
}

// Filter returns the root-admitted subset of paths, order preserved.
func (p Policy) Filter(paths []string) []string {
	var admitted []string
	for _, path := range paths {
		if p.Admits(path) {
			admitted = append(admitted, path)
		}
	}
	return admitted
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(config.NormalizePattern(pattern), path)
		if err == nil && ok {
			return true
		}
	}
	return false
}
