// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	"github.com/protofetch/protofetch/pkg/protofetch/policy"
)

func mustPolicy(t *testing.T, rules config.Rules) policy.Policy {
	pol, err := policy.NewPolicy(rules)
	require.NoError(t, err)
	return pol
}

func TestGlobSemantics(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		path    string
		match   bool
	}{
		{"single star stays within a segment", "/proto/*.proto", "proto/a.proto", true},
		{"single star does not cross slash", "/proto/*.proto", "proto/internal/a.proto", false},
		{"double star spans segments", "/proto/**/*.proto", "proto/x/y/a.proto", true},
		{"double star matches zero segments", "/proto/**/*.proto", "proto/a.proto", true},
		{"anchored pattern only matches from the root", "/path1/*", "nested/path1/a.proto", false},
		{"unanchored pattern matches any suffix", "path1/*", "nested/path1/a.proto", true},
		{"unanchored pattern matches at the root too", "path1/*", "path1/a.proto", true},
		{"exact file", "/proto/file.proto", "proto/file.proto", true},
		{"exact file mismatch", "/proto/file.proto", "proto/other.proto", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pol := mustPolicy(t, config.Rules{AllowPolicies: []string{tc.pattern}})
			require.Equal(t, tc.match, pol.Admits(tc.path))
		})
	}
}

func TestEvaluationOrder(t *testing.T) {
	t.Run("empty allow list admits everything", func(t *testing.T) {
		pol := mustPolicy(t, config.Rules{})
		require.True(t, pol.Admits("anything/x.proto"))
	})

	t.Run("allow list rejects non-matching paths", func(t *testing.T) {
		pol := mustPolicy(t, config.Rules{AllowPolicies: []string{"/proto/*"}})
		require.True(t, pol.Admits("proto/a.proto"))
		require.False(t, pol.Admits("other/a.proto"))
	})

	t.Run("deny wins over allow", func(t *testing.T) {
		pol := mustPolicy(t, config.Rules{
			AllowPolicies: []string{"/proto/**"},
			DenyPolicies:  []string{"/proto/private/*"},
		})
		require.True(t, pol.Admits("proto/a.proto"))
		require.False(t, pol.Admits("proto/private/a.proto"))
	})

	t.Run("regex must match when set", func(t *testing.T) {
		pol := mustPolicy(t, config.Rules{RegexPolicy: `^proto/v\d+/`})
		require.True(t, pol.Admits("proto/v1/a.proto"))
		require.False(t, pol.Admits("proto/a.proto"))
	})

	t.Run("leading slash on the path is ignored", func(t *testing.T) {
		pol := mustPolicy(t, config.Rules{AllowPolicies: []string{"/proto/*.proto"}})
		require.True(t, pol.Admits("/proto/a.proto"))
	})

	t.Run("invalid regex fails construction", func(t *testing.T) {
		_, err := policy.NewPolicy(config.Rules{RegexPolicy: "("})
		require.Error(t, err)
	})
}

func TestAdmitsReached(t *testing.T) {
	pol := mustPolicy(t, config.Rules{
		AllowPolicies: []string{"/proto/*.proto"},
		DenyPolicies:  []string{"**/secret/*"},
	})

	// Allow does not apply to closure members, deny still does.
	require.True(t, pol.AdmitsReached("proto/internal/x.proto"))
	require.False(t, pol.AdmitsReached("proto/secret/x.proto"))
}

func TestFilter(t *testing.T) {
	pol := mustPolicy(t, config.Rules{AllowPolicies: []string{"/proto/*.proto"}})

	out := pol.Filter([]string{"proto/a.proto", "other/b.proto", "proto/c.proto"})
	require.Equal(t, []string{"proto/a.proto", "proto/c.proto"}, out)
}
