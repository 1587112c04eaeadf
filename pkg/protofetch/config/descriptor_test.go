// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

func TestDescriptorParsing(t *testing.T) {
	t.Run("manifest with one dependency", func(t *testing.T) {
		manifest := `
name = "test_module"
description = "this is a description"
proto_out_dir = "./path/to/proto_out"

[dependency1]
protocol = "https"
url = "github.com/org/repo"
revision = "1.0.0"
`
		desc, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.NoError(t, err)

		require.Equal(t, "test_module", desc.Name)
		require.Equal(t, "this is a description", desc.Description)
		require.Equal(t, "./path/to/proto_out", desc.ProtoOutDir)
		require.Len(t, desc.Dependencies, 1)

		dep := desc.Dependencies[0]
		require.Equal(t, "dependency1", dep.Name)
		require.Equal(t, "github.com/org/repo", dep.Coordinate.URL())
		require.Equal(t, config.ProtocolHTTPS, dep.Coordinate.Protocol)
		require.Equal(t, "1.0.0", dep.Revision)
		require.Empty(t, dep.Branch)
	})

	t.Run("dependency without revision or protocol", func(t *testing.T) {
		manifest := `
name = "test_module"

[dependency1]
url = "github.com/org/repo"
`
		desc, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.NoError(t, err)
		require.Len(t, desc.Dependencies, 1)
		require.Empty(t, desc.Dependencies[0].Revision)
		require.Equal(t, config.ProtocolSSH, desc.Dependencies[0].Coordinate.Protocol)
	})

	t.Run("dependency order follows the document", func(t *testing.T) {
		manifest := `
name = "test_module"

[zeta]
url = "github.com/org/zeta"

[alpha]
url = "github.com/org/alpha"
`
		desc, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.NoError(t, err)
		require.Len(t, desc.Dependencies, 2)
		require.Equal(t, "zeta", desc.Dependencies[0].Name)
		require.Equal(t, "alpha", desc.Dependencies[1].Name)
	})

	t.Run("rules are parsed and normalized", func(t *testing.T) {
		manifest := `
name = "test_module"

[dependency1]
url = "github.com/org/repo"
revision = "1.0.0"
prune = true
transitive = true
content_roots = ["/scope/", "scope", "other"]
allow_policies = ["/proto/*.proto", "internal/**"]
deny_policies = ["**/private/*"]
regex_policy = "^proto/.*"
`
		desc, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.NoError(t, err)

		rules := desc.Dependencies[0].Rules
		assert.True(t, rules.Prune)
		assert.True(t, rules.Transitive)
		assert.Equal(t, []string{"other", "scope"}, rules.ContentRoots)
		assert.Equal(t, []string{"/proto/*.proto", "internal/**"}, rules.AllowPolicies)
		assert.Equal(t, []string{"**/private/*"}, rules.DenyPolicies)
		assert.Equal(t, "^proto/.*", rules.RegexPolicy)
	})

	t.Run("unknown dependency field is rejected", func(t *testing.T) {
		manifest := `
name = "test_module"

[dependency1]
url = "github.com/org/repo"
revison = "1.0.0"
`
		_, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.Error(t, err)
		require.Contains(t, err.Error(), "Unknown manifest keys")
		require.Contains(t, err.Error(), "dependency1.revison")
	})

	t.Run("missing name is rejected", func(t *testing.T) {
		_, err := config.NewDescriptorFromTOML([]byte(`description = "x"`), config.ProtocolSSH)
		require.Error(t, err)
	})

	t.Run("invalid protocol is rejected", func(t *testing.T) {
		manifest := `
name = "test_module"

[dependency1]
url = "github.com/org/repo"
protocol = "ftp"
`
		_, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.Error(t, err)
		require.Contains(t, err.Error(), "Unknown protocol")
	})

	t.Run("url without repository component is rejected", func(t *testing.T) {
		manifest := `
name = "test_module"

[dependency1]
url = "github.com/org"
`
		_, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.Error(t, err)
	})

	t.Run("dependency name with path separator is rejected", func(t *testing.T) {
		manifest := `
name = "test_module"

["bad/name"]
url = "github.com/org/repo"
`
		_, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
		require.Error(t, err)
	})

	t.Run("manifest without dependencies", func(t *testing.T) {
		desc, err := config.NewDescriptorFromTOML([]byte(`name = "solo"`), config.ProtocolSSH)
		require.NoError(t, err)
		require.Empty(t, desc.Dependencies)
	})
}

func TestDescriptorRoundTrip(t *testing.T) {
	manifest := `
name = "test_module"
proto_out_dir = "proto"

[dependency1]
url = "github.com/org/repo"
protocol = "https"
revision = "v1.2.3"
branch = "main"
allow_policies = ["/proto/*.proto"]
prune = true
transitive = true
content_roots = ["scope"]
`
	desc, err := config.NewDescriptorFromTOML([]byte(manifest), config.ProtocolSSH)
	require.NoError(t, err)

	reparsed, err := config.NewDescriptorFromTOML(desc.AsTOML(), config.ProtocolSSH)
	require.NoError(t, err)
	require.Equal(t, desc, reparsed)
}
