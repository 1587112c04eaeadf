// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

func TestNewCoordinate(t *testing.T) {
	t.Run("splits forge, organization and repository", func(t *testing.T) {
		coord, err := config.NewCoordinate("github.com/coralogix/cx-api-users", config.ProtocolHTTPS)
		require.NoError(t, err)
		require.Equal(t, "github.com", coord.Forge)
		require.Equal(t, "coralogix", coord.Organization)
		require.Equal(t, "cx-api-users", coord.Repository)
	})

	t.Run("trailing slash normalizes away", func(t *testing.T) {
		withSlash, err := config.NewCoordinate("github.com/org/repo/", config.ProtocolHTTPS)
		require.NoError(t, err)
		without, err := config.NewCoordinate("github.com/org/repo", config.ProtocolHTTPS)
		require.NoError(t, err)
		require.Equal(t, without.URL(), withSlash.URL())
	})

	t.Run("too few components", func(t *testing.T) {
		_, err := config.NewCoordinate("github.com/org", config.ProtocolHTTPS)
		require.Error(t, err)
	})

	t.Run("too many components", func(t *testing.T) {
		_, err := config.NewCoordinate("github.com/org/repo/subdir", config.ProtocolHTTPS)
		require.Error(t, err)
	})
}

func TestRemoteURL(t *testing.T) {
	coord, err := config.NewCoordinate("github.com/org/repo", config.ProtocolHTTPS)
	require.NoError(t, err)
	require.Equal(t, "https://github.com/org/repo", coord.RemoteURL())

	coord.Protocol = config.ProtocolSSH
	require.Equal(t, "git@github.com:org/repo.git", coord.RemoteURL())
}

func TestRulesNormalize(t *testing.T) {
	rules := config.Rules{ContentRoots: []string{"/b/", "a", "a", "/a"}}.Normalize()
	require.Equal(t, []string{"a", "b"}, rules.ContentRoots)
}
