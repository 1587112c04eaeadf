// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package gitcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protofetch/protofetch/pkg/protofetch/gitcache"
)

func TestEncodeURL(t *testing.T) {
	require.Equal(t, "github.com_org_repo", gitcache.EncodeURL("github.com/org/repo"))
}

func TestEncodeURLInjective(t *testing.T) {
	// A literal underscore must not collide with an encoded slash.
	a := gitcache.EncodeURL("github.com/org/some_repo")
	b := gitcache.EncodeURL("github.com/org/some/repo")
	require.NotEqual(t, a, b)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	urls := []string{
		"github.com/org/repo",
		"github.com/org/some_repo",
		"git.example.com:8080/org/repo",
		"github.com/org/repo-with-dash.and.dots",
		"forge/org with space/repo",
	}

	for _, url := range urls {
		decoded, err := gitcache.DecodeURL(gitcache.EncodeURL(url))
		require.NoError(t, err)
		require.Equal(t, url, decoded)
	}
}
