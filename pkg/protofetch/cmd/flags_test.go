// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutputDirPrecedence(t *testing.T) {
	flags := PathFlags{ProtoOutputDirectory: "from_flag"}

	// Manifest proto_out_dir wins when set, CLI flag otherwise.
	require.Equal(t, "from_manifest", flags.OutputDir("from_manifest"))
	require.Equal(t, "from_flag", flags.OutputDir(""))
}

func TestCacheDirPrecedence(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("PROTOFETCH_CACHE_DIR", "/from-env")

		flags := PathFlags{CacheDirectory: "/from-flag"}
		dir, err := flags.CacheDir()
		require.NoError(t, err)
		require.Equal(t, "/from-flag", dir)
	})

	t.Run("env is consulted next", func(t *testing.T) {
		t.Setenv("PROTOFETCH_CACHE_DIR", "/from-env")

		dir, err := (&PathFlags{}).CacheDir()
		require.NoError(t, err)
		require.Equal(t, "/from-env", dir)
	})
}

func TestDefaultProtocol(t *testing.T) {
	t.Run("falls back to ssh", func(t *testing.T) {
		t.Setenv("PROTOFETCH_GIT_PROTOCOL", "")
		protocol, err := defaultProtocol()
		require.NoError(t, err)
		require.Equal(t, "ssh", string(protocol))
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("PROTOFETCH_GIT_PROTOCOL", "https")
		protocol, err := defaultProtocol()
		require.NoError(t, err)
		require.Equal(t, "https", string(protocol))
	})

	t.Run("invalid value errors", func(t *testing.T) {
		t.Setenv("PROTOFETCH_GIT_PROTOCOL", "gopher")
		_, err := defaultProtocol()
		require.Error(t, err)
	})
}
