// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

func TestProtodepConversion(t *testing.T) {
	src := `
proto_outdir = "./proto_out"

[[dependencies]]
  target = "github.com/opensaasstudio/plasma/protobuf"
  branch = "master"
  protocol = "ssh"
  revision = "1.0.0"

[[dependencies]]
  target = "github.com/other/simple"
  revision = "v2.0.0"
`
	protodep, err := config.NewProtodepDescriptorFromBytes([]byte(src))
	require.NoError(t, err)
	require.Equal(t, "./proto_out", protodep.ProtoOutDir)
	require.Len(t, protodep.Dependencies, 2)

	desc, err := protodep.ToDescriptor("migrated", config.ProtocolHTTPS)
	require.NoError(t, err)
	require.Equal(t, "migrated", desc.Name)
	require.Equal(t, "./proto_out", desc.ProtoOutDir)
	require.Len(t, desc.Dependencies, 2)

	// A target with a subdirectory becomes a coordinate plus content root.
	first := desc.Dependencies[0]
	require.Equal(t, "plasma", first.Name)
	require.Equal(t, "github.com/opensaasstudio/plasma", first.Coordinate.URL())
	require.Equal(t, config.ProtocolSSH, first.Coordinate.Protocol)
	require.Equal(t, []string{"protobuf"}, first.Rules.ContentRoots)
	require.Equal(t, "1.0.0", first.Revision)
	require.Equal(t, "master", first.Branch)

	second := desc.Dependencies[1]
	require.Equal(t, "simple", second.Name)
	require.Equal(t, config.ProtocolHTTPS, second.Coordinate.Protocol)
	require.Empty(t, second.Rules.ContentRoots)
}

func TestProtodepMissingOutDir(t *testing.T) {
	_, err := config.NewProtodepDescriptorFromBytes([]byte(`[[dependencies]]
target = "github.com/org/repo"`))
	require.Error(t, err)
}
