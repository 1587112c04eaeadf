// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package prune_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protofetch/protofetch/pkg/protofetch/prune"
)

func TestParseImports(t *testing.T) {
	t.Run("plain imports", func(t *testing.T) {
		src := `
syntax = "proto3";

import "scalapb/scalapb.proto";
import "google/protobuf/descriptor.proto";
import "google/protobuf/struct.proto";

message Foo {}
`
		imports := prune.ParseImports(strings.NewReader(src))
		require.Equal(t, []string{
			"scalapb/scalapb.proto",
			"google/protobuf/descriptor.proto",
			"google/protobuf/struct.proto",
		}, imports)
	})

	t.Run("public and weak modifiers", func(t *testing.T) {
		src := `
import public "a.proto";
import weak "b.proto";
`
		imports := prune.ParseImports(strings.NewReader(src))
		require.Equal(t, []string{"a.proto", "b.proto"}, imports)
	})

	t.Run("line comments are ignored", func(t *testing.T) {
		src := `
// import "commented.proto";
import "real.proto"; // trailing comment
`
		imports := prune.ParseImports(strings.NewReader(src))
		require.Equal(t, []string{"real.proto"}, imports)
	})

	t.Run("block comments are ignored across lines", func(t *testing.T) {
		src := `
/*
import "commented.proto";
*/
import /* inline */ "real.proto";
`
		imports := prune.ParseImports(strings.NewReader(src))
		require.Equal(t, []string{"real.proto"}, imports)
	})

	t.Run("identifiers starting with import are not imports", func(t *testing.T) {
		src := `
importance = 1;
import"tight.proto";
`
		imports := prune.ParseImports(strings.NewReader(src))
		require.Equal(t, []string{"tight.proto"}, imports)
	})

	t.Run("tolerates files a strict parser would reject", func(t *testing.T) {
		src := `
this is not really a proto file {{{
import "still/found.proto";
`
		imports := prune.ParseImports(strings.NewReader(src))
		require.Equal(t, []string{"still/found.proto"}, imports)
	})
}

func TestReachable(t *testing.T) {
	graph := map[string][]string{
		"proto/x.proto":          {"proto/internal/x.proto"},
		"proto/internal/x.proto": {},
		"proto/unrelated.proto":  {},
		"cycle/a.proto":          {"cycle/b.proto"},
		"cycle/b.proto":          {"cycle/a.proto"},
	}

	resolve := func(path string) ([]string, bool) {
		imports, found := graph[path]
		return imports, found
	}

	t.Run("closure includes transitively imported files", func(t *testing.T) {
		reached := prune.Reachable([]string{"proto/x.proto"}, resolve, nil)
		require.Len(t, reached, 2)
		require.Contains(t, reached, "proto/x.proto")
		require.Contains(t, reached, "proto/internal/x.proto")
	})

	t.Run("cycles terminate", func(t *testing.T) {
		reached := prune.Reachable([]string{"cycle/a.proto"}, resolve, nil)
		require.Len(t, reached, 2)
	})

	t.Run("unresolved imports are reported once", func(t *testing.T) {
		var unresolved []string
		onUnresolved := func(path string) { unresolved = append(unresolved, path) }

		roots := []string{"proto/x.proto", "missing/a.proto", "missing/a.proto"}
		reached := prune.Reachable(roots, resolve, onUnresolved)

		require.Contains(t, reached, "proto/x.proto")
		require.NotContains(t, reached, "missing/a.proto")
		require.Equal(t, []string{"missing/a.proto"}, unresolved)
	})
}
