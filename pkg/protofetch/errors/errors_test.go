// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

func TestKindOf(t *testing.T) {
	err := pferr.NewKindf(pferr.UnknownRevision, "Revision 'v9' not found")
	require.Equal(t, pferr.UnknownRevision, pferr.KindOf(err))

	wrapped := fmt.Errorf("Resolving dependency 'a': %w", err)
	require.Equal(t, pferr.UnknownRevision, pferr.KindOf(wrapped))

	require.Equal(t, pferr.Generic, pferr.KindOf(fmt.Errorf("plain")))
}

func TestExitCodes(t *testing.T) {
	require.Equal(t, 0, pferr.ExitCode(nil))
	require.Equal(t, 1, pferr.ExitCode(fmt.Errorf("plain")))

	seen := map[int]pferr.Kind{}
	kinds := []pferr.Kind{
		pferr.ManifestParse, pferr.LockStale, pferr.NameCollision,
		pferr.RevisionConflict, pferr.DepthExceeded, pferr.Auth,
		pferr.Transient, pferr.UnknownRevision, pferr.CacheLockBusy,
		pferr.Filesystem, pferr.PolicyViolation, pferr.NotFound,
	}
	for _, kind := range kinds {
		code := kind.ExitCode()
		require.Greater(t, code, 1)
		_, dup := seen[code]
		require.False(t, dup, "exit code %d assigned twice", code)
		seen[code] = kind
	}
}

func TestRemoteAttachment(t *testing.T) {
	err := pferr.NewKindf(pferr.Auth, "Authenticating").WithRemote("github.com/org/repo")
	require.Contains(t, err.Error(), "github.com/org/repo")
}
