// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package fetch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
	"github.com/protofetch/protofetch/pkg/protofetch/fetch"
)

func TestRetryTransient(t *testing.T) {
	t.Run("transient failures retry up to three attempts", func(t *testing.T) {
		attempts := 0
		err := fetch.RetryTransient(func() error {
			attempts++
			return pferr.NewKindf(pferr.Transient, "Reaching remote")
		})
		require.Error(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("recovery stops retrying", func(t *testing.T) {
		attempts := 0
		err := fetch.RetryTransient(func() error {
			attempts++
			if attempts < 2 {
				return pferr.NewKindf(pferr.Transient, "Reaching remote")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, attempts)
	})

	t.Run("auth failures are never retried", func(t *testing.T) {
		attempts := 0
		err := fetch.RetryTransient(func() error {
			attempts++
			return pferr.NewKindf(pferr.Auth, "Authenticating with remote")
		})
		require.Error(t, err)
		require.Equal(t, pferr.Auth, pferr.KindOf(err))
		require.Equal(t, 1, attempts)
	})

	t.Run("non-transient errors are not retried", func(t *testing.T) {
		attempts := 0
		err := fetch.RetryTransient(func() error {
			attempts++
			return pferr.NewKindf(pferr.Filesystem, "Disk full")
		})
		require.Error(t, err)
		require.Equal(t, 1, attempts)
	})
}
