// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

const networkAttempts = 3

// RetryTransient runs op up to 3 times with exponential backoff. Only
// Transient failures are retried; Auth errors in particular surface
// immediately so that a rejected credential is never replayed.
func RetryTransient(op func() error) error {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), networkAttempts-1)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !pferr.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// RetryTransientNotify is RetryTransient with a callback per failed
// attempt, used to surface heartbeat-style progress to the UI.
func RetryTransientNotify(op func() error, notify func(error, time.Duration)) error {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), networkAttempts-1)

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !pferr.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, notify)
}
