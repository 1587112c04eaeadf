// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package version

// Version is overridden at build time via ldflags.
var Version = "0.0.0-dev"
