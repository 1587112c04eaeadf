// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/version"
)

type VersionOptions struct {
	ui ui.UI
}

func NewVersionOptions(ui ui.UI) *VersionOptions {
	return &VersionOptions{ui}
}

func NewVersionCmd(o *VersionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
}

func (o *VersionOptions) Run() error {
	o.ui.PrintBlock([]byte("protofetch version " + version.Version + "\n"))
	return nil
}
