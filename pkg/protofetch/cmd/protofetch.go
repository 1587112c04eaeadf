// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"io"

	"github.com/cppforlife/cobrautil"
	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/version"
)

type ProtofetchOptions struct {
	ui *ui.ConfUI

	UIFlags   UIFlags
	PathFlags PathFlags
}

func NewProtofetchOptions(ui *ui.ConfUI) *ProtofetchOptions {
	return &ProtofetchOptions{ui: ui}
}

func NewDefaultProtofetchCmd(ui *ui.ConfUI) *cobra.Command {
	return NewProtofetchCmd(NewProtofetchOptions(ui))
}

func NewProtofetchCmd(o *ProtofetchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "protofetch",
		Short:             "protofetch manages protobuf file dependencies declared in a manifest",
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		Version:           version.Version,
	}

	cmd.SetOutput(uiBlockWriter{o.ui}) // setting output for cmd.Help()

	o.UIFlags.Set(cmd)
	o.PathFlags.Set(cmd)

	cmd.AddCommand(NewFetchCmd(NewFetchOptions(o.ui, &o.PathFlags)))
	cmd.AddCommand(NewLockCmd(NewLockOptions(o.ui, &o.PathFlags)))
	cmd.AddCommand(NewCleanCmd(NewCleanOptions(o.ui, &o.PathFlags)))
	cmd.AddCommand(NewInitCmd(NewInitOptions(o.ui, &o.PathFlags)))
	cmd.AddCommand(NewMigrateCmd(NewMigrateOptions(o.ui, &o.PathFlags)))
	cmd.AddCommand(NewClearCacheCmd(NewClearCacheOptions(o.ui, &o.PathFlags)))
	cmd.AddCommand(NewVersionCmd(NewVersionOptions(o.ui)))

	// Last one runs first
	configureUI := func(*cobra.Command, []string) error {
		o.UIFlags.ConfigureUI(o.ui)
		return nil
	}

	// init and migrate take positional args, so extra-arg checking is
	// left to each command's own Args validator.
	cobrautil.VisitCommands(
		cmd,
		cobrautil.ReconfigureCmdWithSubcmd,
		cobrautil.WrapRunEForCmd(cobrautil.ResolveFlagsForCmd),
		cobrautil.WrapRunEForCmd(configureUI),
	)

	return cmd
}

type uiBlockWriter struct {
	ui ui.UI
}

var _ io.Writer = uiBlockWriter{}

func (w uiBlockWriter) Write(p []byte) (n int, err error) {
	w.ui.PrintBlock(p)
	return len(p), nil
}
