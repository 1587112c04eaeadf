// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
	"github.com/protofetch/protofetch/pkg/protofetch/resolver"
)

type CleanOptions struct {
	ui    ui.UI
	flags *PathFlags
}

func NewCleanOptions(ui ui.UI, flags *PathFlags) *CleanOptions {
	return &CleanOptions{ui: ui, flags: flags}
}

func NewCleanCmd(o *CleanOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the output tree and the lock file (the cache is kept)",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
}

func (o *CleanOptions) Run() error {
	outDir := o.flags.ProtoOutputDirectory

	protocol, err := defaultProtocol()
	if err != nil {
		return err
	}

	// The manifest is optional here; when present its proto_out_dir wins.
	desc, err := config.NewDescriptorFromFile(o.flags.ModuleLocation, protocol)
	if err == nil {
		outDir = o.flags.OutputDir(desc.ProtoOutDir)
	}

	err = os.RemoveAll(outDir)
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Removing output directory '%s'", outDir)
	}
	o.ui.PrintLinef("Removed output directory '%s'", outDir)

	lockManager := resolver.NewLockManager(o.flags.LockfileLocation)

	err = lockManager.Remove()
	if err != nil {
		return err
	}
	o.ui.PrintLinef("Removed lock file '%s'", lockManager.Path())

	return nil
}
