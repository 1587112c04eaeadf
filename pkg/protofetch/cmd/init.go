// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

type InitOptions struct {
	ui    ui.UI
	flags *PathFlags

	Directory string
	Name      string
}

func NewInitOptions(ui ui.UI, flags *PathFlags) *InitOptions {
	return &InitOptions{ui: ui, flags: flags}
}

func NewInitCmd(o *InitOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir> [<name>]",
		Short: "Create a new manifest in the given directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			o.Directory = args[0]
			if len(args) > 1 {
				o.Name = args[1]
			}
			return o.Run()
		},
	}
}

func (o *InitOptions) Run() error {
	dir, err := filepath.Abs(o.Directory)
	if err != nil {
		return fmt.Errorf("Resolving directory '%s': %s", o.Directory, err)
	}

	name := o.Name
	if len(name) == 0 {
		name = filepath.Base(dir)
	}

	desc := config.Descriptor{Name: name}

	err = desc.Validate()
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(dir, config.DefaultDescriptorName)

	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("File already exists: %s", manifestPath)
	}

	err = os.WriteFile(manifestPath, desc.AsTOML(), 0600)
	if err != nil {
		return fmt.Errorf("Writing manifest '%s': %s", manifestPath, err)
	}

	o.ui.PrintLinef("Wrote manifest '%s'", manifestPath)

	return nil
}
