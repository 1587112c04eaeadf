// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

type MigrateOptions struct {
	ui    ui.UI
	flags *PathFlags

	SourceTOML string
	Name       string
}

func NewMigrateOptions(ui ui.UI, flags *PathFlags) *MigrateOptions {
	return &MigrateOptions{ui: ui, flags: flags}
}

func NewMigrateCmd(o *MigrateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <source-toml>",
		Short: "Convert a protodep.toml into a protofetch manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			o.SourceTOML = args[0]
			return o.Run()
		},
	}
	cmd.Flags().StringVarP(&o.Name, "name", "n", "", "Set module name (default: directory name)")
	return cmd
}

func (o *MigrateOptions) Run() error {
	protocol, err := defaultProtocol()
	if err != nil {
		return err
	}

	protodep, err := config.NewProtodepDescriptorFromFile(o.SourceTOML)
	if err != nil {
		return err
	}

	dir, err := filepath.Abs(filepath.Dir(o.SourceTOML))
	if err != nil {
		return fmt.Errorf("Resolving directory of '%s': %s", o.SourceTOML, err)
	}

	name := o.Name
	if len(name) == 0 {
		name = filepath.Base(dir)
	}

	desc, err := protodep.ToDescriptor(name, protocol)
	if err != nil {
		return err
	}

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

	for _, stale := range []string{o.SourceTOML, strings.TrimSuffix(o.SourceTOML, filepath.Ext(o.SourceTOML)) + ".lock"} {
		err := os.Remove(stale)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("Removing '%s': %s", stale, err)
		}
	}

	o.ui.PrintLinef("Removed protodep files")

	return nil
}
