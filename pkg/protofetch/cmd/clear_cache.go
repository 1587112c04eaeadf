// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"
)

type ClearCacheOptions struct {
	ui    ui.UI
	flags *PathFlags
}

func NewClearCacheOptions(ui ui.UI, flags *PathFlags) *ClearCacheOptions {
	return &ClearCacheOptions{ui: ui, flags: flags}
}

func NewClearCacheCmd(o *ClearCacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove the shared repository cache",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
}

func (o *ClearCacheOptions) Run() error {
	cache, err := o.flags.NewCache(newInfoLog(o.ui))
	if err != nil {
		return err
	}

	err = cache.Clear()
	if err != nil {
		return err
	}

	dir, err := o.flags.CacheDir()
	if err != nil {
		return err
	}

	o.ui.PrintLinef("Removed cache '%s'", dir)

	return nil
}
