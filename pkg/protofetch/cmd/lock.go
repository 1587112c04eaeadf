// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	ctlfetch "github.com/protofetch/protofetch/pkg/protofetch/fetch"
	"github.com/protofetch/protofetch/pkg/protofetch/resolver"
)

type LockOptions struct {
	ui    ui.UI
	flags *PathFlags
}

func NewLockOptions(ui ui.UI, flags *PathFlags) *LockOptions {
	return &LockOptions{ui: ui, flags: flags}
}

func NewLockCmd(o *LockOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Resolve dependencies and write the lock file without materializing",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
}

func (o *LockOptions) Run() error {
	ctlfetch.InstallSignalCleanup()

	protocol, err := defaultProtocol()
	if err != nil {
		return err
	}

	desc, err := config.NewDescriptorFromFile(o.flags.ModuleLocation, protocol)
	if err != nil {
		return err
	}

	cache, err := o.flags.NewCache(newInfoLog(o.ui))
	if err != nil {
		return err
	}

	err = cache.Open()
	if err != nil {
		return err
	}
	defer cache.Close()

	lockManager := resolver.NewLockManager(o.flags.LockfileLocation)

	var moduleResolver resolver.ModuleResolver = resolver.NewCacheModuleResolver(cache)
	if lockManager.Exists() {
		current, err := lockManager.Load()
		if err != nil {
			return err
		}
		moduleResolver = resolver.NewLockedModuleResolver(moduleResolver, current, false)
	}

	lock, err := resolver.NewGraph(moduleResolver, o.ui).Resolve(desc)
	if err != nil {
		return err
	}

	err = lockManager.Save(lock)
	if err != nil {
		return err
	}

	o.ui.PrintLinef("Wrote lock file '%s'", lockManager.Path())

	return nil
}
