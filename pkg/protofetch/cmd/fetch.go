// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
	ctlfetch "github.com/protofetch/protofetch/pkg/protofetch/fetch"
	"github.com/protofetch/protofetch/pkg/protofetch/materialize"
	"github.com/protofetch/protofetch/pkg/protofetch/resolver"
)

type FetchOptions struct {
	ui    ui.UI
	flags *PathFlags

	Locked bool
}

func NewFetchOptions(ui ui.UI, flags *PathFlags) *FetchOptions {
	return &FetchOptions{ui: ui, flags: flags}
}

func NewFetchCmd(o *FetchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Resolve dependencies, update the lock file and materialize proto files",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	cmd.Flags().BoolVar(&o.Locked, "locked", false, "Fail instead of rewriting a stale lock file")
	return cmd
}

func (o *FetchOptions) Run() error {
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

	var current config.LockFile
	hasLock := lockManager.Exists()
	if hasLock {
		current, err = lockManager.Load()
		if err != nil {
			return err
		}
	} else if o.Locked {
		return pferr.NewKindf(pferr.LockStale, "Expected lock file at '%s' (hint: run 'protofetch lock')", lockManager.Path())
	}

	var moduleResolver resolver.ModuleResolver = resolver.NewCacheModuleResolver(cache)
	if hasLock {
		moduleResolver = resolver.NewLockedModuleResolver(moduleResolver, current, o.Locked)
	}

	desired, err := resolver.NewGraph(moduleResolver, o.ui).Resolve(desc)
	if err != nil {
		return err
	}

	if hasLock {
		diff := resolver.Diff(current, desired)
		switch {
		case o.Locked && diff.Stale():
			return pferr.NewKindf(pferr.LockStale, "Lock file '%s' does not match the manifest", lockManager.Path())
		case !o.Locked && diff.Any():
			err := lockManager.Save(desired)
			if err != nil {
				return err
			}
			o.ui.PrintLinef("Updated lock file '%s'", lockManager.Path())
		}
	} else {
		err := lockManager.Save(desired)
		if err != nil {
			return err
		}
		o.ui.PrintLinef("Wrote lock file '%s'", lockManager.Path())
	}

	outDir := o.flags.OutputDir(desc.ProtoOutDir)

	err = materialize.NewMaterializer(cache, o.ui).Materialize(desired, outDir)
	if err != nil {
		return fmt.Errorf("Materializing into '%s': %w", outDir, err)
	}

	return nil
}
