// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"io"
	"os"
	"time"

	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	"github.com/protofetch/protofetch/pkg/protofetch/gitcache"
)

const defaultOutputDir = "proto_src"

type PathFlags struct {
	ModuleLocation       string
	LockfileLocation     string
	CacheDirectory       string
	ProtoOutputDirectory string
	CacheLockTimeout     time.Duration

	GitUsername string
	GitPassword string
}

func (f *PathFlags) Set(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.ModuleLocation, "module-location", "m", config.DefaultDescriptorName, "Set manifest file")
	cmd.PersistentFlags().StringVarP(&f.LockfileLocation, "lockfile-location", "l", config.DefaultLockName, "Set lock file")
	cmd.PersistentFlags().StringVarP(&f.CacheDirectory, "cache-directory", "c", "", "Set cache directory (default: $HOME/.protofetch/cache)")
	cmd.PersistentFlags().StringVarP(&f.ProtoOutputDirectory, "proto-output-directory", "o", defaultOutputDir,
		"Set output directory (manifest proto_out_dir wins when set)")
	cmd.PersistentFlags().DurationVar(&f.CacheLockTimeout, "cache-lock-timeout", 5*time.Minute, "Give up waiting for the cache lock after this long")
	cmd.PersistentFlags().StringVar(&f.GitUsername, "git-username", "", "Set https git username (tried after env vars and credential helper)")
	cmd.PersistentFlags().StringVar(&f.GitPassword, "git-password", "", "Set https git password")
}

// CacheDir resolves the cache location: flag, then PROTOFETCH_CACHE_DIR,
// then the default under the user home.
func (f *PathFlags) CacheDir() (string, error) {
	if len(f.CacheDirectory) > 0 {
		return f.CacheDirectory, nil
	}
	if dir := os.Getenv("PROTOFETCH_CACHE_DIR"); len(dir) > 0 {
		return dir, nil
	}
	return gitcache.DefaultDir()
}

// OutputDir applies the precedence rule: manifest proto_out_dir wins
// when set, the CLI flag otherwise.
func (f *PathFlags) OutputDir(manifestOutDir string) string {
	if len(manifestOutDir) > 0 {
		return manifestOutDir
	}
	return f.ProtoOutputDirectory
}

func (f *PathFlags) NewCache(infoLog io.Writer) (*gitcache.Cache, error) {
	dir, err := f.CacheDir()
	if err != nil {
		return nil, err
	}

	return gitcache.NewCache(dir, gitcache.Opts{
		InfoLog:      infoLog,
		LockWait:     f.CacheLockTimeout,
		AuthUsername: f.GitUsername,
		AuthPassword: f.GitPassword,
	}), nil
}

// defaultProtocol is PROTOFETCH_GIT_PROTOCOL when set, ssh otherwise.
func defaultProtocol() (config.Protocol, error) {
	if val := os.Getenv("PROTOFETCH_GIT_PROTOCOL"); len(val) > 0 {
		return config.ParseProtocol(val)
	}
	return config.ProtocolSSH, nil
}

// infoLog adapts the UI into an io.Writer for git subprocess output.
type infoLog struct {
	ui ui.UI
}

func newInfoLog(ui ui.UI) io.Writer { return infoLog{ui} }

func (l infoLog) Write(p []byte) (int, error) {
	l.ui.BeginLinef("%s", p)
	return len(p), nil
}
