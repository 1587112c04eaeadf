// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package gitcache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/mitchellh/go-homedir"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
	ctlfetch "github.com/protofetch/protofetch/pkg/protofetch/fetch"
	"github.com/protofetch/protofetch/pkg/protofetch/gitauth"
)

const (
	repositoriesDir = "repositories"
	worktreesDir    = "worktrees"
	lockName        = "LOCK"
)

// Cache is the shared on-disk store of bare git mirrors, one per
// repository url, guarded by a whole-cache advisory file lock. It is a
// plain value handed to the resolver and materializer, so tests can
// point it at a temp directory.
type Cache struct {
	dir     string
	runner  CmdRunner
	infoLog io.Writer

	lockWait time.Duration
	lock     *flock.Flock

	authUsername string
	authPassword string

	repos map[string]*Repository
}

type Opts struct {
	Runner   CmdRunner
	InfoLog  io.Writer
	LockWait time.Duration

	// Explicit https credentials supplied on the command line; last in
	// the credential source chain.
	AuthUsername string
	AuthPassword string
}

func NewCache(dir string, opts Opts) *Cache {
	if opts.InfoLog == nil {
		opts.InfoLog = io.Discard
	}
	if opts.Runner == nil {
		opts.Runner = NewExecRunner(opts.InfoLog)
	}
	if opts.LockWait == 0 {
		opts.LockWait = 5 * time.Minute
	}

	return &Cache{
		dir:          dir,
		runner:       opts.Runner,
		infoLog:      opts.InfoLog,
		lockWait:     opts.LockWait,
		authUsername: opts.AuthUsername,
		authPassword: opts.AuthPassword,
		repos:        map[string]*Repository{},
	}
}

// Dir is the cache root directory.
func (c *Cache) Dir() string { return c.dir }

// DefaultDir is $HOME/.protofetch/cache.
func DefaultDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("Expanding user home directory: %s", err)
	}
	return filepath.Join(home, ".protofetch", "cache"), nil
}

// Open verifies the cache layout, creating missing structure, and takes
// the whole-cache lock in exclusive mode for the lifetime of the
// process. While another process holds the lock, a heartbeat goes to
// the info log; LockWait elapsing is a CacheLockBusy error.
func (c *Cache) Open() error {
	err := os.MkdirAll(filepath.Join(c.dir, repositoriesDir), 0700)
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Creating cache directory '%s'", c.dir)
	}

	err = os.MkdirAll(filepath.Join(c.dir, worktreesDir), 0700)
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Creating cache directory '%s'", c.dir)
	}

	c.lock = flock.New(filepath.Join(c.dir, lockName))

	deadline := time.Now().Add(c.lockWait)
	heartbeat := time.Now()

	for {
		locked, err := c.lock.TryLock()
		if err != nil {
			return pferr.WrapKind(pferr.Filesystem, err, "Locking cache '%s'", c.dir)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return pferr.NewKindf(pferr.CacheLockBusy,
				"Another process held the cache lock at '%s' for longer than %s", c.lock.Path(), c.lockWait)
		}
		if time.Since(heartbeat) >= 5*time.Second {
			fmt.Fprintf(c.infoLog, "Waiting for cache lock at %s...\n", c.lock.Path())
			heartbeat = time.Now()
		}
		time.Sleep(time.Second)
	}

	ctlfetch.RegisterCleanupFunc(func() { c.lock.Unlock() })

	return nil
}

func (c *Cache) Close() error {
	if c.lock == nil {
		return nil
	}
	return c.lock.Unlock()
}

// Clear removes the whole cache directory. Used by the clear-cache
// command; callers must not hold Open's lock.
func (c *Cache) Clear() error {
	err := os.RemoveAll(c.dir)
	if err != nil {
		return pferr.WrapKind(pferr.Filesystem, err, "Clearing cache '%s'", c.dir)
	}
	return nil
}

// Repository returns the bare mirror for the coordinate's url, cloning
// it on first use. Handles are memoized per url, so the per-run fetch
// marker is shared between dependencies pointing at the same remote.
func (c *Cache) Repository(coord config.Coordinate) (*Repository, error) {
	encoded := EncodeURL(coord.URL())

	if repo, found := c.repos[encoded]; found {
		return repo, nil
	}

	mirrorDir := filepath.Join(c.dir, repositoriesDir, encoded)

	repo := &Repository{
		cache:     c,
		coord:     coord,
		mirrorDir: mirrorDir,
		encoded:   encoded,
	}

	if _, err := os.Stat(mirrorDir); os.IsNotExist(err) {
		err := repo.clone()
		if err != nil {
			return nil, fmt.Errorf("Cloning mirror for '%s': %s", coord.URL(), err)
		}
		// A fresh mirror is up to date.
		repo.fetched = true
	}

	c.repos[encoded] = repo

	return repo, nil
}

// Worktree returns the snapshot path of the tree at commit for the
// coordinate's repository.
func (c *Cache) Worktree(coord config.Coordinate, commit string) (string, error) {
	repo, err := c.Repository(coord)
	if err != nil {
		return "", err
	}
	return repo.Worktree(commit)
}

// runNetwork walks the credential source chain around a network-touching
// git command. A source that produces an Auth failure is marked and
// never retried in this process; Transient failures are retried with
// backoff by the caller-visible policy.
func (c *Cache) runNetwork(dir string, coord config.Coordinate, args ...string) (string, error) {
	chain := gitauth.NewChain(coord.Protocol, c.authUsername, c.authPassword)
	sources := chain.Sources()

	if len(sources) == 0 {
		return c.runNetworkOnce(dir, coord, nil, args...)
	}

	var lastErr error
	for _, source := range sources {
		stdout, err := c.runNetworkOnce(dir, coord, &source, args...)
		if err == nil {
			return stdout, nil
		}
		if pferr.IsKind(err, pferr.Auth) {
			gitauth.MarkFailed(source)
			lastErr = err
			continue
		}
		return "", err
	}

	return "", lastErr
}

func (c *Cache) runNetworkOnce(dir string, coord config.Coordinate, source *gitauth.Source, args ...string) (string, error) {
	var env []string
	var cfgArgs []string

	if source != nil {
		authDir, err := os.MkdirTemp("", "protofetch-git-auth-")
		if err != nil {
			return "", pferr.WrapKind(pferr.Filesystem, err, "Creating auth dir")
		}
		defer os.RemoveAll(authDir)

		env, err = source.GitEnv(coord.RemoteURL(), authDir)
		if err != nil {
			return "", err
		}
		cfgArgs = source.CredentialStoreArgs(authDir)
	}

	// Never let git fall back to interactive prompts.
	env = append(env, "GIT_TERMINAL_PROMPT=0")

	var stdout string
	err := ctlfetch.RetryTransient(func() error {
		var runErr error
		stdout, _, runErr = c.runner.Run(dir, env, append(cfgArgs, args...)...)
		return runErr
	})
	if err != nil {
		var tagged *pferr.Error
		if errors.As(err, &tagged) && tagged.Kind == pferr.Auth {
			return "", tagged.WithRemote(coord.URL())
		}
		return "", err
	}

	return stdout, nil
}

// run executes a local (non-network) git command against dir.
func (c *Cache) run(dir string, args ...string) (string, error) {
	stdout, _, err := c.runner.Run(dir, nil, args...)
	return stdout, err
}
