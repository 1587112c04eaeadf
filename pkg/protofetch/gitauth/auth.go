// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package gitauth

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"

	"github.com/protofetch/protofetch/pkg/protofetch/config"
)

type SourceKind int

const (
	SSHAgent SourceKind = iota
	SSHKey
	HTTPSEnv
	HTTPSHelper
	HTTPSExplicit
)

func (k SourceKind) String() string {
	switch k {
	case SSHAgent:
		return "ssh-agent"
	case SSHKey:
		return "ssh-key"
	case HTTPSEnv:
		return "https-env"
	case HTTPSHelper:
		return "https-helper"
	default:
		return "https-explicit"
	}
}

// Source is one tagged credential provider. The chain walks sources in
// order; a source that produced an Auth failure is not consulted again
// in this process, so a rejected credential is never replayed against
// the remote.
type Source struct {
	Kind     SourceKind
	KeyPath  string
	Username string
	Password string
}

// failedSources is process-wide: a source that produced an Auth failure
// is skipped by every later chain walk in this run.
var (
	failedMu      sync.Mutex
	failedSources = map[string]struct{}{}
)

func sourceID(s Source) string {
	return fmt.Sprintf("%s|%s|%s", s.Kind, s.KeyPath, s.Username)
}

func MarkFailed(s Source) {
	failedMu.Lock()
	defer failedMu.Unlock()
	failedSources[sourceID(s)] = struct{}{}
}

func hasFailed(s Source) bool {
	failedMu.Lock()
	defer failedMu.Unlock()
	_, found := failedSources[sourceID(s)]
	return found
}

// Chain is the ordered credential source list for one protocol.
type Chain struct {
	sources []Source
}

// NewChain assembles the source order mandated for the protocol:
// ssh consults the agent then on-disk keys; https consults
// GIT_USERNAME/GIT_PASSWORD, then git's credential helper, then
// explicit CLI-supplied credentials.
func NewChain(protocol config.Protocol, explicitUsername, explicitPassword string) *Chain {
	var sources []Source

	switch protocol {
	case config.ProtocolSSH:
		if len(os.Getenv("SSH_AUTH_SOCK")) > 0 {
			sources = append(sources, Source{Kind: SSHAgent})
		}
		for _, keyPath := range discoverSSHKeys() {
			sources = append(sources, Source{Kind: SSHKey, KeyPath: keyPath})
		}

	case config.ProtocolHTTPS:
		user, pass := os.Getenv("GIT_USERNAME"), os.Getenv("GIT_PASSWORD")
		if len(user) > 0 && len(pass) > 0 {
			sources = append(sources, Source{Kind: HTTPSEnv, Username: user, Password: pass})
		}
		sources = append(sources, Source{Kind: HTTPSHelper})
		if len(explicitUsername) > 0 && len(explicitPassword) > 0 {
			sources = append(sources, Source{Kind: HTTPSExplicit, Username: explicitUsername, Password: explicitPassword})
		}
	}

	return &Chain{sources: sources}
}

// Sources returns the not-yet-failed sources in walk order.
func (c *Chain) Sources() []Source {
	var live []Source
	for _, s := range c.sources {
		if !hasFailed(s) {
			live = append(live, s)
		}
	}
	return live
}

// GitEnv renders a source into environment entries for a git
// invocation. authDir receives credential material files; the caller
// removes it after the command finishes.
func (s Source) GitEnv(remoteURL, authDir string) ([]string, error) {
	switch s.Kind {
	case SSHAgent:
		// Agent is reached through SSH_AUTH_SOCK already in the
		// environment; pin ssh options only.
		return []string{"GIT_SSH_COMMAND=" + strings.Join(baseSSHCmd(), " ")}, nil

	case SSHKey:
		sshCmd := append(baseSSHCmd(), "-i", s.KeyPath, "-o", "IdentitiesOnly=yes")
		return []string{"GIT_SSH_COMMAND=" + strings.Join(sshCmd, " ")}, nil

	case HTTPSEnv, HTTPSExplicit:
		credsPath := filepath.Join(authDir, ".git-credentials")

		credsURL, err := url.Parse(remoteURL)
		if err != nil {
			return nil, fmt.Errorf("Parsing git remote url: %s", err)
		}
		credsURL.User = url.UserPassword(s.Username, s.Password)
		credsURL.Path = ""

		err = os.WriteFile(credsPath, []byte(credsURL.String()+"\n"), 0600)
		if err != nil {
			return nil, fmt.Errorf("Writing %s: %s", credsPath, err)
		}

		// The store is wired in via CredentialStoreArgs.
		return nil, nil

	case HTTPSHelper:
		// git consults its configured helper on its own.
		return nil, nil
	}

	return nil, nil
}

// CredentialStoreArgs returns extra git config args when the source
// staged a credential store file.
func (s Source) CredentialStoreArgs(authDir string) []string {
	switch s.Kind {
	case HTTPSEnv, HTTPSExplicit:
		credsPath := filepath.Join(authDir, ".git-credentials")
		return []string{"-c", "credential.helper=store --file " + credsPath}
	default:
		return nil
	}
}

func baseSSHCmd() []string {
	return []string{"ssh", "-o", "ServerAliveInterval=30", "-o", "ForwardAgent=no",
		"-o", "StrictHostKeyChecking=no", "-F", "/dev/null"}
}

func discoverSSHKeys() []string {
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(home, ".ssh", "id_*"))
	if err != nil {
		return nil
	}

	var keys []string
	for _, match := range matches {
		if strings.HasSuffix(match, ".pub") {
			continue
		}
		keys = append(keys, match)
	}
	return keys
}
