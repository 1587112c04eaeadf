// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package gitcache

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

// CmdRunner abstracts git invocations so cache behavior is testable
// without a git binary or network.
type CmdRunner interface {
	Run(dir string, env []string, args ...string) (string, string, error)
}

type ExecRunner struct {
	infoLog io.Writer
}

func NewExecRunner(infoLog io.Writer) ExecRunner {
	return ExecRunner{infoLog}
}

func (r ExecRunner) Run(dir string, env []string, args ...string) (string, string, error) {
	var stdoutBs, stderrBs bytes.Buffer

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &stdoutBs
	cmd.Stderr = io.MultiWriter(r.infoLog, &stderrBs)

	r.infoLog.Write([]byte(fmt.Sprintf("--> git %s\n", strings.Join(args, " "))))

	err := cmd.Run()
	if err != nil {
		return stdoutBs.String(), stderrBs.String(), classifyGitError(args, stderrBs.String(), err)
	}

	return stdoutBs.String(), stderrBs.String(), nil
}

var authPatterns = []string{
	"Authentication failed",
	"could not read Username",
	"could not read Password",
	"Permission denied (publickey",
	"Invalid username or password",
	"HTTP Basic: Access denied",
	"terminal prompts disabled",
}

var transientPatterns = []string{
	"Could not resolve host",
	"Failed to connect",
	"Connection refused",
	"Connection timed out",
	"Operation timed out",
	"Network is unreachable",
	"The remote end hung up unexpectedly",
	"early EOF",
	"RPC failed",
	"Connection reset by peer",
}

var notFoundPatterns = []string{
	"Repository not found",
	"not found",
	"does not appear to be a git repository",
	"Could not read from remote repository",
}

func classifyGitError(args []string, stderr string, err error) error {
	base := fmt.Errorf("Git %s: %s (stderr: %s)", args, err, strings.TrimSpace(stderr))

	for _, pattern := range authPatterns {
		if strings.Contains(stderr, pattern) {
			return pferr.WrapKind(pferr.Auth, base, "Authenticating with remote")
		}
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(stderr, pattern) {
			return pferr.WrapKind(pferr.Transient, base, "Reaching remote")
		}
	}
	for _, pattern := range notFoundPatterns {
		if strings.Contains(stderr, pattern) {
			return pferr.WrapKind(pferr.NotFound, base, "Locating remote repository")
		}
	}

	return base
}
