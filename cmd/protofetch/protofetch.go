// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log"
	"os"

	"github.com/cppforlife/go-cli-ui/ui"

	"github.com/protofetch/protofetch/pkg/protofetch/cmd"
	pferr "github.com/protofetch/protofetch/pkg/protofetch/errors"
)

func main() {
	log.SetOutput(io.Discard)

	confUI := ui.NewConfUI(ui.NewNoopLogger())
	defer confUI.Flush()

	command := cmd.NewDefaultProtofetchCmd(confUI)

	err := command.Execute()
	if err != nil {
		confUI.ErrorLinef("Error: %v", err)
		confUI.Flush()
		os.Exit(pferr.ExitCode(err))
	}

	confUI.PrintLinef("Succeeded")
}
