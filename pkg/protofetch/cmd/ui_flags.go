// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/cppforlife/go-cli-ui/ui"
	"github.com/spf13/cobra"
)

type UIFlags struct {
	TTY            bool
	NoColor        bool
	JSON           bool
	NonInteractive bool
}

func (f *UIFlags) Set(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&f.TTY, "tty", false, "Force TTY-like output")
	cmd.PersistentFlags().BoolVar(&f.NoColor, "no-color", false, "Disable colorized output")
	cmd.PersistentFlags().BoolVar(&f.JSON, "json", false, "Output as JSON")
	cmd.PersistentFlags().BoolVar(&f.NonInteractive, "non-interactive", false, "Refuse to ask for input")
}

func (f *UIFlags) ConfigureUI(ui *ui.ConfUI) {
	if f.TTY {
		ui.EnableTTY(f.TTY)
	}
	if !f.NoColor {
		ui.EnableColor()
	}
	if f.JSON {
		ui.EnableJSON()
	}
	if f.NonInteractive {
		ui.EnableNonInteractive()
	}
}
