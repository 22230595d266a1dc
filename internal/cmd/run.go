// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/prompt"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

// Exit codes of the CLI.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (a *app) handleError(err error, cmd *cobra.Command) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, &ParseArgsError{}):
		fmt.Fprintln(a.io.Stderr, "Error: "+err.Error())
		fmt.Fprint(a.io.Stderr, cmd.UsageString())

		return ExitUsage
	case errors.Is(err, prompt.ErrAborted):
		slog.Info("Aborted.")
		return ExitError
	case errors.Is(err, &run.CommandError{}):
		slog.Error(err.Error())

		if a.cfg != nil {
			slog.Info("See also: " + a.cfg.LogPath())
		}

		return ExitError
	default:
		slog.Error(err.Error())
		return ExitError
	}
}

// Run is the main entry point for the CLI command. The arguments from the
// environment are prepended to args.
func Run(ctx context.Context, args []string, cfg IO) int {
	a := newApp(cfg)
	defer a.close()

	return a.execute(ctx, MergedArgs(args))
}

func (a *app) execute(ctx context.Context, args []string) int {
	setupLogging(a.io.Stderr, slog.LevelInfo, nil)

	root := newRootCommand(a)
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)

	return a.handleError(err, cmd)
}
