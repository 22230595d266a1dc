// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"context"
	"maps"
	"slices"

	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// Result is the outcome of a command run.
type Result struct {
	ExitCode int
	Output   string

	// Wait waits for a command started with [OutputBackground].
	Wait func() error
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// Sudo prefixes the given arguments with "sudo" unless the process already
// runs as root.
func Sudo(args ...string) []string {
	if sys.IsRoot() {
		return args
	}

	return append([]string{"sudo"}, args...)
}

// User runs the command as the invoking user.
func User(ctx context.Context, runner Runner, cmd Cmd) (Result, error) {
	return runner.Run(ctx, cmd)
}

// Root runs the command as root. Environment variables of the command are
// passed with env(1), as sudo resets the environment.
func Root(ctx context.Context, runner Runner, cmd Cmd) (Result, error) {
	args := slices.Clone(cmd.Args)

	if len(cmd.Env) > 0 {
		envArgs := []string{"env"}
		for _, key := range slices.Sorted(maps.Keys(cmd.Env)) {
			envArgs = append(envArgs, key+"="+cmd.Env[key])
		}

		args = append(envArgs, args...)
		cmd.Env = nil
	}

	output := cmd.output()

	cmd.Args = Sudo(args...)
	cmd.KillAsRoot = !sys.IsRoot() &&
		(output == OutputLog || output == OutputStdout)

	return runner.Run(ctx, cmd)
}

// OutputOf runs the command as the user and returns its stdout.
func OutputOf(ctx context.Context, runner Runner, args ...string) (string, error) {
	result, err := runner.Run(ctx, Cmd{Args: args, ReturnOutput: true})
	if err != nil {
		return "", err
	}

	return result.Output, nil
}
