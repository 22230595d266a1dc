// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Cmd describes a command to run.
type Cmd struct {
	Args []string
	Dir  string
	Env  map[string]string

	// Output defaults to [OutputLog].
	Output Output

	// Check fails the run with a [CommandError] on non-zero exit code. If nil,
	// it is enabled for all outputs except [OutputBackground].
	Check *bool

	// ReturnOutput collects stdout into [Result.Output].
	ReturnOutput bool

	// KillAsRoot kills the command with sudo on output timeout. It is required
	// for commands that run as root.
	KillAsRoot bool

	// Timeout overrides the output timeout of the runner. Negative values
	// disable it.
	Timeout time.Duration

	// Stdout receives stdout with [OutputPipe].
	Stdout io.Writer
}

// Bool returns a pointer to the given value, for use as [Cmd.Check].
func Bool(b bool) *bool {
	return &b
}

// Checked returns if the exit code is checked.
func (c *Cmd) Checked() bool {
	if c.Check == nil {
		return c.output() != OutputBackground
	}

	return *c.Check
}

func (c *Cmd) output() Output {
	if c.Output == "" {
		return OutputLog
	}

	return c.Output
}

// SanityCheck returns an error if the command has options set that can not be
// used together.
func SanityCheck(cmd Cmd) error {
	output := cmd.output()

	switch {
	case len(cmd.Args) == 0:
		return ErrNoCommand
	case !output.IsValid():
		return fmt.Errorf("%w: %s", ErrInvalidOutput, output)
	case output == OutputBackground && cmd.Check != nil:
		return fmt.Errorf("%w: can't use check with output %s",
			ErrInvalidCombination, output)
	case cmd.ReturnOutput && (output == OutputTUI || output == OutputBackground):
		return fmt.Errorf("%w: can't use output return with output %s",
			ErrInvalidCombination, output)
	case cmd.KillAsRoot && (output == OutputTUI || output == OutputBackground):
		return fmt.Errorf("%w: can't use kill as root with output %s",
			ErrInvalidCombination, output)
	case output == OutputPipe && cmd.Stdout == nil:
		return fmt.Errorf("%w: output %s requires a writer",
			ErrInvalidCombination, output)
	default:
		return nil
	}
}

var unsafeShellChars = regexp.MustCompile(`[^\w@%+=:,./-]`)

// Quote returns a shell escaped version of the given string.
func Quote(s string) string {
	if s == "" {
		return "''"
	}

	if !unsafeShellChars.MatchString(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Flat returns the command as single shell command line. Environment
// variables are prepended sorted by name. If dir is not empty, the command
// line changes into it first.
func Flat(args []string, dir string, env map[string]string) string {
	escaped := make([]string, 0, len(env)+len(args))

	for _, key := range slices.Sorted(maps.Keys(env)) {
		escaped = append(escaped, key+"="+Quote(env[key]))
	}

	for _, arg := range args {
		escaped = append(escaped, Quote(arg))
	}

	line := strings.Join(escaped, " ")
	if dir != "" {
		line = "cd " + Quote(dir) + ";" + line
	}

	return line
}
