// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOutput is returned if an unknown [Output] mode is used.
	ErrInvalidOutput = errors.New("invalid output value")

	// ErrInvalidCombination is returned if [Cmd] options are used together
	// that do not work with each other.
	ErrInvalidCombination = errors.New("invalid combination of options")

	// ErrNoCommand is returned if a [Cmd] has no arguments.
	ErrNoCommand = errors.New("no command given")
)

// CommandError is returned if a command exits with non-zero exit code and the
// exit code is checked.
type CommandError struct {
	Args     []string
	ExitCode int
	Err      error
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed: %s (exit code %d)",
		strings.Join(e.Args, " "), e.ExitCode)

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
