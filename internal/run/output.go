// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"fmt"
	"slices"
)

// Output defines how the input and output of a command is handled.
type Output string

const (
	// OutputLog writes the output to the log file only.
	OutputLog Output = "log"
	// OutputStdout writes the output to the log file and the terminal.
	OutputStdout Output = "stdout"
	// OutputInteractive is like [OutputStdout] but also connects stdin and
	// disables the output timeout.
	OutputInteractive Output = "interactive"
	// OutputTUI connects stdin, stdout and stderr to the terminal directly.
	// Nothing is logged.
	OutputTUI Output = "tui"
	// OutputBackground starts the command without waiting for it.
	OutputBackground Output = "background"
	// OutputPipe streams stdout to the writer given by the caller.
	OutputPipe Output = "pipe"
)

// Outputs are all valid [Output] modes.
var Outputs = []Output{
	OutputLog,
	OutputStdout,
	OutputInteractive,
	OutputTUI,
	OutputBackground,
	OutputPipe,
}

// IsValid returns if the output mode is known.
func (o Output) IsValid() bool {
	return slices.Contains(Outputs, o)
}

// Attached returns if the terminal is attached to the command.
func (o Output) Attached() bool {
	return o == OutputInteractive || o == OutputTUI
}

// String implements [fmt.Stringer].
func (o *Output) String() string {
	return string(*o)
}

// Set implements [pflag.Value].
func (o *Output) Set(s string) error {
	output := Output(s)
	if !output.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidOutput, s)
	}

	*o = output

	return nil
}

// Type implements [pflag.Value].
func (*Output) Type() string {
	return "output"
}
