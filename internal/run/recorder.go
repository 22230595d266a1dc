// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"context"
	"strings"
	"sync"
)

// Recorder is a [Runner] that does not run anything but records the commands.
//
// It is used in tests of packages that run commands.
type Recorder struct {
	// Handler returns the result for a command. If nil, all commands succeed
	// without output.
	Handler func(cmd Cmd) (Result, error)

	mu   sync.Mutex
	cmds []Cmd
}

var _ Runner = (*Recorder)(nil)

// Run records the command and returns the result of the Handler.
func (r *Recorder) Run(_ context.Context, cmd Cmd) (Result, error) {
	err := SanityCheck(cmd)
	if err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()

	if r.Handler == nil {
		return Result{}, nil
	}

	return r.Handler(cmd)
}

// Cmds returns all recorded commands.
func (r *Recorder) Cmds() []Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Cmd(nil), r.cmds...)
}

// Lines returns all recorded commands with arguments joined by spaces.
func (r *Recorder) Lines() []string {
	cmds := r.Cmds()
	lines := make([]string, 0, len(cmds))

	for _, cmd := range cmds {
		lines = append(lines, strings.Join(cmd.Args, " "))
	}

	return lines
}

// Reset drops all recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cmds = nil
}

// ReturnOutputs is a Recorder Handler that returns the output mapped to the
// longest matching command line prefix.
func ReturnOutputs(outputs map[string]string) func(Cmd) (Result, error) {
	return func(cmd Cmd) (Result, error) {
		line := strings.Join(cmd.Args, " ")
		match := ""

		for prefix := range outputs {
			if strings.HasPrefix(line, prefix) && len(prefix) > len(match) {
				match = prefix
			}
		}

		if match == "" {
			return Result{}, nil
		}

		return Result{Output: outputs[match]}, nil
	}
}
