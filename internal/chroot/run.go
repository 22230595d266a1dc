// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"context"
	"io"
	"maps"
	"time"

	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

// Options are the options for commands run inside a chroot.
type Options struct {
	// Dir is the working directory inside the chroot. It defaults to "/".
	Dir string
	// Env is added to the default environment of the chroot.
	Env          map[string]string
	Output       run.Output
	ReturnOutput bool
	Check        *bool
	Timeout      time.Duration
	Stdout       io.Writer
}

// Env returns the environment commands in chroots start with.
func Env() map[string]string {
	return map[string]string{
		"CHARSET":  "UTF-8",
		"HISTFILE": "~/.ash_history",
		"HOME":     "/root",
		"PATH":     config.ChrootPath,
		"SHELL":    "/bin/ash",
		"TERM":     "xterm",
	}
}

// RootCommand returns the host command that runs args as root inside the
// chroot at the given path.
//
// The environment is cleared with "env -i", as sudo would otherwise keep
// parts of the host environment.
func RootCommand(path string, args []string, opts Options) []string {
	dir := opts.Dir
	if dir == "" {
		dir = "/"
	}

	env := Env()
	maps.Copy(env, opts.Env)

	inner := []string{"chroot", path, "/bin/sh", "-c", run.Flat(args, dir, nil)}

	return []string{"env", "-i", "sh", "-c", run.Flat(inner, "", env)}
}

// UserCommand returns the command that runs args as the "pmos" user inside
// a chroot. It must be run with [RootCommand].
func UserCommand(args []string, env map[string]string) []string {
	env = maps.Clone(env)
	if env == nil {
		env = make(map[string]string)
	}

	if _, exists := env["HOME"]; !exists {
		env["HOME"] = "/home/pmos"
	}

	return []string{"busybox", "su", "pmos", "-c", run.Flat(args, "", env)}
}

// Root runs the command as root inside the chroot. The chroot is not
// initialized implicitly.
func (m *Manager) Root(ctx context.Context, c Chroot, args []string, opts Options) (run.Result, error) {
	return run.Root(ctx, m.Runner, run.Cmd{
		Args:         RootCommand(m.Path(c), args, opts),
		Output:       opts.Output,
		ReturnOutput: opts.ReturnOutput,
		Check:        opts.Check,
		Timeout:      opts.Timeout,
		Stdout:       opts.Stdout,
	})
}

// User runs the command as the "pmos" user inside the chroot.
func (m *Manager) User(ctx context.Context, c Chroot, args []string, opts Options) (run.Result, error) {
	args = UserCommand(args, opts.Env)
	opts.Env = nil

	return m.Root(ctx, c, args, opts)
}

// UserExists returns if the user exists inside the chroot.
func (m *Manager) UserExists(ctx context.Context, c Chroot, name string) (bool, error) {
	result, err := m.Root(ctx, c, []string{"getent", "passwd", name}, Options{
		ReturnOutput: true,
		Check:        run.Bool(false),
	})
	if err != nil {
		return false, err
	}

	return result.Output != "", nil
}
