// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/z3ntu/pmbootstrap/internal/pipe"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// killedExitCode is reported for commands killed due to output timeout.
const killedExitCode = -9

// Exec is a [Runner] that executes commands on the host.
//
// The zero value discards all output and has no output timeout.
type Exec struct {
	// Log receives the output of all commands except [OutputTUI] ones.
	Log io.Writer

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// DetailsToStdout writes the output of [OutputLog] commands to Stdout
	// as well.
	DetailsToStdout bool

	// Timeout is the default output timeout.
	Timeout time.Duration

	logOnce sync.Once
	log     io.Writer
	termMu  sync.Mutex
}

var _ Runner = (*Exec)(nil)

// Run runs the given command.
func (e *Exec) Run(ctx context.Context, cmd Cmd) (Result, error) {
	err := SanityCheck(cmd)
	if err != nil {
		return Result{}, err
	}

	output := cmd.output()
	flat := Flat(cmd.Args, cmd.Dir, cmd.Env)

	slog.Debug("Run command",
		slog.String("output", string(output)),
		slog.String("cmd", flat),
	)

	_, _ = fmt.Fprintf(e.logWriter(), "%% %s\n", flat)

	proc := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	proc.Dir = cmd.Dir

	if len(cmd.Env) > 0 {
		proc.Env = os.Environ()
		for _, key := range slices.Sorted(maps.Keys(cmd.Env)) {
			proc.Env = append(proc.Env, key+"="+cmd.Env[key])
		}
	}

	switch output {
	case OutputTUI:
		return e.runAttached(proc, cmd)
	case OutputBackground:
		return e.runBackground(proc)
	default:
		return e.runPiped(proc, cmd)
	}
}

func (e *Exec) logWriter() io.Writer {
	e.logOnce.Do(func() {
		if e.Log == nil {
			e.log = io.Discard
		} else {
			e.log = &syncWriter{mu: new(sync.Mutex), w: e.Log}
		}
	})

	return e.log
}

func (e *Exec) stdoutWriter() io.Writer {
	if e.Stdout == nil {
		return io.Discard
	}

	return &syncWriter{mu: &e.termMu, w: e.Stdout}
}

func (e *Exec) stderrWriter() io.Writer {
	if e.Stderr == nil {
		return io.Discard
	}

	return &syncWriter{mu: &e.termMu, w: e.Stderr}
}

func (e *Exec) outputTimeout(cmd Cmd) time.Duration {
	output := cmd.output()
	if output != OutputLog && output != OutputStdout {
		return 0
	}

	if cmd.Timeout != 0 {
		return max(cmd.Timeout, 0)
	}

	return e.Timeout
}

func (e *Exec) runAttached(proc *exec.Cmd, cmd Cmd) (Result, error) {
	// Pass the files as they are, so the command gets the terminal.
	proc.Stdin = e.Stdin
	proc.Stdout = e.Stdout
	proc.Stderr = e.Stderr

	err := proc.Run()

	return finish(cmd, proc.ProcessState, err, nil, "")
}

func (e *Exec) runBackground(proc *exec.Cmd) (Result, error) {
	proc.Stdout = e.logWriter()
	proc.Stderr = e.logWriter()

	err := proc.Start()
	if err != nil {
		return Result{}, fmt.Errorf("start: %w", err)
	}

	return Result{Wait: proc.Wait}, nil
}

func (e *Exec) runPiped(proc *exec.Cmd, cmd Cmd) (Result, error) {
	output := cmd.output()

	stdoutWriters := []io.Writer{e.logWriter()}
	stderrWriters := []io.Writer{e.logWriter()}

	if output == OutputStdout || output == OutputInteractive ||
		(output == OutputLog && e.DetailsToStdout) {
		stdoutWriters = append(stdoutWriters, e.stdoutWriter())
		stderrWriters = append(stderrWriters, e.stderrWriter())
	}

	if output == OutputPipe {
		stdoutWriters = []io.Writer{cmd.Stdout}
	}

	var returned bytes.Buffer
	if cmd.ReturnOutput {
		stdoutWriters = append(stdoutWriters, &returned)
	}

	if output == OutputInteractive {
		proc.Stdin = e.Stdin
	} else {
		// Own process group, so the command can be killed with all its
		// children.
		proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stdoutPipe, err := proc.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}

	stderrPipe, err := proc.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	err = proc.Start()
	if err != nil {
		return Result{}, fmt.Errorf("start: %w", err)
	}

	var watchdog *pipe.Watchdog

	if timeout := e.outputTimeout(cmd); timeout > 0 {
		pgid := proc.Process.Pid
		watchdog = pipe.NewWatchdog(timeout, func() {
			killGroup(pgid, cmd.KillAsRoot)
		})
		stdoutWriters = append(stdoutWriters, watchdog)
		stderrWriters = append(stderrWriters, watchdog)
	}

	var pipes pipe.Pipes

	pipes.Run(&pipe.Pipe{
		Name:        "stdout",
		Input:       stdoutPipe,
		Output:      io.MultiWriter(stdoutWriters...),
		CopyFunc:    pipe.CopyLines,
		MayBeSilent: true,
	})
	pipes.Run(&pipe.Pipe{
		Name:        "stderr",
		Input:       stderrPipe,
		Output:      io.MultiWriter(stderrWriters...),
		CopyFunc:    pipe.CopyLines,
		MayBeSilent: true,
	})

	pipesErr := pipes.Wait(0)
	waitErr := proc.Wait()

	if watchdog != nil {
		timeoutErr := watchdog.Stop()
		if timeoutErr != nil {
			slog.Warn("Command killed after output timeout",
				slog.String("cmd", cmd.Args[0]),
				slog.Duration("timeout", e.outputTimeout(cmd)),
			)

			return finish(cmd, nil, nil, timeoutErr, returned.String())
		}
	}

	if pipesErr != nil {
		return Result{}, fmt.Errorf("copy output: %w", pipesErr)
	}

	return finish(cmd, proc.ProcessState, waitErr, nil, returned.String())
}

func finish(
	cmd Cmd,
	state *os.ProcessState,
	waitErr error,
	timeoutErr error,
	output string,
) (Result, error) {
	result := Result{Output: output}

	var exitErr *exec.ExitError

	switch {
	case timeoutErr != nil:
		result.ExitCode = killedExitCode
	case waitErr == nil:
		result.ExitCode = state.ExitCode()
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("run %s: %w", cmd.Args[0], waitErr)
	}

	if result.ExitCode != 0 && cmd.Checked() {
		return result, &CommandError{
			Args:     cmd.Args,
			ExitCode: result.ExitCode,
			Err:      timeoutErr,
		}
	}

	return result, nil
}

func killGroup(pgid int, asRoot bool) {
	if !asRoot || sys.IsRoot() {
		err := sys.KillProcessGroup(pgid)
		if err != nil {
			slog.Warn("Kill failed", slog.Any("error", err))
		}

		return
	}

	//nolint:gosec,noctx
	err := exec.Command("sudo", "kill", "-9", "--", "-"+strconv.Itoa(pgid)).Run()
	if err != nil {
		slog.Warn("Kill as root failed", slog.Any("error", err))
	}
}

type syncWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.w.Write(p) //nolint:wrapcheck
}
