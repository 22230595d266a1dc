// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipe

import (
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pipe copies everything read from Input into Output using CopyFunc.
type Pipe struct {
	Name     string
	Input    io.Reader
	Output   io.Writer
	CopyFunc CopyFunc

	// MayBeSilent allows the pipe to not transport any data.
	MayBeSilent bool
}

// Pipes runs multiple [Pipe]s concurrently.
//
// The zero value is ready to use.
type Pipes struct {
	group   errgroup.Group
	mu      sync.Mutex
	pipes   []*Pipe
	written map[string]int64
}

// Run starts copying for the given pipe in a separate goroutine.
func (p *Pipes) Run(pipe *Pipe) {
	p.mu.Lock()
	p.pipes = append(p.pipes, pipe)
	p.mu.Unlock()

	copyFunc := pipe.CopyFunc
	if copyFunc == nil {
		copyFunc = io.Copy
	}

	p.group.Go(func() error {
		n, err := copyFunc(pipe.Output, pipe.Input)

		p.mu.Lock()
		if p.written == nil {
			p.written = make(map[string]int64)
		}

		p.written[pipe.Name] += n
		p.mu.Unlock()

		if err != nil {
			return &Error{Name: pipe.Name, Err: err}
		}

		if n == 0 && !pipe.MayBeSilent {
			return &Error{Name: pipe.Name, Err: ErrNoOutput}
		}

		return nil
	})
}

// Wait waits for all pipes to finish.
//
// If timeout is greater than zero and the pipes did not finish within it,
// [ErrWaitTimeout] is returned. The pipes keep running in this case until
// their inputs are closed.
func (p *Pipes) Wait(timeout time.Duration) error {
	done := make(chan error, 1)

	go func() {
		done <- p.group.Wait()
	}()

	if timeout <= 0 {
		return <-done
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Len returns the number of pipes started.
func (p *Pipes) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.pipes)
}

// BytesWritten returns the number of bytes written by each pipe.
func (p *Pipes) BytesWritten() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make(map[string]int64, len(p.written))
	for name, n := range p.written {
		result[name] = n
	}

	return result
}

// IsNoOutput returns if the error is only caused by silent pipes.
func IsNoOutput(err error) bool {
	return errors.Is(err, ErrNoOutput)
}
