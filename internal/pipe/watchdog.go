// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipe

import (
	"sync/atomic"
	"time"
)

// Watchdog calls its kill function if nothing was written to it for the
// configured timeout.
//
// It implements [io.Writer], so it can be added to the output of [Pipe]s
// with [io.MultiWriter].
type Watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

// NewWatchdog creates a new started [Watchdog].
func NewWatchdog(timeout time.Duration, kill func()) *Watchdog {
	watchdog := &Watchdog{timeout: timeout}
	watchdog.timer = time.AfterFunc(timeout, func() {
		watchdog.fired.Store(true)
		kill()
	})

	return watchdog
}

// Write resets the timer. It never fails.
func (w *Watchdog) Write(p []byte) (int, error) {
	if !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}

	return len(p), nil
}

// Stop stops the watchdog. It returns [ErrOutputTimeout] if the kill function
// has been called.
func (w *Watchdog) Stop() error {
	w.timer.Stop()

	if w.fired.Load() {
		return ErrOutputTimeout
	}

	return nil
}
