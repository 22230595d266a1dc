// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipe provides the concurrent transport of subprocess output into
// the log file and the terminal.
//
// A [Watchdog] can be put in the output path of a pipe to detect commands
// that stopped producing output.
package pipe
