// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package run executes external commands on the host.
//
// All heavy lifting of pmbootstrap is done by external programs. Their output
// is copied into the log file and, depending on the [Output] mode, to the
// terminal. Commands that stop producing output for too long are killed.
package run
