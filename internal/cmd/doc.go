// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmd provides the CLI command entry point for pmbootstrap. It handles
// flag parsing, the checks before each action, error handling and output
// handling.
package cmd
