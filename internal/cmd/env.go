// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"os"
	"strings"
)

// EnvVarArgs is the environment variable with additional arguments.
const EnvVarArgs = "PMBOOTSTRAP_ARGS"

// EnvArgs returns pmbootstrap arguments from the environment.
func EnvArgs() []string {
	return strings.Fields(os.Getenv(EnvVarArgs))
}

// MergedArgs returns the arguments from the environment followed by the
// given ones, so the latter take precedence.
func MergedArgs(args []string) []string {
	return append(EnvArgs(), args...)
}
