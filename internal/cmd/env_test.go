// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/z3ntu/pmbootstrap/internal/cmd"
)

func TestEnvArgs(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		output []string
	}{
		{
			name:   "empty",
			env:    "",
			output: []string{},
		},
		{
			name:   "multiple args",
			env:    "--details-to-stdout  -y",
			output: []string{"--details-to-stdout", "-y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(cmd.EnvVarArgs, tt.env)
			assert.Equal(t, tt.output, cmd.EnvArgs())
		})
	}
}

func TestMergedArgs(t *testing.T) {
	t.Setenv(cmd.EnvVarArgs, "-y -w /tmp/env")

	actual := cmd.MergedArgs([]string{"-w", "/tmp/arg", "status"})

	assert.Equal(t, []string{"-y", "-w", "/tmp/env", "-w", "/tmp/arg", "status"}, actual,
		"arguments from the environment should come first")
}
