// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

func TestAbsoluteFilePath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     string
		expected  string
		expectErr error
	}{
		{
			name:      "empty",
			expectErr: sys.ErrEmptyFilePath,
		},
		{
			name:     "absolute",
			input:    "/tmp/../work",
			expected: "/work",
		},
		{
			name:     "relative",
			input:    "work",
			expected: filepath.Join(cwd, "work"),
		},
		{
			name:     "home",
			input:    "~/.local/var/pmbootstrap",
			expected: "/home/tester/.local/var/pmbootstrap",
		},
		{
			name:     "tilde in the middle",
			input:    "/a/~/b",
			expected: "/a/~/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := sys.AbsoluteFilePath(tt.input)
			require.ErrorIs(t, err, tt.expectErr)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestFilePathCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	require.NoError(t, sys.FilePath(file).Check())
	require.ErrorIs(t, sys.FilePath(dir).Check(), sys.ErrNotRegularFile)
	require.ErrorIs(t, sys.FilePath(filepath.Join(dir, "missing")).Check(), os.ErrNotExist)
}

func TestMissingProgramsError(t *testing.T) {
	err := &sys.MissingProgramsError{Programs: []string{"git", "openssl"}}

	//nolint:testifylint
	assert.ErrorIs(t, error(err), &sys.MissingProgramsError{})
	assert.NotErrorIs(t, assert.AnError, &sys.MissingProgramsError{})
	assert.Contains(t, err.Error(), "git, openssl")
}

func TestRequirePrograms(t *testing.T) {
	err := sys.RequirePrograms("sh", "surely-not-installed-program")

	var missingErr *sys.MissingProgramsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"surely-not-installed-program"}, missingErr.Programs)
}
