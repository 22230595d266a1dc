// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/prompt"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

const testAports = "../pmaports/testdata/pmaports"

type testApp struct {
	*app
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newTestApp() *testApp {
	ta := &testApp{}
	ta.app = newApp(IO{
		Stdin:  strings.NewReader(""),
		Stdout: &ta.stdout,
		Stderr: &ta.stderr,
	})
	ta.skipChecks = true

	return ta
}

// baseArgs returns the flags that keep a test run inside a temporary
// directory.
func baseArgs(t *testing.T) []string {
	t.Helper()

	dir := t.TempDir()

	return []string{
		"--config", filepath.Join(dir, "pmbootstrap.cfg"),
		"--work", filepath.Join(dir, "work"),
		"--aports", testAports,
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedExitCode int
		expectedOutput   string
	}{
		{
			name:             "no error",
			expectedExitCode: ExitOK,
		},
		{
			name:             "parse args error",
			err:              &ParseArgsError{msg: "missing action"},
			expectedExitCode: ExitUsage,
			expectedOutput:   "Error: missing action\nUsage:",
		},
		{
			name:             "aborted",
			err:              prompt.ErrAborted,
			expectedExitCode: ExitError,
			expectedOutput:   "Aborted.",
		},
		{
			name: "command error",
			err: &run.CommandError{
				Args:     []string{"apk", "add"},
				ExitCode: 3,
			},
			expectedExitCode: ExitError,
			expectedOutput:   "command failed: apk add (exit code 3)",
		},
		{
			name:             "any error",
			err:              assert.AnError,
			expectedExitCode: ExitError,
			expectedOutput:   assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp()
			setupLogging(&ta.stderr, 0, nil)

			actualExitCode := ta.handleError(tt.err, &cobra.Command{Use: "test"})

			assert.Equal(t, tt.expectedExitCode, actualExitCode,
				"exit code should be as expected")
			assert.Contains(t, ta.stderr.String(), tt.expectedOutput,
				"stderr output should be as expected")
		})
	}
}

func TestExecute_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "unknown action",
			args: []string{"frobnicate"},
		},
		{
			name: "unknown flag",
			args: []string{"status", "--frobnicate"},
		},
		{
			name: "install output conflict",
			args: []string{"install", "--sdcard", "/dev/mmcblk0", "--no-image"},
		},
		{
			name: "sparse conflict",
			args: []string{"install", "--sparse", "--no-sparse"},
		},
		{
			name: "chroot type conflict",
			args: []string{"chroot", "--rootfs", "--suffix", "native"},
		},
		{
			name: "invalid filesystem",
			args: []string{"install", "--filesystem", "xfs"},
		},
		{
			name: "memory out of range",
			args: []string{"qemu", "--memory", "64"},
		},
		{
			name: "missing flasher action",
			args: []string{"flasher"},
		},
		{
			name: "missing kconfig action",
			args: []string{"kconfig"},
		},
		{
			name: "build without package",
			args: []string{"build"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp()
			defer ta.close()

			exitCode := ta.execute(t.Context(), append(baseArgs(t), tt.args...))

			assert.Equal(t, ExitUsage, exitCode, "stderr: %s", ta.stderr.String())
			assert.Contains(t, ta.stderr.String(), "Usage:")
		})
	}
}

func TestExecute_Config(t *testing.T) {
	args := baseArgs(t)

	set := newTestApp()
	exitCode := set.execute(t.Context(), append(args, "config", "user", "alice"))
	set.close()
	require.Equal(t, ExitOK, exitCode, "stderr: %s", set.stderr.String())

	get := newTestApp()
	exitCode = get.execute(t.Context(), append(args, "config", "user"))
	get.close()
	require.Equal(t, ExitOK, exitCode, "stderr: %s", get.stderr.String())
	assert.Equal(t, "alice\n", get.stdout.String())

	reset := newTestApp()
	exitCode = reset.execute(t.Context(), append(args, "config", "-r", "user"))
	reset.close()
	require.Equal(t, ExitOK, exitCode, "stderr: %s", reset.stderr.String())

	all := newTestApp()
	exitCode = all.execute(t.Context(), append(args, "config"))
	all.close()
	require.Equal(t, ExitOK, exitCode, "stderr: %s", all.stderr.String())
	assert.Contains(t, all.stdout.String(), "user = user\n")

	unknown := newTestApp()
	exitCode = unknown.execute(t.Context(), append(args, "config", "does_not_exist"))
	unknown.close()
	assert.Equal(t, ExitError, exitCode)
}

func TestExecute_APKBUILDParse(t *testing.T) {
	ta := newTestApp()
	defer ta.close()

	exitCode := ta.execute(t.Context(), append(baseArgs(t), "apkbuild_parse", "hello-world"))
	require.Equal(t, ExitOK, exitCode, "stderr: %s", ta.stderr.String())

	assert.True(t, strings.HasPrefix(ta.stdout.String(), "hello-world:\n"),
		"output should be keyed by package name: %s", ta.stdout.String())
	assert.Contains(t, ta.stdout.String(), "  pkgname: hello-world\n")
}

func TestExecute_Version(t *testing.T) {
	ta := newTestApp()
	defer ta.close()

	exitCode := ta.execute(t.Context(), []string{"--version"})
	require.Equal(t, ExitOK, exitCode)

	assert.Contains(t, ta.stdout.String(), "pmbootstrap version")
}

func TestSelectChroot(t *testing.T) {
	tests := []struct {
		name        string
		flags       chrootFlags
		expected    string
		expectedErr error
	}{
		{
			name:     "default native",
			expected: "native",
		},
		{
			name:     "rootfs",
			flags:    chrootFlags{rootfs: true},
			expected: "rootfs_qemu-aarch64",
		},
		{
			name:     "buildroot of device",
			flags:    chrootFlags{buildroot: buildrootDeviceArch},
			expected: "buildroot_aarch64",
		},
		{
			name:     "buildroot of other arch",
			flags:    chrootFlags{buildroot: "armv7", user: true},
			expected: "buildroot_armv7",
		},
		{
			name:        "buildroot of invalid arch",
			flags:       chrootFlags{buildroot: "sparc"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:     "suffix",
			flags:    chrootFlags{suffix: "installer_qemu-aarch64"},
			expected: "installer_qemu-aarch64",
		},
		{
			name:        "invalid suffix",
			flags:       chrootFlags{suffix: "chroot"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "user in rootfs",
			flags:       chrootFlags{rootfs: true, user: true},
			expectedErr: ErrUserInRootfs,
		},
		{
			name:        "user in installer",
			flags:       chrootFlags{suffix: "installer_qemu-aarch64", user: true},
			expectedErr: ErrUserInRootfs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := tt.flags.selectChroot("qemu-aarch64", "aarch64")
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr == nil {
				assert.Equal(t, tt.expected, actual.String())
			}
		})
	}
}

func TestHostTimezone(t *testing.T) {
	dir := t.TempDir()

	zone := filepath.Join(dir, "zone")
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/Europe/Berlin", zone))

	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, nil, 0o600))

	assert.Equal(t, "Europe/Berlin", hostTimezone(zone))
	assert.Empty(t, hostTimezone(plain))
	assert.Empty(t, hostTimezone(filepath.Join(dir, "missing")))
}

func TestChoicesRegex(t *testing.T) {
	assert.Equal(t, `(edge|v25\.06)$`, choicesRegex([]string{"edge", "v25.06"}))
}
