// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/kconfig"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
)

func TestIsSet(t *testing.T) {
	config := "CONFIG_A=y\nCONFIG_B=m\nCONFIG_C=n\n# CONFIG_D is not set\nCONFIG_AB=y\n"

	tests := []struct {
		option   string
		expected bool
	}{
		{"A", true},
		{"B", true},
		{"C", false},
		{"D", false},
		{"E", false},
	}

	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			assert.Equal(t, tt.expected, kconfig.IsSet(config, tt.option))
		})
	}
}

func TestCheckConfigVersionRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "good.aarch64"))
	require.NoError(t, err)

	config := string(data)

	tests := []struct {
		name     string
		arch     string
		pkgver   string
		expected bool
	}{
		{"aarch64 new", "aarch64", "5.10.0", true},
		{"aarch64 old", "aarch64", "4.19.0", true},
		{"armv7 new", "armv7", "5.10.0", true},
		{"armv7 old needs LBDAF", "armv7", "4.19.0", false},
		{"armv7 release candidate", "armv7", "5.2.0_rc3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := kconfig.CheckConfig(config, "test", tt.arch, tt.pkgver, true)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestCheckFile(t *testing.T) {
	tests := []struct {
		file        string
		expected    bool
		expectedErr error
	}{
		{"good.aarch64", true, nil},
		{"bad.armv7", false, nil},
		{"no-version.aarch64", false, kconfig.ErrVersionNotFound},
		{"no-arch", false, kconfig.ErrUnknownArch},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ok, err := kconfig.CheckFile(filepath.Join("testdata", tt.file), false)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestExtractVersion(t *testing.T) {
	config := "#\n# Automatically generated file; DO NOT EDIT.\n" +
		"# Linux/arm64 6.1.0-rc1 Kernel Configuration\n"

	kernelVersion, err := kconfig.ExtractVersion(config)
	require.NoError(t, err)
	assert.Equal(t, "6.1.0-rc1", kernelVersion)

	_, err = kconfig.ExtractVersion("# short\n")
	require.ErrorIs(t, err, kconfig.ErrVersionNotFound)
}

func TestCheck(t *testing.T) {
	tree := pmaports.New(filepath.Join("testdata", "pmaports"))

	ok, err := kconfig.Check(tree, "linux-test", true)
	require.NoError(t, err)
	assert.False(t, ok, "armv7 config misses CONFIG_VT")

	_, err = kconfig.Check(tree, "missing", false)
	require.ErrorIs(t, err, pmaports.ErrPackageNotFound)
}
