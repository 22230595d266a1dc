// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pmaports_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const testTree = "testdata/pmaports"

func TestFind(t *testing.T) {
	tree := pmaports.New(testTree)

	tests := []struct {
		pkgname     string
		expected    string
		expectedErr error
	}{
		{"hello-world", "main/hello-world", nil},
		{"device-vendor-one", "device/testing/device-vendor-one", nil},
		{"hello-world-doc", "main/hello-world", nil},
		{"hello", "main/hello-world", nil},
		{"device-vendor-one-nonfree-firmware", "device/testing/device-vendor-one", nil},
		{"does-not-exist", "", pmaports.ErrPackageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.pkgname, func(t *testing.T) {
			dir, err := tree.Find(tt.pkgname)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expected != "" {
				assert.Equal(t, filepath.Join(testTree, tt.expected), dir)
			}
		})
	}
}

func TestGet(t *testing.T) {
	tree := pmaports.New(testTree)

	parsed, err := tree.Get("hello-world-doc")
	require.NoError(t, err)
	assert.Equal(t, "hello-world", parsed.Pkgname)
}

func TestCheckArch(t *testing.T) {
	tests := []struct {
		name     string
		archs    []string
		arch     sys.Arch
		expected bool
	}{
		{"exact", []string{"aarch64"}, sys.AArch64, true},
		{"other", []string{"armv7"}, sys.AArch64, false},
		{"all", []string{"all"}, sys.X86, true},
		{"noarch", []string{"noarch"}, sys.ARMHF, true},
		{"excluded", []string{"all", "!armhf"}, sys.ARMHF, false},
		{"not excluded", []string{"all", "!armhf"}, sys.ARMv7, true},
		{"empty", nil, sys.X86_64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pmaports.CheckArch(tt.archs, tt.arch))
		})
	}
}

func TestListCodenamesAndVendors(t *testing.T) {
	tree := pmaports.New(testTree)

	codenames, err := tree.ListCodenames("")
	require.NoError(t, err)
	assert.Equal(t, []string{"other-three", "vendor-one", "vendor-two"}, codenames)

	codenames, err = tree.ListCodenames("vendor")
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor-one", "vendor-two"}, codenames)

	vendors, err := tree.ListVendors()
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "vendor"}, vendors)
}

func TestListAPKBUILDsAndDeviceinfos(t *testing.T) {
	tree := pmaports.New(testTree)

	apkbuilds, err := tree.ListAPKBUILDs()
	require.NoError(t, err)
	require.Len(t, apkbuilds, 3)
	assert.Equal(t, "device-vendor-two", apkbuilds["vendor-two"].Pkgname)

	infos, err := tree.ListDeviceinfos()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, sys.X86_64, infos["other-three"].Arch())
}

func TestListUIs(t *testing.T) {
	tree := pmaports.New(testTree)

	uis, err := tree.ListUIs(sys.AArch64)
	require.NoError(t, err)

	expected := []pmaports.UI{
		{"none", "No graphical environment"},
		{"weston", "(Wayland) Reference compositor"},
	}
	assert.Equal(t, expected, uis)

	uis, err = tree.ListUIs(sys.X86_64)
	require.NoError(t, err)
	assert.Len(t, uis, 4)

	extras, err := tree.UIHasExtras("weston")
	require.NoError(t, err)
	assert.True(t, extras)
}

func TestNonfreePackages(t *testing.T) {
	tree := pmaports.New(testTree)

	device, err := tree.Get("device-vendor-one")
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"device-vendor-one-nonfree-firmware"},
		pmaports.NonfreePackages(device, "vendor-one", true, true),
	)
	assert.Empty(t, pmaports.NonfreePackages(device, "vendor-one", false, true))
}
