// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package deviceinfo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const aports = "testdata/aports"

func TestFind(t *testing.T) {
	info, err := deviceinfo.Find(aports, "test-device")
	require.NoError(t, err)

	assert.Equal(t, "test-device", info.Codename())
	assert.Equal(t, "handset", info.Chassis())
	assert.Equal(t, sys.AArch64, info.Arch())
	assert.Equal(t, "fastboot", info.FlashMethod())
	assert.Equal(t, "console=tty0 quiet=1", info.KernelCmdline())
	assert.Equal(t, []string{"us", "de"}, info.Keymaps())
	assert.Equal(t, []string{"boot", "recovery"}, info.List("partition_blacklist"))
	assert.True(t, info.Bool("generate_bootimg"))
	assert.False(t, info.Bool("bootimg_qcdt"))

	// No substitution.
	assert.Equal(t, "$pagesize", info["flash_pagesize"])

	// Known but unset attributes default to empty.
	value, exists := info["flash_offset_base"]
	assert.True(t, exists)
	assert.Empty(t, value)
}

func TestFindErrors(t *testing.T) {
	tests := []struct {
		device      string
		expectedErr error
	}{
		{"does-not-exist", deviceinfo.ErrDeviceNotFound},
		{"obsolete", deviceinfo.ErrObsoleteKey},
		{"no-chassis", deviceinfo.ErrInvalidChassis},
	}

	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			_, err := deviceinfo.Find(aports, tt.device)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestSanityCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-foo", "deviceinfo")

	tests := []struct {
		name        string
		info        deviceinfo.Deviceinfo
		expectedErr error
	}{
		{
			name: "valid",
			info: deviceinfo.Deviceinfo{"codename": "foo", "chassis": "tablet"},
		},
		{
			name:        "wrong codename",
			info:        deviceinfo.Deviceinfo{"codename": "bar", "chassis": "tablet"},
			expectedErr: deviceinfo.ErrInvalidCodename,
		},
		{
			name:        "unknown chassis",
			info:        deviceinfo.Deviceinfo{"codename": "foo", "chassis": "phone"},
			expectedErr: deviceinfo.ErrInvalidChassis,
		},
		{
			name: "obsolete date",
			info: deviceinfo.Deviceinfo{
				"codename": "foo",
				"chassis":  "tablet",
				"date":     "2020",
			},
			expectedErr: deviceinfo.ErrObsoleteKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := deviceinfo.SanityCheck(tt.info, path)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deviceinfo")
	require.NoError(t, os.WriteFile(path, []byte("deviceinfo_codename\n"), 0o600))

	_, err := deviceinfo.Parse(path)
	require.ErrorIs(t, err, deviceinfo.ErrSyntax)
}
