// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
)

func TestKernels(t *testing.T) {
	aports := filepath.Join("testdata", "aports")

	tests := []struct {
		name        string
		device      string
		expected    map[string]string
		expectedErr error
	}{
		{
			name:   "multiple",
			device: "multiple-kernels",
			expected: map[string]string{
				"mainline":       "Mainline kernel (no charging, no modem)",
				"mainline-modem": "Mainline kernel with modem",
				"downstream":     "Downstream kernel",
			},
		},
		{
			name:   "single",
			device: "single-kernel",
		},
		{
			name:        "missing",
			device:      "does-not-exist",
			expectedErr: apkbuild.ErrDeviceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kernels, err := apkbuild.Kernels(aports, tt.device)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, kernels)
		})
	}
}

func TestDevicePath(t *testing.T) {
	aports := filepath.Join("testdata", "aports")

	path, err := apkbuild.DevicePath(aports, "single-kernel")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(aports, "device", "device-single-kernel", "APKBUILD"), path)
}
