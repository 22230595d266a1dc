// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/qemu"
)

func TestChoiceValue(t *testing.T) {
	var value string

	choice := newChoiceValue(&value, "ext4", "f2fs", "btrfs")

	assert.Equal(t, "{ext4,f2fs,btrfs}", choice.Type())

	err := choice.Set("xfs")
	require.ErrorIs(t, err, ErrInvalidChoice)
	assert.Empty(t, value)

	err = choice.Set("f2fs")
	require.NoError(t, err)
	assert.Equal(t, "f2fs", value)
	assert.Equal(t, "f2fs", choice.String())
}

func TestSizeValue(t *testing.T) {
	tests := []struct {
		input       string
		expectedErr error
	}{
		{input: "2G"},
		{input: "4096M"},
		{input: "2T", expectedErr: qemu.ErrInvalidImageSize},
		{input: "G", expectedErr: qemu.ErrInvalidImageSize},
		{input: "", expectedErr: qemu.ErrInvalidImageSize},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var value string

			err := (&sizeValue{value: &value}).Set(tt.input)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr == nil {
				assert.Equal(t, tt.input, value)
			} else {
				assert.Empty(t, value)
			}
		})
	}
}

func TestBoolPtrFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected *bool
	}{
		{
			name: "unset",
		},
		{
			name:     "set",
			args:     []string{"--split"},
			expected: ptr(true),
		},
		{
			name:     "negated",
			args:     []string{"--no-split"},
			expected: ptr(false),
		},
		{
			name:     "last wins",
			args:     []string{"--no-split", "--split"},
			expected: ptr(true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value *bool

			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			boolPtrFlags(fs, &value, "split", "split", "no split")

			err := fs.Parse(tt.args)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, value)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
