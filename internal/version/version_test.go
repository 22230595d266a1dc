// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/version"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a        string
		b        string
		expected int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"1.0", "1", 1},
		{"2.0_rc1", "2.0", -1},
		{"2.0", "2.0_rc1", 1},
		{"5.2.0_rc3", "5.2.0", -1},
		{"1.0_rc1", "1.0_rc2", -1},
		{"1.0_rc1", "1.0", -1},
		{"1.0", "1.0_rc1", 1},
		{"2.0_rc1", "2.0_p1", -1},
		{"1.00_beta2", "1.00", -1},
		{"1.2.3_alpha", "1.2.3_beta", -1},
		{"1.2.3_beta", "1.2.3_pre", -1},
		{"1.0_p1", "1.0", 1},
		{"1.0_git20200101", "1.0", 1},
		{"1.0_cvs", "1.0_p1", -1},
		{"1.0-r1", "1.0", 1},
		{"1.0-r1", "1.0-r10", -1},
		{"1.0a", "1.0", 1},
		{"1.0a", "1.0b", -1},
		{"1.01", "1.1", -1},
		{"0.1", "0.01", 1},
		{"1.001", "1.01", -1},
		{"3.2.4", "4.0.0", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+" "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, version.Compare(tt.a, tt.b))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		version  string
		expected bool
	}{
		{"1.0", true},
		{"5.2.0_rc3", true},
		{"1.0_git20200101", true},
		{"1.0-r1", true},
		{"1.2a", true},
		{"1.0_rc1", true},
		{"1.0a", true},
		{"1.01", true},
		{"", false},
		{"1.0_foo", false},
		{"1.0-1", false},
		{"1.0-", false},
		{"1.0_rc1.2", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.expected, version.Validate(tt.version))
		})
	}
}

func TestCheckString(t *testing.T) {
	tests := []struct {
		version  string
		rule     string
		expected bool
	}{
		{"3.2.4", ">=0.0.0", true},
		{"3.2.4", ">=3.2.4", true},
		{"3.2.4", "<4.0.0", true},
		{"0.0.0", ">=0.0.1", false},
		{"4.0.0", "<4.0.0", false},
		{"4.0.1", "<4.0.0", false},
		{"5.2.0_rc3", "<5.2.0", false},
		{"5.2.0_rc3", ">=5.2.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.version+tt.rule, func(t *testing.T) {
			actual, err := version.CheckString(tt.version, tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestCheckStringInvalidRule(t *testing.T) {
	for _, rule := range []string{"", "=1.0", ">=", "~1.0"} {
		t.Run(rule, func(t *testing.T) {
			_, err := version.CheckString("1.0", rule)
			require.ErrorIs(t, err, version.ErrInvalidRule)
		})
	}
}
