// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependencyName(t *testing.T) {
	tests := []struct {
		dep      string
		expected string
		ok       bool
	}{
		{"linux-headers", "linux-headers", true},
		{"python3>=3.11", "python3", true},
		{"busybox~1.36", "busybox", true},
		{"musl-dev<2", "musl-dev", true},
		{"!postmarketos-mkinitfs", "", false},
		{"so:libc.musl-aarch64.so.1", "", false},
		{"cmd:sh", "", false},
		{"pc:glib-2.0", "", false},
		{"=1.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.dep, func(t *testing.T) {
			name, ok := dependencyName(tt.dep)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}
