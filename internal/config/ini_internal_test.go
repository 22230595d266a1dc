// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseINI(t *testing.T) {
	input := `; comment
[first]
Key = value with = sign
url: http://example.org/

[second]
empty =
`

	ini, err := ParseINI(strings.NewReader(input))
	require.NoError(t, err)

	first, exists := ini.Section("first")
	require.True(t, exists)
	assert.Equal(t, []string{"key", "url"}, first.Keys())

	value, _ := first.Get("key")
	assert.Equal(t, "value with = sign", value)

	value, _ = first.Get("url")
	assert.Equal(t, "http://example.org/", value)

	second, exists := ini.Section("second")
	require.True(t, exists)

	value, exists = second.Get("empty")
	assert.True(t, exists)
	assert.Empty(t, value)

	var output strings.Builder

	_, err = ini.WriteTo(&output)
	require.NoError(t, err)

	expected := "[first]\nkey = value with = sign\nurl = http://example.org/\n\n" +
		"[second]\nempty = \n\n"
	assert.Equal(t, expected, output.String())
}

func TestParseINIErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"key outside section", "key = value\n"},
		{"unclosed header", "[section\n"},
		{"missing delimiter", "[section]\nkey\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseINI(strings.NewReader(tt.input))
			require.ErrorIs(t, err, ErrInvalidINI)
		})
	}
}

func TestSectionDelete(t *testing.T) {
	ini := &INI{}
	sec := ini.EnsureSection("s")
	sec.Set("a", "1")
	sec.Set("b", "2")
	sec.Set("a", "3")
	sec.Delete("a")
	sec.Delete("missing")

	assert.Equal(t, []string{"b"}, sec.Keys())
}
