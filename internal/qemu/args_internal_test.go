// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsName(t *testing.T) {
	a := UniqueArg("some")
	assert.Equal(t, "some", a.Name())
	assert.Equal(t, "-some", a.String())
}

func TestArgsValue(t *testing.T) {
	a := RepeatableArg("drive").With("file", "a.img").With("format", "raw")
	assert.Equal(t, "file=a.img,format=raw", a.Value())
	assert.Equal(t, "-drive file=a.img,format=raw", a.String())
}

func TestArgsWithCopies(t *testing.T) {
	base := RepeatableArg("device", "AC97")
	first := base.With("audiodev", "one")
	second := base.With("audiodev", "two")

	assert.Equal(t, "AC97", base.Value())
	assert.Equal(t, "AC97,audiodev=one", first.Value())
	assert.Equal(t, "AC97,audiodev=two", second.Value())
}

func TestArgsOption(t *testing.T) {
	a := RepeatableArg("nic", "user", "model=virtio-net-pci").With("hostfwd", "tcp::22-:22")

	value, found := a.Option("model")
	require.True(t, found)
	assert.Equal(t, "virtio-net-pci", value)

	_, found = a.Option("user")
	assert.False(t, found, "bare words are no key=value options")
}

func TestArgsUniqueName(t *testing.T) {
	assert.True(t, UniqueArg("m").UniqueName())
	assert.False(t, RepeatableArg("device").UniqueName())
}

func TestArgsEqual(t *testing.T) {
	tests := []struct {
		name  string
		a     Argument
		b     Argument
		equal bool
	}{
		{
			name:  "both empty",
			a:     Argument{},
			b:     Argument{},
			equal: true,
		},
		{
			name:  "one empty",
			a:     UniqueArg("t"),
			b:     Argument{},
			equal: false,
		},
		{
			name:  "same name",
			a:     UniqueArg("t", "5"),
			b:     UniqueArg("t", "6"),
			equal: true,
		},
		{
			name:  "same repeatable name",
			a:     RepeatableArg("t", "5"),
			b:     RepeatableArg("t", "6"),
			equal: false,
		},
		{
			name:  "same repeatable name and value",
			a:     RepeatableArg("t", "5"),
			b:     RepeatableArg("t", "5"),
			equal: true,
		},
		{
			name:  "same id",
			a:     RepeatableArg("t", "5").With("id", "x"),
			b:     RepeatableArg("t", "6").With("id", "x"),
			equal: true,
		},
		{
			name:  "one id",
			a:     RepeatableArg("t", "5").With("id", "x"),
			b:     RepeatableArg("t", "5"),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.equal {
				assert.True(t, tt.a.Equal(tt.b), "a")
				assert.True(t, tt.b.Equal(tt.a), "b")
			} else {
				assert.False(t, tt.a.Equal(tt.b), "a")
				assert.False(t, tt.b.Equal(tt.a), "b")
			}
		})
	}
}

func TestCommandSpecArguments(t *testing.T) {
	spec := CommandSpec{
		Cmdline: "console=ttyS0",
		Video:   "800x600@60",
		Display: "gtk",
		GL:      true,
		archCPU: "cortex-a57",
	}

	tests := []struct {
		name     string
		expected string
	}{
		{
			name:     "append",
			expected: "console=ttyS0 video=800x600@60",
		},
		{
			name:     "cpu",
			expected: "host",
		},
		{
			name:     "display",
			expected: "gtk,gl=on",
		},
	}

	args := spec.arguments()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := argValue(args, tt.name)
			require.True(t, found, "argument should be present")
			assert.Equal(t, tt.expected, value)
		})
	}
}

func argValue(args []Argument, name string) (string, bool) {
	for _, arg := range args {
		if arg.name == name {
			return arg.Value(), true
		}
	}

	return "", false
}
