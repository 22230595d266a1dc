// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"fmt"
	"slices"
	"strings"
)

// Argument is a QEMU argument like "-m 1024" or
// "-drive file=rootfs.img,format=raw,if=virtio".
//
// The value is a comma separated option list. Options are either bare words,
// like the backend in "-nic user,model=virtio-net-pci", or key=value pairs.
type Argument struct {
	name       string
	options    []string
	repeatable bool
}

// UniqueArg returns an [Argument] that may be given only once per command.
func UniqueArg(name string, options ...string) Argument {
	return Argument{name: name, options: options}
}

// RepeatableArg returns an [Argument] that may be given multiple times, like
// "-device".
func RepeatableArg(name string, options ...string) Argument {
	return Argument{name: name, options: options, repeatable: true}
}

// With returns a copy of the [Argument] with the key=value option appended.
func (a Argument) With(key, value string) Argument {
	a.options = append(slices.Clip(a.options), key+"="+value)
	return a
}

// String implements [fmt.Stringer].
func (a Argument) String() string {
	if len(a.options) == 0 {
		return "-" + a.name
	}

	return "-" + a.name + " " + a.Value()
}

// Name returns the name of the [Argument] without the leading dash.
func (a Argument) Name() string {
	return a.name
}

// Value returns the comma joined options.
func (a Argument) Value() string {
	return strings.Join(a.options, ",")
}

// Option returns the value of the key=value option with the given key.
func (a Argument) Option(key string) (string, bool) {
	for _, option := range a.options {
		k, v, found := strings.Cut(option, "=")
		if found && k == key {
			return v, true
		}
	}

	return "", false
}

// UniqueName returns if the name may be used only once.
func (a Argument) UniqueName() bool {
	return !a.repeatable
}

// Equal returns if the [Argument]s collide on a QEMU command line.
//
// Unique arguments collide by name. Repeatable arguments collide if their
// values are the same or if they define the same "id" option.
func (a Argument) Equal(other Argument) bool {
	if a.name != other.name {
		return false
	}

	if !a.repeatable || !other.repeatable {
		return true
	}

	if a.Value() == other.Value() {
		return true
	}

	id, found := a.Option("id")
	if !found {
		return false
	}

	otherID, found := other.Option("id")

	return found && id == otherID
}

// BuildArgumentStrings compiles the [Argument]s into the strings passed to the
// QEMU binary.
//
// It returns [ErrArgumentCollision] for the first pair of colliding
// [Argument]s.
func BuildArgumentStrings(args []Argument) ([]string, error) {
	argStrings := make([]string, 0, len(args)*2) //nolint:mnd

	for idx, arg := range args {
		if i := slices.IndexFunc(args[:idx], arg.Equal); i != -1 {
			return nil, fmt.Errorf("%w: %s, %s", ErrArgumentCollision, arg, args[i])
		}

		argStrings = append(argStrings, "-"+arg.name)

		if len(arg.options) > 0 {
			argStrings = append(argStrings, arg.Value())
		}
	}

	return argStrings, nil
}
