// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/z3ntu/pmbootstrap/internal/qemu"
)

// choiceValue is a string flag that only accepts one of its choices.
type choiceValue struct {
	value   *string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(value *string, choices ...string) *choiceValue {
	return &choiceValue{value: value, choices: choices}
}

func (c *choiceValue) String() string {
	if c.value == nil {
		return ""
	}

	return *c.value
}

func (c *choiceValue) Set(s string) error {
	if !slices.Contains(c.choices, s) {
		return fmt.Errorf("%w: %q (choose from %s)",
			ErrInvalidChoice, s, strings.Join(c.choices, ", "))
	}

	*c.value = s

	return nil
}

func (c *choiceValue) Type() string {
	return "{" + strings.Join(c.choices, ",") + "}"
}

// sizeValue is a size with unit, like "2G" or "512M".
type sizeValue struct {
	value *string
}

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string {
	if s.value == nil {
		return ""
	}

	return *s.value
}

func (s *sizeValue) Set(str string) error {
	_, err := qemu.ParseImageSize(str)
	if err != nil {
		return err //nolint:wrapcheck
	}

	*s.value = str

	return nil
}

func (*sizeValue) Type() string {
	return "size"
}

// boolPtrValue is a bool flag that can stay unset. Two flags may share the
// same pointer for "--x" and "--no-x" pairs.
type boolPtrValue struct {
	value **bool
	set   bool
}

var _ pflag.Value = (*boolPtrValue)(nil)

func (b *boolPtrValue) String() string {
	return ""
}

func (b *boolPtrValue) Set(string) error {
	value := b.set
	*b.value = &value

	return nil
}

func (*boolPtrValue) Type() string {
	return "bool"
}

func (*boolPtrValue) IsBoolFlag() bool {
	return true
}

// boolPtrFlags registers the pair "--name" and "--no-name" for a bool that
// defaults to nil.
func boolPtrFlags(flags *pflag.FlagSet, value **bool, name, usage, noUsage string) {
	flags.Var(&boolPtrValue{value: value, set: true}, name, usage)
	flags.Lookup(name).NoOptDefVal = "true"

	flags.Var(&boolPtrValue{value: value, set: false}, "no-"+name, noUsage)
	flags.Lookup("no-" + name).NoOptDefVal = "true"
}
