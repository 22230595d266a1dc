// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild

import (
	"errors"
	"fmt"
)

var (
	// ErrCRLF is returned if an APKBUILD has other line endings than "\n".
	ErrCRLF = errors.New("wrong line endings")

	// ErrMissingClosingQuote is returned if a quoted value has no end.
	ErrMissingClosingQuote = errors.New("can't find closing quote sign")

	// ErrPkgnameMismatch is returned if the pkgname differs from the name
	// of the folder containing the APKBUILD.
	ErrPkgnameMismatch = errors.New(
		"the pkgname must be equal to the name of the folder that contains the APKBUILD")

	// ErrEmptyArch is returned if an APKBUILD has no arch.
	ErrEmptyArch = errors.New("arch must not be empty")

	// ErrInvalidPkgver is returned if the pkgver is not a valid version.
	ErrInvalidPkgver = errors.New("invalid pkgver")

	// ErrFunctionNotFound is returned if a shell function can not be found.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrFunctionEnd is returned if the closing brace of a function is
	// missing.
	ErrFunctionEnd = errors.New("could not find end of function")

	// ErrPkgdescNotFound is returned if a subpackage function has no pkgdesc.
	ErrPkgdescNotFound = errors.New("could not find pkgdesc")
)

// ParseError is returned if an APKBUILD can not be parsed.
type ParseError struct {
	Path string
	Line int
	Err  error
}

// Error implements the [error] interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Is implements the [errors.Is] interface.
func (*ParseError) Is(other error) bool {
	_, ok := other.(*ParseError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ParseError) Unwrap() error {
	return e.Err
}
