// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"errors"
	"strings"
)

var (
	// ErrArchNotSupported is returned if the requested architecture is not
	// supported for the requested operation.
	ErrArchNotSupported = errors.New("architecture not supported")

	// ErrEmptyFilePath is returned if an empty path is given.
	ErrEmptyFilePath = errors.New("file path must not be empty")

	// ErrNotRegularFile is returned if a path is expected to be a regular file
	// but is not.
	ErrNotRegularFile = errors.New("not a regular file")
)

// MissingProgramsError is returned if required host programs can not be
// found in PATH.
type MissingProgramsError struct {
	Programs []string
}

// Error implements the [error] interface.
func (e *MissingProgramsError) Error() string {
	return "can't find all programs required to run pmbootstrap, " +
		"please install first: " + strings.Join(e.Programs, ", ")
}

// Is implements the [errors.Is] interface.
func (*MissingProgramsError) Is(other error) bool {
	_, ok := other.(*MissingProgramsError)
	return ok
}
