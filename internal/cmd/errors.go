// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
)

var (
	// ErrRunningAsRoot is returned if pmbootstrap is run as root without
	// --as-root.
	ErrRunningAsRoot = errors.New("do not run pmbootstrap as root, " +
		"it uses sudo where necessary (use --as-root to override)")

	// ErrNoConfig is returned by actions that need a config file if there
	// is none.
	ErrNoConfig = errors.New("please specify a config file, " +
		"or set one up with 'pmbootstrap init'")

	// ErrChecksFailed is returned by the status action if a check failed.
	ErrChecksFailed = errors.New("status checks failed")

	// ErrUserInRootfs is returned if --user is used for a rootfs chroot.
	ErrUserInRootfs = errors.New("--user is not supported for rootfs " +
		"and installer chroots")

	// ErrValueOutOfRange is returned if a number flag is outside of its
	// limits.
	ErrValueOutOfRange = errors.New("value is outside of range")

	// ErrInvalidChoice is returned if a flag value is not one of its
	// choices.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrChrootMissing is returned by actions that need an existing chroot.
	ErrChrootMissing = errors.New("chroot does not exist")

	// ErrUnknownDevice is returned by init for devices that are not in
	// pmaports.
	ErrUnknownDevice = errors.New("device not found in pmaports")

	// ErrWorkVersionNewer is returned by work_migrate for work folders of a
	// newer pmbootstrap.
	ErrWorkVersionNewer = errors.New("work folder was created by a newer pmbootstrap")
)

// ParseArgsError wraps errors that occur during argument parsing.
type ParseArgsError struct {
	err error
	msg string
}

func (e *ParseArgsError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *ParseArgsError) Is(other error) bool {
	_, ok := other.(*ParseArgsError)
	return ok
}

func (e *ParseArgsError) Unwrap() error {
	return e.err
}
