// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import "errors"

var (
	// ErrArgumentCollision is returned if two [Argument]s are considered equal.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrNotQemuDevice is returned if the configured device is not one of
	// the QEMU device packages.
	ErrNotQemuDevice = errors.New("not a qemu device")

	// ErrImageNotFound is returned if the rootfs image has not been created
	// yet.
	ErrImageNotFound = errors.New("rootfs image not found")

	// ErrInvalidImageSize is returned if the image size is not given in
	// MiB or GiB.
	ErrInvalidImageSize = errors.New("invalid image size")

	// ErrImageShrink is returned if the new image size is smaller than the
	// current one.
	ErrImageShrink = errors.New("image must not shrink")

	// ErrNoKernel is returned if no kernel is installed in the rootfs.
	ErrNoKernel = errors.New("no kernel installed")

	// ErrExecutableNotFound is returned if the QEMU binary is not in the
	// PATH of the host.
	ErrExecutableNotFound = errors.New("qemu executable not found")

	// ErrInvalidChoice is returned for unknown display or audio backends.
	ErrInvalidChoice = errors.New("invalid choice")
)
