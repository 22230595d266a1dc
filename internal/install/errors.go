// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install

import "errors"

var (
	// ErrInvalidHostname is returned if the hostname is not a valid host
	// name.
	ErrInvalidHostname = errors.New("invalid hostname")

	// ErrKernelNotConfigured is returned if the configured kernel is not a
	// kernel of the device.
	ErrKernelNotConfigured = errors.New("kernel is not configured for device, " +
		"run 'pmbootstrap init' to select a valid kernel")

	// ErrFirmwareNotFound is returned if a firmware binary to embed is not
	// in the rootfs.
	ErrFirmwareNotFound = errors.New("firmware binary does not exist in the device rootfs")

	// ErrFirmwareTooLarge is returned if a firmware binary would reach into
	// the first partition.
	ErrFirmwareTooLarge = errors.New("firmware is too big to embed in the disk image")

	// ErrFirmwareOverlap is returned if firmware binaries overlap each other.
	ErrFirmwareOverlap = errors.New("firmware overlaps with another firmware image")

	// ErrInvalidFirmwareSpec is returned for malformed
	// deviceinfo_sd_embed_firmware values.
	ErrInvalidFirmwareSpec = errors.New("invalid firmware embed value")

	// ErrPartitionNotFound is returned if the partitions of the install
	// block device do not show up.
	ErrPartitionNotFound = errors.New("unable to find the install partition")

	// ErrUnsupportedFilesystem is returned for boot filesystems that can not
	// be created.
	ErrUnsupportedFilesystem = errors.New("filesystem not supported")

	// ErrNoSpace is returned if the work folder has not enough free space
	// for the image.
	ErrNoSpace = errors.New("not enough free space to create rootfs image")

	// ErrSDCardMissing is returned if the sdcard block device does not exist.
	ErrSDCardMissing = errors.New("sdcard does not exist, is it plugged in?")

	// ErrSDCardReadOnly is returned if the sdcard is write protected.
	ErrSDCardReadOnly = errors.New("sdcard is read-only, is it locked?")

	// ErrOndevTooOld is returned if postmarketos-ondev is older than
	// [config.OndevMinVersion].
	ErrOndevTooOld = errors.New("postmarketos-ondev is too old")

	// ErrCryptOpen is returned if the encrypted root partition did not show
	// up after opening it.
	ErrCryptOpen = errors.New("failed to open crypt device")
)
