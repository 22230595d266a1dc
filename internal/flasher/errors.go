// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flasher

import "errors"

var (
	// ErrUnknownMethod is returned for flash methods that are not defined.
	ErrUnknownMethod = errors.New("flash method not supported")

	// ErrActionNotSupported is returned if the flash method does not define
	// the action.
	ErrActionNotSupported = errors.New("action not configured for flash method")

	// ErrPartitionBlacklisted is returned if a command would write to a
	// partition listed in deviceinfo_partition_blacklist.
	ErrPartitionBlacklisted = errors.New("partition is blacklisted from being flashed")

	// ErrNoVbmetaPartition is returned for flash_vbmeta on devices without a
	// vbmeta partition in the deviceinfo.
	ErrNoVbmetaPartition = errors.New("no vbmeta partition specified")

	// ErrImageNotFound is returned if the rootfs image was not created yet.
	ErrImageNotFound = errors.New("rootfs image not found, run 'pmbootstrap install' first")

	// ErrImageTooLarge is returned if the image exceeds
	// deviceinfo_flash_fastboot_max_size.
	ErrImageTooLarge = errors.New("rootfs image is too large for fastboot")

	// ErrRecoveryZipNotFound is returned for sideload without a recovery zip.
	ErrRecoveryZipNotFound = errors.New("recovery zip not found, run " +
		"'pmbootstrap install --android-recovery-zip' first")

	// ErrNoKernel is returned if no kernel is installed in the rootfs.
	ErrNoKernel = errors.New("no kernel flavor installed")

	// ErrKconfigCheck is returned if the kernel config lacks required
	// options.
	ErrKconfigCheck = errors.New("kernel config check failed")
)

// VariableError is returned if a command uses a variable without value.
type VariableError struct {
	Name string
}

// Error implements the [error] interface.
func (e *VariableError) Error() string {
	return "variable " + e.Name + " has no value, is it missing in the deviceinfo?"
}

// Is implements the [errors.Is] interface.
func (*VariableError) Is(other error) bool {
	_, ok := other.(*VariableError)
	return ok
}
