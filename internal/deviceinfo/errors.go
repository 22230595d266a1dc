// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package deviceinfo

import (
	"errors"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
)

var (
	// ErrDeviceNotFound is returned if no deviceinfo exists for a device.
	ErrDeviceNotFound = apkbuild.ErrDeviceNotFound

	// ErrSyntax is returned if a deviceinfo line has no "=".
	ErrSyntax = errors.New("no '=' found")

	// ErrObsoleteKey is returned if a deviceinfo contains a key that is not
	// used anymore.
	ErrObsoleteKey = errors.New("obsolete deviceinfo key")

	// ErrInvalidCodename is returned if the codename does not match the
	// device folder.
	ErrInvalidCodename = errors.New("codename does not match device folder")

	// ErrInvalidChassis is returned if the chassis is missing or unknown.
	ErrInvalidChassis = errors.New("invalid chassis")
)
