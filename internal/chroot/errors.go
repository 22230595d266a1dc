// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import "errors"

var (
	// ErrInvalidSuffix is returned if a chroot suffix can not be parsed.
	ErrInvalidSuffix = errors.New("invalid chroot suffix")

	// ErrApkStaticInvalid is returned if the apk-tools-static package lacks
	// the binary or its signature.
	ErrApkStaticInvalid = errors.New("invalid apk-tools-static package")

	// ErrApkStaticTooOld is returned if the available apk.static is older than
	// [config.ApkToolsStaticMinVersion].
	ErrApkStaticTooOld = errors.New("apk.static is too old")

	// ErrUnknownKey is returned if a signature was made with a key that is not
	// trusted.
	ErrUnknownKey = errors.New("signing key not trusted")

	// ErrNoBinfmt is returned for architectures without known ELF magic.
	ErrNoBinfmt = errors.New("no binfmt info for architecture")
)
