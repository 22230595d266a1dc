// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import "errors"

var (
	// ErrUnknownCompression is returned if the archive format can not be
	// detected from its magic bytes.
	ErrUnknownCompression = errors.New("unknown compression")

	// ErrNotFound is returned if the initramfs has not been generated yet.
	ErrNotFound = errors.New("initramfs not found")
)
