// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initramfs reads the initramfs images generated in the rootfs. An
// initramfs is a newc CPIO archive, usually compressed with gzip, zstd or
// lz4.
package initramfs
