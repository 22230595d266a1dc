// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu composes and runs QEMU system commands that boot the rootfs
// image of one of the QEMU device packages.
//
// By default the QEMU binary and its libraries are taken from the native
// chroot, so nothing but the chroot is required on the host. The serial
// console of the guest is attached to stdio and ssh is forwarded to a port
// on localhost.
package qemu
