// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package export_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/export"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

func touch(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestSymlinks(t *testing.T) {
	work := t.TempDir()
	folder := filepath.Join(t.TempDir(), "export")

	boot := filepath.Join(work, "chroot_rootfs_qemu-aarch64/boot")
	images := filepath.Join(work, "chroot_native/home/pmos/rootfs")
	zip := filepath.Join(work, "chroot_buildroot_aarch64",
		"var/lib/postmarketos-android-recovery-installer/pmos-qemu-aarch64.zip")

	for _, path := range []string{
		filepath.Join(boot, "vmlinuz-virt"),
		filepath.Join(boot, "initramfs-virt"),
		filepath.Join(boot, "initramfs-virt-extra"),
		filepath.Join(boot, "vmlinuz-lts"),
		filepath.Join(images, "qemu-aarch64.img"),
		zip,
	} {
		touch(t, path)
	}

	opts := export.Options{
		Work:   work,
		Device: "qemu-aarch64",
		Arch:   sys.AArch64,
		Flavor: "virt",
		Folder: folder,
	}

	links, err := export.Symlinks(opts)
	require.NoError(t, err)

	names := make(map[string]string, len(links))
	for _, link := range links {
		names[filepath.Base(link.Path)] = link.Description
	}

	assert.Equal(t, map[string]string{
		"initramfs-virt":        "Initramfs",
		"vmlinuz-virt":          "Linux kernel",
		"initramfs-virt-extra":  "Extra initramfs files in /boot",
		"qemu-aarch64.img":      "Rootfs with partitions for /boot and /",
		"pmos-qemu-aarch64.zip": "Android recovery flashable zip",
	}, names)

	target, err := os.Readlink(filepath.Join(folder, "pmos-qemu-aarch64.zip"))
	require.NoError(t, err)
	assert.Equal(t, zip, target)

	// A second run keeps the links.
	_, err = export.Symlinks(opts)
	require.NoError(t, err)
}

func TestSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")

	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), link))
	require.NoError(t, export.Symlink(target, link))

	actual, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, actual)

	regular := filepath.Join(dir, "regular")
	touch(t, regular)

	err = export.Symlink(target, regular)
	require.ErrorIs(t, err, export.ErrFileExists)
}
