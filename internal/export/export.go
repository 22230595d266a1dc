// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package export links the generated images and boot files into a single
// folder, so they can be flashed with tools outside of pmbootstrap.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// DefaultFolder is the export folder if none is given.
const DefaultFolder = "/tmp/postmarketOS-export"

// ErrFileExists is returned if a file that is not a symlink is in the way of
// a link.
var ErrFileExists = errors.New("file exists")

// Options selects the files to export.
type Options struct {
	Work   string
	Device string
	// Arch is the device architecture, used to find the recovery zip in the
	// buildroot.
	Arch   sys.Arch
	Flavor string
	// Folder defaults to [DefaultFolder].
	Folder string
}

// Link is a symlink created in the export folder.
type Link struct {
	Path        string
	Target      string
	Description string
}

func descriptions(device, flavor string) map[string]string {
	return map[string]string{
		"boot.img-" + flavor:             "Fastboot compatible boot.img file, contains initramfs and kernel",
		"blob-" + flavor:                 "Asus boot blob for TF101",
		"initramfs-" + flavor:            "Initramfs",
		"initramfs-" + flavor + "-extra": "Extra initramfs files in /boot",
		"uInitrd-" + flavor:              "Initramfs, legacy u-boot image format",
		"uImage-" + flavor:               "Kernel, legacy u-boot image format",
		"vmlinuz-" + flavor:              "Linux kernel",
		"lk2nd.img":                      "Secondary Android bootloader",
		device + ".img":                  "Rootfs with partitions for /boot and /",
		device + "-boot.img":             "Boot partition image",
		device + "-root.img":             "Root partition image",
		"pmos-" + device + ".zip":        "Android recovery flashable zip",
	}
}

// Files returns the existing files to export.
func Files(opts Options) ([]string, error) {
	boot := filepath.Join(chroot.Rootfs(opts.Device).Path(opts.Work), "boot")
	images := filepath.Join(chroot.Native().Path(opts.Work), "home/pmos/rootfs")
	buildroot := chroot.Buildroot(opts.Arch).Path(opts.Work)

	patterns := []string{
		filepath.Join(boot, "*-"+opts.Flavor),
		filepath.Join(boot, "*-"+opts.Flavor+"-extra"),
		filepath.Join(boot, "lk2nd.img"),
		filepath.Join(images, opts.Device+".img"),
		filepath.Join(images, opts.Device+"-boot.img"),
		filepath.Join(images, opts.Device+"-root.img"),
		filepath.Join(buildroot, "var/lib/postmarketos-android-recovery-installer",
			"pmos-"+opts.Device+".zip"),
	}

	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("find files: %w", err)
		}

		files = append(files, matches...)
	}

	return files, nil
}

// Symlinks creates symlinks to the rootfs images and boot files in the
// export folder. Each link is logged with its description.
func Symlinks(opts Options) ([]Link, error) {
	folder := opts.Folder
	if folder == "" {
		folder = DefaultFolder
	}

	err := os.MkdirAll(folder, 0o755) //nolint:mnd
	if err != nil {
		return nil, fmt.Errorf("create export folder: %w", err)
	}

	files, err := Files(opts)
	if err != nil {
		return nil, err
	}

	info := descriptions(opts.Device, opts.Flavor)
	links := make([]Link, 0, len(files))

	for _, file := range files {
		name := filepath.Base(file)
		link := Link{
			Path:        filepath.Join(folder, name),
			Target:      file,
			Description: info[name],
		}

		msg := " * " + name
		if link.Description != "" {
			msg += " (" + link.Description + ")"
		}

		slog.Info(msg)

		err := Symlink(link.Target, link.Path)
		if err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	return links, nil
}

// Symlink creates a symlink at path pointing to target. An existing symlink
// is replaced, other files are not touched.
func Symlink(target, path string) error {
	stat, err := os.Lstat(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("check %s: %w", path, err)
	case stat.Mode()&fs.ModeSymlink == 0:
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	default:
		current, err := os.Readlink(path)
		if err == nil && current == target {
			return nil
		}

		err = os.Remove(path)
		if err != nil {
			return fmt.Errorf("remove stale link: %w", err)
		}
	}

	err = os.Symlink(target, path)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}

	return nil
}
