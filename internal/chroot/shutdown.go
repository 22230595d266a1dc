// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// CryptDevice is the device mapper name of the encrypted root partition
// while installing.
const CryptDevice = "pm_crypt"

// Shutdown stops everything that may keep files in the work folder busy.
//
// It closes the encrypted install partition, detaches loop devices of images
// in the work folder and unmounts the device chroots. Unless onlyInstall is
// set, everything below the work folder is unmounted and the binfmt
// registrations are removed as well.
func (m *Manager) Shutdown(ctx context.Context, onlyInstall bool) error {
	native := m.Path(Native())

	if exists(filepath.Join(native, "usr/bin/adb")) {
		_, err := m.Root(ctx, Native(), []string{"adb", "-P", "5038", "kill-server"}, Options{
			Check: run.Bool(false),
		})
		if err != nil {
			return err
		}
	}

	err := m.Umount(ctx, filepath.Join(native, "mnt/install"))
	if err != nil {
		return err
	}

	if exists(filepath.Join("/dev/mapper", CryptDevice)) {
		_, err := m.Root(ctx, Native(), []string{"cryptsetup", "luksClose", CryptDevice}, Options{})
		if err != nil {
			return fmt.Errorf("close %s: %w", CryptDevice, err)
		}
	}

	err = m.DetachLoopDevices(ctx)
	if err != nil {
		return err
	}

	for _, typ := range []Type{TypeRootfs, TypeInstaller} {
		markers, _ := filepath.Glob(filepath.Join(m.Work, "chroot_"+string(typ)+"_*", markerFile))

		for _, marker := range markers {
			err := m.Umount(ctx, filepath.Dir(marker))
			if err != nil {
				return err
			}
		}
	}

	if onlyInstall {
		return nil
	}

	err = m.Umount(ctx, m.Work)
	if err != nil {
		return err
	}

	for _, arch := range sys.DeviceArchs {
		if arch == m.nativeArch() {
			continue
		}

		err := m.UnregisterBinfmt(ctx, arch)
		if err != nil {
			return err
		}
	}

	slog.Debug("Shutdown complete")

	return nil
}

// LoopDevices returns the loop devices with their backing files below the
// work folder.
func (m *Manager) LoopDevices(ctx context.Context) (map[string]string, error) {
	result, err := run.Root(ctx, m.Runner, run.Cmd{
		Args:         []string{"losetup", "--noheadings", "--output", "NAME,BACK-FILE", "--list"},
		ReturnOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list loop devices: %w", err)
	}

	devices := make(map[string]string)

	for line := range strings.Lines(result.Output) {
		name, backFile, found := strings.Cut(strings.TrimSpace(line), " ")
		if !found {
			continue
		}

		backFile = strings.TrimSpace(backFile)
		if strings.HasPrefix(backFile, m.Work+string(os.PathSeparator)) {
			devices[name] = backFile
		}
	}

	return devices, nil
}

// DetachLoopDevices detaches all loop devices of images in the work folder.
func (m *Manager) DetachLoopDevices(ctx context.Context) error {
	devices, err := m.LoopDevices(ctx)
	if err != nil {
		return err
	}

	for name, backFile := range devices {
		slog.Debug("Detach loop device",
			slog.String("device", name),
			slog.String("file", backFile),
		)

		err := m.host(ctx, "losetup", "-d", name)
		if err != nil {
			return fmt.Errorf("detach %s: %w", name, err)
		}
	}

	return nil
}

// InstalledFlavors returns the kernel flavors installed in the rootfs of the
// device. A kernel without flavor suffix (/boot/vmlinuz) is reported with the
// device name as flavor.
func InstalledFlavors(work, device string) ([]string, error) {
	boot := filepath.Join(Rootfs(device).Path(work), "boot")

	matches, err := filepath.Glob(filepath.Join(boot, "vmlinuz*"))
	if err != nil {
		return nil, fmt.Errorf("find kernels: %w", err)
	}

	var flavors []string

	for _, match := range matches {
		name := filepath.Base(match)

		var flavor string

		switch {
		case name == "vmlinuz":
			flavor = device
		case strings.HasPrefix(name, "vmlinuz-"):
			flavor = strings.TrimPrefix(name, "vmlinuz-")
			for _, suffix := range []string{"-dtb", "-img"} {
				flavor = strings.TrimSuffix(flavor, suffix)
			}
		default:
			continue
		}

		if !slices.Contains(flavors, flavor) {
			flavors = append(flavors, flavor)
		}
	}

	return flavors, nil
}
