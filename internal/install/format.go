// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

const (
	installMount = "/mnt/install"
	cryptMapper  = "/dev/mapper/" + chroot.CryptDevice
)

func (i *Installer) bootFilesystem() string {
	return cmp.Or(i.Deviceinfo["boot_filesystem"], "ext2")
}

// BootMkfs returns the command that creates the boot filesystem.
func BootMkfs(filesystem, device string) ([]string, error) {
	switch filesystem {
	case "fat16":
		return []string{"mkfs.fat", "-F", "16", "-n", "pmOS_boot", device}, nil
	case "fat32":
		return []string{"mkfs.fat", "-F", "32", "-n", "pmOS_boot", device}, nil
	case "ext2":
		return []string{"mkfs.ext2", "-F", "-q", "-L", "pmOS_boot", device}, nil
	default:
		return nil, fmt.Errorf("%w: boot filesystem %s", ErrUnsupportedFilesystem, filesystem)
	}
}

// RootMkfs returns the command that creates the root filesystem.
//
// Some downstream kernels do not support metadata_csum, so it is disabled
// for ext4. For images the inode count must be set explicitly, as the size
// of the final file system is not known.
func RootMkfs(filesystem, label, device string, sdcard bool) ([]string, error) {
	switch cmp.Or(filesystem, "ext4") {
	case "ext4":
		args := []string{"mkfs.ext4", "-O", "^metadata_csum", "-F", "-q", "-L", label}
		if !sdcard {
			args = append(args, "-N", "100000")
		}

		return append(args, device), nil
	case "f2fs":
		return []string{"mkfs.f2fs", "-f", "-l", label, device}, nil
	case "btrfs":
		return []string{"mkfs.btrfs", "-f", "-q", "-L", label, device}, nil
	default:
		return nil, fmt.Errorf("%w: root filesystem %s", ErrUnsupportedFilesystem, filesystem)
	}
}

// rootFilesystemPackages are the packages required in the native chroot to
// create root filesystems other than ext4.
var rootFilesystemPackages = map[string]string{
	"f2fs":  "f2fs-tools",
	"btrfs": "btrfs-progs",
}

// Format creates the filesystems of the install block device and mounts
// them to /mnt/install in the native chroot.
func (i *Installer) Format(ctx context.Context, opts Options, reserveMiB uint64, rootLabel string, sdcard bool) error {
	rootDevice := installDevice + "p2"
	if reserveMiB > 0 {
		rootDevice = installDevice + "p3"
	}

	if opts.FDE {
		err := i.formatLUKS(ctx, opts, rootDevice)
		if err != nil {
			return err
		}

		rootDevice = cryptMapper
	}

	err := i.formatRoot(ctx, opts, rootDevice, rootLabel, sdcard)
	if err != nil {
		return err
	}

	return i.formatBoot(ctx)
}

func (i *Installer) formatLUKS(ctx context.Context, opts Options, device string) error {
	slog.Info("(native) format " + device + " (root, luks), mount to " + cryptMapper)
	slog.Info(" *** TYPE IN THE FULL DISK ENCRYPTION PASSWORD (TWICE!) ***")

	cipher := cmp.Or(opts.Cipher, config.Cipher)
	iterTime := cmp.Or(opts.IterTime, config.IterTime)

	for _, args := range [][]string{
		{
			"cryptsetup", "luksFormat", "--use-urandom", "--cipher", cipher, "-q", device,
			"--iter-time", strconv.Itoa(iterTime),
		},
		{"cryptsetup", "luksOpen", device, chroot.CryptDevice},
	} {
		_, err := i.Chroots.Root(ctx, chroot.Native(), args, chroot.Options{
			Output: run.OutputInteractive,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
	}

	if _, err := os.Stat(filepath.Join(i.Chroots.Path(chroot.Native()), cryptMapper)); err != nil {
		return fmt.Errorf("%w: %w", ErrCryptOpen, err)
	}

	return nil
}

func (i *Installer) formatRoot(ctx context.Context, opts Options, device, label string, sdcard bool) error {
	if !opts.Rsync {
		mkfs, err := RootMkfs(opts.Filesystem, label, device, sdcard)
		if err != nil {
			return err
		}

		if pkg, exists := rootFilesystemPackages[opts.Filesystem]; exists {
			err := i.Chroots.InstallPackages(ctx, chroot.Native(), pkg)
			if err != nil {
				return err
			}
		}

		slog.Info("(native) format " + device)

		err = i.root(ctx, chroot.Native(), mkfs...)
		if err != nil {
			return fmt.Errorf("format root: %w", err)
		}
	}

	slog.Info("(native) mount " + device + " to " + installMount)

	return i.mount(ctx, device, installMount)
}

func (i *Installer) formatBoot(ctx context.Context) error {
	device := installDevice + "p1"
	mountpoint := installMount + "/boot"
	filesystem := i.bootFilesystem()

	mkfs, err := BootMkfs(filesystem, device)
	if err != nil {
		return err
	}

	slog.Info("(native) format " + device + " (boot, " + filesystem + "), mount to " + mountpoint)

	err = i.root(ctx, chroot.Native(), mkfs...)
	if err != nil {
		return fmt.Errorf("format boot: %w", err)
	}

	return i.mount(ctx, device, mountpoint)
}

func (i *Installer) mount(ctx context.Context, device, mountpoint string) error {
	err := i.root(ctx, chroot.Native(), "mkdir", "-p", mountpoint)
	if err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}

	err = i.root(ctx, chroot.Native(), "mount", device, mountpoint)
	if err != nil {
		return fmt.Errorf("mount %s: %w", device, err)
	}

	return nil
}
