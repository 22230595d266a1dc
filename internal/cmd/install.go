// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/flasher"
	"github.com/z3ntu/pmbootstrap/internal/install"
)

// Filesystems are the choices for the root partition.
var Filesystems = []string{"ext4", "f2fs", "btrfs"}

// resolveSplit sets opts.Split from the flags, or from the flash method of
// the device if neither --split nor --no-split is given.
func resolveSplit(opts *install.Options, split *bool, info deviceinfo.Deviceinfo) error {
	if split != nil {
		opts.Split = *split
		return nil
	}

	if opts.SDCard != "" || opts.RecoveryZip || opts.NoImage {
		return nil
	}

	method, err := flasher.Lookup(info.FlashMethod())
	if err != nil {
		return err //nolint:wrapcheck
	}

	opts.Split = method.Split

	return nil
}

func newInstallCommand(a *app) *cobra.Command {
	var (
		opts  install.Options
		split *bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "set up device specific chroot and install to SD card or image",
		Args:  usageArgs(cobra.NoArgs),
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.SDCard, "sdcard", "",
		"path to the block device, instead of writing the image")
	boolPtrFlags(fs, &split,
		"split",
		"create separate boot and root image files",
		"create one image file with boot and root partitions")
	fs.BoolVar(&opts.RecoveryZip, "android-recovery-zip", false,
		"generate TWRP flashable zip")
	fs.StringVar(&opts.RecoveryInstallPartition, "recovery-install-partition", "system",
		"partition to flash from recovery, e.g. external_sd")
	fs.BoolVar(&opts.RecoveryFlashKernel, "recovery-flash-kernel", true,
		"flash the kernel from recovery as well")
	fs.BoolVar(&opts.NoImage, "no-image", false,
		"do not generate an image, only set up the rootfs chroot")
	fs.BoolVar(&opts.Rsync, "rsync", false,
		"update the sdcard with rsync, only with --sdcard")
	fs.BoolVar(&opts.FDE, "fde", false,
		"use full disk encryption")
	fs.StringVar(&opts.Cipher, "cipher", config.Cipher,
		"cryptsetup cipher used to encrypt the rootfs")
	fs.IntVar(&opts.IterTime, "iter-time", config.IterTime,
		"cryptsetup iteration time in milliseconds")
	fs.StringVar(&opts.Flavor, "flavor", "",
		"kernel flavor to use (default: first installed)")
	fs.StringSliceVar(&opts.Add, "add", nil,
		"comma separated list of packages to be added to the rootfs")
	fs.BoolVar(&opts.NoRecommends, "no-recommends", false,
		"do not install packages listed in _pmb_recommends of the UI")
	boolPtrFlags(fs, &opts.Sparse,
		"sparse",
		"generate sparse image file, even if the device does not use it",
		"do not generate sparse image file, even if the device uses it")
	fs.BoolVar(&opts.OnDev, "ondev", false,
		"wrap the image in the postmarketOS on-device installer")
	fs.Var(newChoiceValue(&opts.Filesystem, Filesystems...), "filesystem",
		"filesystem of the root partition (default: ext4)")
	fs.BoolVar(&opts.NoLocalPkgs, "no-local-pkgs", false,
		"do not use locally built packages, only repository ones")

	cmd.MarkFlagsMutuallyExclusive("sdcard", "split", "no-split", "android-recovery-zip", "no-image")
	cmd.MarkFlagsMutuallyExclusive("sparse", "no-sparse")

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
		if opts.Rsync && opts.SDCard == "" {
			return &ParseArgsError{msg: "--rsync requires --sdcard"}
		}

		if opts.OnDev && (opts.SDCard != "" || opts.RecoveryZip) {
			return &ParseArgsError{msg: "--ondev can not be combined with --sdcard or --android-recovery-zip"}
		}

		installer, err := a.installer()
		if err != nil {
			return err
		}

		err = resolveSplit(&opts, split, installer.Deviceinfo)
		if err != nil {
			return err
		}

		return installer.Install(cmd.Context(), opts) //nolint:wrapcheck
	})

	return cmd
}
