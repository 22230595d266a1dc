// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/flasher"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// imageOptions describe one image written by installSystemImage.
type imageOptions struct {
	// reserveMiB is the size of an empty partition between boot and root.
	reserveMiB uint64
	// chroot holds the files of the image.
	chroot    chroot.Chroot
	rootLabel string
	step      int
	steps     int
	split     bool
	sdcard    string
}

func (i *Installer) installSystemImage(ctx context.Context, opts Options, img imageOptions) error {
	logStep(img.step, img.steps, "PREPARE INSTALL BLOCKDEVICE")

	err := i.Chroots.Shutdown(ctx, true)
	if err != nil {
		return err
	}

	bootMiB := uint64(max(i.Config.BootSize, 0)) //nolint:gosec

	folderBytes, err := i.folderSize(ctx, i.Chroots.Path(img.chroot))
	if err != nil {
		return err
	}

	rootMiB := RootfsSize(folderBytes)

	if !opts.Rsync {
		err := i.createBlockDevice(ctx, bootMiB, rootMiB, img.reserveMiB, img.split, img.sdcard)
		if err != nil {
			return err
		}

		if !img.split {
			err := i.Partition(ctx, bootMiB, img.reserveMiB)
			if err != nil {
				return err
			}
		}
	}

	if !img.split {
		rootID := 2
		if img.reserveMiB > 0 {
			rootID = 3
		}

		err := i.PartitionsMount(ctx, rootID, img.sdcard)
		if err != nil {
			return err
		}
	}

	err = i.Format(ctx, opts, img.reserveMiB, img.rootLabel, img.sdcard != "")
	if err != nil {
		return err
	}

	logStep(img.step+1, img.steps, "FILL INSTALL BLOCKDEVICE")

	for _, fill := range []func(context.Context) error{
		func(ctx context.Context) error { return i.copyFiles(ctx, img.chroot, opts.Rsync) },
		i.createHome,
		func(ctx context.Context) error { return i.configureApk(ctx, opts) },
		i.copySSHKeys,
		i.EmbedFirmware,
	} {
		err := fill(ctx)
		if err != nil {
			return err
		}
	}

	err = i.Chroots.Shutdown(ctx, true)
	if err != nil {
		return err
	}

	sparse := i.Deviceinfo["flash_sparse"] == "true"
	if opts.Sparse != nil {
		sparse = *opts.Sparse
	}

	if sparse && !img.split && img.sdcard == "" {
		return i.Sparse(ctx)
	}

	return nil
}

// copyFiles copies all files of the chroot except for /home, which only has
// empty mount points, to /mnt/install.
func (i *Installer) copyFiles(ctx context.Context, c chroot.Chroot, rsync bool) error {
	slog.Info("(native) copy " + c.String() + " to " + installMount + "/")

	mountpoint, err := i.mountRootfs(ctx, c, chroot.Native())
	if err != nil {
		return err
	}

	source := i.Chroots.Path(c)

	// Empty stub the qemu-user binary was bind mounted to.
	qemuStub := filepath.Join(source, "usr/bin/qemu-"+i.Chroots.Arch(c).QemuArch()+"-static")
	if _, err := os.Stat(qemuStub); err == nil {
		_, err := run.Root(ctx, i.Chroots.Runner, run.Cmd{Args: []string{"rm", qemuStub}})
		if err != nil {
			return fmt.Errorf("remove qemu stub: %w", err)
		}
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("read rootfs: %w", err)
	}

	var folders []string

	for _, entry := range entries {
		if entry.Name() != "home" {
			folders = append(folders, entry.Name())
		}
	}

	if !rsync {
		args := append(append([]string{"cp", "-a"}, folders...), installMount+"/")
		_, err := i.Chroots.Root(ctx, chroot.Native(), args, chroot.Options{Dir: mountpoint})

		return err
	}

	err = i.Chroots.InstallPackages(ctx, chroot.Native(), "rsync")
	if err != nil {
		return err
	}

	args := append(append([]string{"rsync", "-a", "--delete"}, folders...), installMount+"/")

	_, err = i.Chroots.Root(ctx, chroot.Native(), args, chroot.Options{Dir: mountpoint})
	if err != nil {
		return err
	}

	return i.root(ctx, chroot.Native(), "rm", "-rf", installMount+"/home")
}

func (i *Installer) installRoot() string {
	return filepath.Join(i.Chroots.Path(chroot.Native()), installMount)
}

func (i *Installer) host(ctx context.Context, args ...string) error {
	_, err := run.Root(ctx, i.Chroots.Runner, run.Cmd{Args: args})
	return err
}

// createHome creates the home folder of the user from /etc/skel.
func (i *Installer) createHome(ctx context.Context) error {
	rootfs := i.installRoot()
	home := filepath.Join(rootfs, "home", i.Config.User)

	for _, args := range [][]string{
		{"mkdir", "-p", filepath.Join(rootfs, "home")},
		{"cp", "-a", filepath.Join(rootfs, "etc/skel"), home},
		{"chown", "-R", strconv.Itoa(config.InstallUID), home},
	} {
		err := i.host(ctx, args...)
		if err != nil {
			return fmt.Errorf("create home: %w", err)
		}
	}

	return nil
}

// configureApk copies the official keys and, unless disabled, the keys of
// the local packages. The local repository is removed from the repository
// list.
func (i *Installer) configureApk(ctx context.Context, opts Options) error {
	pattern := filepath.Join(cmp.Or(i.Chroots.KeysDir, config.ApkKeysPath), "*.pub")
	if !opts.NoLocalPkgs {
		pattern = filepath.Join(i.Chroots.Work, "config_apk_keys", "*.pub")
	}

	keys, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("find apk keys: %w", err)
	}

	rootfs := i.installRoot()

	for _, key := range keys {
		err := i.host(ctx, "cp", key, filepath.Join(rootfs, "etc/apk/keys")+"/")
		if err != nil {
			return fmt.Errorf("copy apk key: %w", err)
		}
	}

	err = i.host(ctx, "sed", "-i", `/\/mnt\/pmbootstrap-packages/d`,
		filepath.Join(rootfs, "etc/apk/repositories"))
	if err != nil {
		return fmt.Errorf("remove local repository: %w", err)
	}

	return nil
}

// copySSHKeys copies the public ssh keys of the host user to the user of
// the installation, if enabled.
func (i *Installer) copySSHKeys(ctx context.Context) error {
	if !i.Config.SSHKeys {
		return nil
	}

	pattern := cmp.Or(i.SSHKeyGlob, sys.ExpandHome("~/.ssh/id_*.pub"))

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("find ssh keys: %w", err)
	}

	var keys []byte

	for _, path := range paths {
		key, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read ssh key: %w", err)
		}

		keys = append(keys, key...)
	}

	if len(keys) == 0 {
		slog.Info("NOTE: Public SSH keys not found. Since no SSH keys " +
			"were copied, you will need to use SSH password authentication!")

		return nil
	}

	authorizedKeys := filepath.Join(i.Chroots.Path(chroot.Native()), "tmp/authorized_keys")

	err = os.WriteFile(authorizedKeys, keys, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("write authorized keys: %w", err)
	}

	target := filepath.Join(i.installRoot(), "home", i.Config.User, ".ssh")
	uid := strconv.Itoa(config.InstallUID)

	for _, args := range [][]string{
		{"mkdir", target},
		{"chmod", "700", target},
		{"cp", authorizedKeys, filepath.Join(target, "authorized_keys")},
		{"rm", authorizedKeys},
		{"chown", "-R", uid + ":" + uid, target},
	} {
		err := i.host(ctx, args...)
		if err != nil {
			return fmt.Errorf("copy ssh keys: %w", err)
		}
	}

	return nil
}

// installOnDevice creates the rootfs image and puts it into the image of
// the on-device installer.
func (i *Installer) installOnDevice(ctx context.Context, opts Options, step, steps int) error {
	err := i.installSystemImage(ctx, opts, imageOptions{
		chroot:    i.rootfs(),
		rootLabel: "pmOS_root",
		step:      step,
		steps:     steps,
		split:     true,
	})
	if err != nil {
		return err
	}

	step += 2

	logStep(step, steps, "CREATE ON-DEVICE INSTALLER ROOTFS")

	step++

	device, err := i.deviceAPKBUILD()
	if err != nil {
		return err
	}

	kernel, err := KernelPackage(device, i.Config.Device, i.Config.Kernel)
	if err != nil {
		return err
	}

	installer := chroot.Installer(i.Config.Device)
	pkgs := append([]string{"device-" + i.Config.Device, "postmarketos-ondev"}, kernel...)
	pkgs = append(pkgs, pmaports.NonfreePackages(device, i.Config.Device,
		i.Config.NonfreeFirmware, i.Config.NonfreeUserland)...)

	err = i.Chroots.InstallPackages(ctx, installer, pkgs...)
	if err != nil {
		return err
	}

	native := i.Chroots.Path(chroot.Native())
	rootImg := i.imagePath("-root")
	src := filepath.Join(native, rootImg)
	dest := filepath.Join(i.Chroots.Path(installer), "var/lib/rootfs.img")

	slog.Info("(" + installer.String() + ") add " + filepath.Base(rootImg) + " as /var/lib/rootfs.img")

	err = i.detachImage(ctx, rootImg)
	if err != nil {
		return err
	}

	err = i.host(ctx, "mv", src, dest)
	if err != nil {
		return fmt.Errorf("move rootfs image: %w", err)
	}

	slog.Info("(" + installer.String() + ") ondev-prepare")

	channel := i.Chroots.Channel

	_, err = i.Chroots.Root(ctx, installer, []string{"ondev-prepare"}, chroot.Options{
		Env: map[string]string{
			"ONDEV_CHANNEL":                  channel.Name,
			"ONDEV_CHANNEL_BRANCH_APORTS":    channel.BranchAports,
			"ONDEV_CHANNEL_BRANCH_PMAPORTS":  channel.BranchPmaports,
			"ONDEV_CHANNEL_DESCRIPTION":      channel.Description,
			"ONDEV_CHANNEL_MIRRORDIR_ALPINE": channel.MirrordirAlpine,
			"ONDEV_CIPHER":                   cmp.Or(opts.Cipher, config.Cipher),
			"ONDEV_PMBOOTSTRAP_VERSION":      config.Version,
			"ONDEV_UI":                       i.Config.UI,
		},
	})
	if err != nil {
		return fmt.Errorf("ondev-prepare: %w", err)
	}

	bootImg := i.imagePath("-boot")

	slog.Info("(native) rm " + filepath.Base(bootImg))

	err = i.root(ctx, chroot.Native(), "rm", bootImg)
	if err != nil {
		return fmt.Errorf("remove boot image: %w", err)
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("rootfs image: %w", err)
	}

	reserveMiB := uint64(math.Round(float64(stat.Size())/mib)) + 200 //nolint:mnd

	return i.installSystemImage(ctx, opts, imageOptions{
		reserveMiB: reserveMiB,
		chroot:     installer,
		rootLabel:  "pmOS_install",
		step:       step,
		steps:      steps,
		split:      opts.Split,
		sdcard:     opts.SDCard,
	})
}

// printFlashInfo logs how to flash the installation.
func (i *Installer) printFlashInfo(opts Options, step, steps int) {
	logStep(step, steps, "FLASHING TO DEVICE")
	slog.Info("Run the following to flash your installation to the target device:")

	methodName := i.Deviceinfo.FlashMethod()
	method, _ := flasher.Lookup(methodName)
	rootfsDir := filepath.Join(i.Chroots.Path(chroot.Native()), imagesDir)

	if method.Supports(flasher.ActionFlashRootfs) && opts.SDCard == "" && opts.Split == method.Split {
		slog.Info("* pmbootstrap flasher flash_rootfs")
		slog.Info("  Flashes the generated rootfs image to your device:")

		if opts.Split {
			slog.Info("  " + filepath.Join(rootfsDir, i.Config.Device+"-root.img"))
		} else {
			slog.Info("  " + filepath.Join(rootfsDir, i.Config.Device+".img"))
			slog.Info("  (NOTE: This file has a partition table, which contains /boot and / " +
				"subpartitions. That way we don't need to change the partition layout on your device.)")
		}
	}

	if method.Supports(flasher.ActionFlashVbmeta) &&
		(i.Deviceinfo["flash_fastboot_partition_vbmeta"] != "" ||
			i.Deviceinfo["flash_heimdall_partition_vbmeta"] != "") {
		slog.Info("* pmbootstrap flasher flash_vbmeta")
		slog.Info("  Flashes vbmeta image with verification disabled flag.")
	}

	if method.Supports(flasher.ActionFlashKernel) && (!method.Split || opts.Split) {
		slog.Info("* pmbootstrap flasher flash_kernel")
		slog.Info("  Flashes the kernel + initramfs to your device:")

		if method.Split {
			slog.Info("  " + filepath.Join(rootfsDir, i.Config.Device+"-boot.img"))
		} else {
			slog.Info("  " + filepath.Join(i.Chroots.Path(i.rootfs()), "boot"))
		}
	}

	if method.Supports(flasher.ActionBoot) {
		slog.Info("  (NOTE: " + methodName + " also supports booting the kernel/initramfs " +
			"directly without flashing. Use 'pmbootstrap flasher boot' to do that.)")
	}

	slog.Info("* If the above steps do not work, you can also create symlinks to the " +
		"generated files with 'pmbootstrap export' and flash outside of pmbootstrap.")
}
