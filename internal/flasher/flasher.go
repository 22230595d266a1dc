// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package flasher flashes and boots installed images on devices with the
// tools of the device's flash method, run inside the native chroot.
package flasher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/kconfig"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

// Flasher runs flash actions for one device.
type Flasher struct {
	Chroots    *chroot.Manager
	Tree       *pmaports.Tree
	Deviceinfo deviceinfo.Deviceinfo
	Device     string
	User       string

	// KconfigCheck returns if the kernel config of the flavor has all
	// required options. Defaults to [kconfig.Check].
	KconfigCheck func(flavor string) (bool, error)
}

// FrontendOptions are the options of [Flasher.Frontend].
type FrontendOptions struct {
	Options

	// NoKconfigCheck skips the kernel config check before flashing and
	// booting the kernel.
	NoKconfigCheck bool
}

func (f *Flasher) method(override string) string {
	return cmp.Or(override, f.Deviceinfo.FlashMethod())
}

// Init prepares the native chroot for the flash method. The packages of the
// method are installed, the USB folders of the host and the rootfs chroot of
// the device are mounted.
func (f *Flasher) Init(ctx context.Context, methodName string) error {
	method, err := Lookup(methodName)
	if err != nil {
		return err
	}

	if len(method.Depends) > 0 {
		err := f.Chroots.InstallPackages(ctx, chroot.Native(), method.Depends...)
		if err != nil {
			return err
		}
	}

	native := f.Chroots.Path(chroot.Native())

	for _, folder := range config.FlashMountBinds {
		err := f.Chroots.BindMount(ctx, folder, filepath.Join(native, folder))
		if err != nil {
			return err
		}
	}

	return f.Chroots.BindMount(ctx,
		f.Chroots.Path(chroot.Rootfs(f.Device)),
		filepath.Join(native, "mnt", "rootfs_"+f.Device),
	)
}

// Run runs the commands of the action of the flash method in the native
// chroot.
func (f *Flasher) Run(ctx context.Context, methodName, action string, vars map[string]string) error {
	method, err := Lookup(methodName)
	if err != nil {
		return err
	}

	commands, exists := method.Actions[action]
	if !exists {
		return fmt.Errorf("%w: %s for %s, use --method to specify a different flash method",
			ErrActionNotSupported, action, methodName)
	}

	if action == ActionFlashVbmeta && vars["$PARTITION_VBMETA"] == "" {
		return fmt.Errorf("%w: set 'deviceinfo_flash_fastboot_partition_vbmeta' or "+
			"'deviceinfo_flash_heimdall_partition_vbmeta'", ErrNoVbmetaPartition)
	}

	err = f.Init(ctx, methodName)
	if err != nil {
		return err
	}

	blacklist := f.Deviceinfo.List("partition_blacklist")

	for _, command := range commands {
		args, err := Replace(command, vars, blacklist)
		if err != nil {
			return fmt.Errorf("%s of %s: %w", action, methodName, err)
		}

		_, err = f.Chroots.Root(ctx, chroot.Native(), args, chroot.Options{
			Output: run.OutputInteractive,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}

	return nil
}

// Flavor returns the requested kernel flavor or the first installed one.
func (f *Flasher) Flavor(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	flavors, err := chroot.InstalledFlavors(f.Chroots.Work, f.Device)
	if err != nil {
		return "", err
	}

	if len(flavors) == 0 {
		return "", fmt.Errorf("%w: run 'pmbootstrap install' first", ErrNoKernel)
	}

	return flavors[0], nil
}

// Frontend runs a flasher action with all checks.
func (f *Flasher) Frontend(ctx context.Context, action string, opts FrontendOptions) error {
	opts.Device = f.Device
	opts.Method = f.method(opts.Method)

	if action == ActionFlashSystem {
		action = ActionFlashRootfs
	}

	if opts.Method == MethodNone &&
		slices.Contains([]string{ActionBoot, ActionFlashKernel, ActionFlashRootfs}, action) {
		slog.Info("This device doesn't support any flash method.")
		return nil
	}

	switch action {
	case ActionBoot, ActionFlashKernel:
		return f.kernel(ctx, action, opts)
	case ActionFlashRootfs:
		return f.rootfs(ctx, opts)
	case ActionFlashVbmeta:
		slog.Info("(native) flash vbmeta.img with verity disabled flag")
		return f.Run(ctx, opts.Method, action, Variables(f.Deviceinfo, opts.Options))
	case ActionListFlavors:
		return f.listFlavors()
	case ActionListDevices:
		return f.Run(ctx, opts.Method, action, Variables(f.Deviceinfo, opts.Options))
	case ActionSideload:
		return f.sideload(ctx, opts)
	default:
		return fmt.Errorf("%w: %s", ErrActionNotSupported, action)
	}
}

func (f *Flasher) kernel(ctx context.Context, action string, opts FrontendOptions) error {
	flavor, err := f.Flavor(opts.Flavor)
	if err != nil {
		return err
	}

	opts.Flavor = flavor

	if !opts.NoKconfigCheck {
		check := f.KconfigCheck
		if check == nil {
			check = func(flavor string) (bool, error) {
				return kconfig.Check(f.Tree, flavor, false)
			}
		}

		ok, err := check(flavor)
		if errors.Is(err, pmaports.ErrPackageNotFound) {
			slog.Debug("No kernel aport for flavor, skip kconfig check",
				slog.String("flavor", flavor))
		} else if err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: linux-%s, use --no-kconfig-check to skip",
				ErrKconfigCheck, flavor)
		}
	}

	if action == ActionBoot {
		slog.Info("(native) boot kernel", slog.String("flavor", flavor))
	} else {
		slog.Info("(native) flash kernel", slog.String("flavor", flavor))
	}

	err = f.Run(ctx, opts.Method, action, Variables(f.Deviceinfo, opts.Options))
	if err != nil {
		return err
	}

	slog.Info("You will get an IP automatically assigned to your USB interface shortly.")
	slog.Info("Then you can connect to your device using ssh after pmOS has booted:")
	slog.Info("ssh " + f.User + "@" + config.DefaultIP)

	return nil
}

// ImagePath returns the host path of the rootfs image flashed by the
// method.
func (f *Flasher) ImagePath(method Method) string {
	name := f.Device + ".img"
	if method.Split {
		name = f.Device + "-root.img"
	}

	return filepath.Join(f.Chroots.Path(chroot.Native()), "home/pmos/rootfs", name)
}

func (f *Flasher) rootfs(ctx context.Context, opts FrontendOptions) error {
	method, err := Lookup(opts.Method)
	if err != nil {
		return err
	}

	path := f.ImagePath(method)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrImageNotFound, path)
	} else if err != nil {
		return fmt.Errorf("rootfs image: %w", err)
	}

	maxSize := f.Deviceinfo["flash_fastboot_max_size"]
	if strings.HasPrefix(opts.Method, "fastboot") && maxSize != "" {
		maxMiB, err := strconv.ParseInt(maxSize, 10, 64)
		if err != nil {
			return fmt.Errorf("deviceinfo_flash_fastboot_max_size: %w", err)
		}

		if info.Size() > maxMiB*1024*1024 {
			return fmt.Errorf("%w: %d MiB > %d MiB",
				ErrImageTooLarge, info.Size()/1024/1024, maxMiB)
		}
	}

	slog.Info("(native) flash rootfs image")

	return f.Run(ctx, opts.Method, ActionFlashRootfs, Variables(f.Deviceinfo, opts.Options))
}

func (f *Flasher) listFlavors() error {
	flavors, err := chroot.InstalledFlavors(f.Chroots.Work, f.Device)
	if err != nil {
		return err
	}

	slog.Info("(rootfs_" + f.Device + ") installed kernel flavors:")

	for _, flavor := range flavors {
		slog.Info("* " + flavor)
	}

	return nil
}

func (f *Flasher) sideload(ctx context.Context, opts FrontendOptions) error {
	method, err := Lookup(opts.Method)
	if err != nil {
		return err
	}

	err = f.Chroots.InstallPackages(ctx, chroot.Native(), method.Depends...)
	if err != nil {
		return err
	}

	buildroot := chroot.Buildroot(f.Deviceinfo.Arch())
	mountpoint := filepath.Join(f.Chroots.Path(chroot.Native()), "mnt", buildroot.String())

	err = f.Chroots.BindMount(ctx, f.Chroots.Path(buildroot), mountpoint)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(f.Chroots.Path(buildroot), RecoveryZipPath(f.Device))); err != nil {
		return fmt.Errorf("%w: %w", ErrRecoveryZipNotFound, err)
	}

	return f.Run(ctx, opts.Method, ActionSideload, Variables(f.Deviceinfo, opts.Options))
}
