// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const gdkCacheDir = "/usr/lib/gdk-pixbuf-2.0/2.10.0/"

// Options are the choices of a single qemu run that are not part of the
// [CommandSpec].
type Options struct {
	// HostQemu uses the QEMU binary of the host instead of the one of the
	// native chroot.
	HostQemu bool
	// ImageSize grows the rootfs image before booting, like "2G".
	ImageSize string
	// Flavor defaults to the first kernel installed in the rootfs.
	Flavor string
	// User is the name of the user in the rootfs, used for the ssh hint.
	User string
}

// Runner boots the rootfs image of the device in QEMU.
type Runner struct {
	Chroots *chroot.Manager
	// Arch is the architecture of the device.
	Arch sys.Arch
	// KernelCmdline is deviceinfo_kernel_cmdline. It is used if the spec
	// has no command line.
	KernelCmdline string
}

// SystemImage returns the path of the rootfs image of the device.
func (r *Runner) SystemImage(device string) (string, error) {
	path := filepath.Join(r.Chroots.Path(chroot.Native()), "home/pmos/rootfs", device+".img")

	if _, err := os.Stat(path); err != nil {
		slog.Debug("Could not find rootfs: " + path)

		return "", fmt.Errorf("%w: run 'pmbootstrap install' first", ErrImageNotFound)
	}

	return path, nil
}

// Depends returns the packages required in the native chroot to run QEMU
// for the architecture.
func Depends(qemuArch string) []string {
	return []string{
		"qemu", "qemu-system-" + qemuArch, "qemu-ui-sdl", "qemu-ui-gtk",
		"mesa-gl", "mesa-egl", "mesa-dri-gallium",
		"qemu-audio-alsa", "qemu-audio-pa", "qemu-audio-sdl",
	}
}

// Prepare fills in the paths of the spec and the architecture defaults.
func (r *Runner) Prepare(spec *CommandSpec, opts Options) error {
	err := spec.Validate()
	if err != nil {
		return err
	}

	spec.Image, err = r.SystemImage(spec.Device)
	if err != nil {
		return err
	}

	flavor := opts.Flavor
	if flavor == "" {
		flavors, err := chroot.InstalledFlavors(r.Chroots.Work, spec.Device)
		if err != nil {
			return err
		}

		if len(flavors) == 0 {
			return fmt.Errorf("%w: rootfs of %s", ErrNoKernel, spec.Device)
		}

		flavor = flavors[0]
	}

	rootfs := r.Chroots.Path(chroot.Rootfs(spec.Device))
	spec.Kernel = filepath.Join(rootfs, "boot/vmlinuz-"+flavor)
	spec.Initramfs = filepath.Join(rootfs, "boot/initramfs-"+flavor)

	if spec.Cmdline == "" {
		spec.Cmdline = r.KernelCmdline
	}

	if !opts.HostQemu {
		r.useNativeChroot(spec)
	}

	err = spec.AddDefaultsFor(r.Arch)
	if err != nil {
		return err
	}

	if opts.HostQemu {
		_, err := exec.LookPath(spec.Executable)
		if err != nil {
			return fmt.Errorf("%w: %s, install it in order to run qemu",
				ErrExecutableNotFound, spec.Executable)
		}
	}

	return nil
}

// useNativeChroot runs the QEMU binary of the native chroot with its dynamic
// loader and libraries.
func (r *Runner) useNativeChroot(spec *CommandSpec) {
	native := r.Chroots.Path(chroot.Native())
	nativeArch := r.Chroots.Arch(chroot.Native())

	spec.Prefix = []string{
		filepath.Join(native, "lib/ld-musl-"+nativeArch.String()+".so.1"),
		"--library-path=" + strings.Join([]string{
			filepath.Join(native, "lib"),
			filepath.Join(native, "usr/lib"),
			filepath.Join(native, "usr/lib/pulseaudio"),
		}, ":"),
	}
	spec.Executable = filepath.Join(native, "usr/bin/qemu-system-"+r.Arch.QemuSystemArch())
	spec.DataDir = filepath.Join(native, "usr/share/qemu") + "/"

	spec.Env = maps.Clone(spec.Env)
	if spec.Env == nil {
		spec.Env = make(map[string]string)
	}

	spec.Env["QEMU_MODULE_DIR"] = filepath.Join(native, "usr/lib/qemu")
	spec.Env["GBM_DRIVERS_PATH"] = filepath.Join(native, "usr/lib/xorg/modules/dri")
	spec.Env["LIBGL_DRIVERS_PATH"] = filepath.Join(native, "usr/lib/xorg/modules/dri")
}

// gdkLoaderCache creates a gdk pixbuf loader cache with paths of the native
// chroot, for running GTK outside of the chroot.
func (r *Runner) gdkLoaderCache(ctx context.Context) (string, error) {
	native := r.Chroots.Path(chroot.Native())
	customCache := gdkCacheDir + "loaders-pmos-chroot.cache"

	if _, err := os.Stat(filepath.Join(native, customCache)); err == nil {
		return filepath.Join(native, customCache), nil
	}

	cache := gdkCacheDir + "loaders.cache"
	if _, err := os.Stat(filepath.Join(native, cache)); err != nil {
		return "", fmt.Errorf("gdk pixbuf cache file not found: %s", cache)
	}

	for _, args := range [][]string{
		{"cp", cache, customCache},
		{"sed", "-i", "-e", `s@"` + gdkCacheDir + `@"` + native + gdkCacheDir + `@`, customCache},
	} {
		_, err := r.Chroots.Root(ctx, chroot.Native(), args, chroot.Options{})
		if err != nil {
			return "", fmt.Errorf("gdk loader cache: %w", err)
		}
	}

	return filepath.Join(native, customCache), nil
}

// prepareImage makes the image writable for the invoking user, as QEMU
// does not run as root, and resizes it if requested.
func (r *Runner) prepareImage(ctx context.Context, image, size string) error {
	if unix.Access(image, unix.W_OK) != nil {
		_, err := run.Root(ctx, r.Chroots.Runner, run.Cmd{Args: []string{"chmod", "666", image}})
		if err != nil {
			return fmt.Errorf("make image writable: %w", err)
		}
	}

	if size == "" {
		slog.Info("NOTE: Run 'pmbootstrap qemu --image-size 2G' to set" +
			" the rootfs size when you run out of space!")

		return nil
	}

	return ResizeImage(size, image)
}

// Run boots the image described by the spec. It blocks until QEMU exits.
func (r *Runner) Run(ctx context.Context, spec CommandSpec, opts Options) error {
	err := r.Prepare(&spec, opts)
	if err != nil {
		return err
	}

	slog.Info("Running postmarketOS in QEMU VM (" + r.Arch.QemuSystemArch() + ")")
	slog.Debug("Kernel cmdline: " + spec.KernelCmdline())

	group, groupCtx := errgroup.WithContext(ctx)

	if !opts.HostQemu {
		group.Go(func() error {
			err := r.Chroots.InstallPackages(groupCtx, chroot.Native(),
				Depends(r.Arch.QemuSystemArch())...)
			if err != nil || !strings.Contains(spec.Display, "gtk") {
				return err
			}

			cache, err := r.gdkLoaderCache(groupCtx)
			if err != nil {
				return err
			}

			native := r.Chroots.Path(chroot.Native())
			spec.Env["GTK_THEME"] = "Default"
			spec.Env["GDK_PIXBUF_MODULE_FILE"] = cache
			spec.Env["XDG_DATA_DIRS"] = native + "/usr/local/share:" + native + "/usr/share"

			return nil
		})
	}

	group.Go(func() error {
		return r.prepareImage(groupCtx, spec.Image, opts.ImageSize)
	})

	err = group.Wait()
	if err != nil {
		return err
	}

	if spec.NoKVM {
		slog.Warn("QEMU is not using KVM and will run slower!")
	}

	command, err := spec.Command()
	if err != nil {
		return err
	}

	slog.Info("Connect to the VM:")
	slog.Info(fmt.Sprintf("* (ssh) ssh -p %d %s@localhost", spec.Port, opts.User))
	slog.Info("* (serial) in this console (stdout/stdin)")

	_, err = run.User(ctx, r.Chroots.Runner, run.Cmd{
		Args:   command,
		Env:    spec.Env,
		Output: run.OutputTUI,
	})
	if err != nil {
		return fmt.Errorf("run qemu: %w", err)
	}

	return nil
}
