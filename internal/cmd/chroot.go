// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// buildrootDeviceArch is the value of a bare --buildroot flag.
const buildrootDeviceArch = "device"

type chrootFlags struct {
	rootfs    bool
	buildroot string
	suffix    string
	user      bool
	output    run.Output
	add       []string
}

// selectChroot returns the chroot selected by the flags. The native chroot
// is the default.
func (f *chrootFlags) selectChroot(device string, deviceArch sys.Arch) (chroot.Chroot, error) {
	var (
		c   = chroot.Native()
		err error
	)

	switch {
	case f.rootfs:
		c = chroot.Rootfs(device)
	case f.buildroot != "":
		arch := deviceArch

		if f.buildroot != buildrootDeviceArch {
			err = arch.Set(f.buildroot)
			if err != nil {
				return chroot.Chroot{}, &ParseArgsError{msg: "--buildroot", err: err}
			}
		}

		c = chroot.Buildroot(arch)
	case f.suffix != "":
		c, err = chroot.Parse(f.suffix)
		if err != nil {
			return chroot.Chroot{}, &ParseArgsError{msg: "--suffix", err: err}
		}
	}

	if f.user && (c.Type == chroot.TypeRootfs || c.Type == chroot.TypeInstaller) {
		return chroot.Chroot{}, ErrUserInRootfs
	}

	return c, nil
}

func newChrootCommand(a *app) *cobra.Command {
	var flags chrootFlags

	cmd := &cobra.Command{
		Use:   "chroot [flags] [-- command...]",
		Short: "start shell in chroot",
		Long: "Run a command inside a chroot. The default command is an " +
			"interactive shell in the native chroot.",
	}

	fs := cmd.Flags()
	fs.BoolVarP(&flags.rootfs, "rootfs", "r", false,
		"chroot into the device root file system")
	fs.StringVarP(&flags.buildroot, "buildroot", "b", "",
		"chroot into the buildroot of an architecture (default: device arch)")
	fs.Lookup("buildroot").NoOptDefVal = buildrootDeviceArch
	fs.StringVarP(&flags.suffix, "suffix", "s", "",
		"chroot suffix, like native, buildroot_armv7 or rootfs_qemu-amd64")
	fs.BoolVar(&flags.user, "user", false,
		"run the command as user, not as root")
	fs.Var(&flags.output, "output",
		"how the output of the command is handled (default: tui)")
	fs.StringSliceVar(&flags.add, "add", nil,
		"comma separated list of packages to be installed first")

	cmd.MarkFlagsMutuallyExclusive("rootfs", "buildroot", "suffix")

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, args []string) error {
		chroots, err := a.chroots()
		if err != nil {
			return err
		}

		c, err := flags.selectChroot(a.cfg.Device, chroots.DeviceArch)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			args = []string{"sh", "-i"}
		}

		output := flags.output
		if output == "" {
			output = run.OutputTUI
		}

		err = chroots.InstallPackages(cmd.Context(), c, flags.add...)
		if err != nil {
			return err //nolint:wrapcheck
		}

		slog.Info(fmt.Sprintf("(%s) %s", c, run.Flat(args, "", nil)))

		enter := chroots.Root
		if flags.user {
			enter = chroots.User
		}

		_, err = enter(cmd.Context(), c, args, chroot.Options{Output: output})

		return err //nolint:wrapcheck
	})

	return cmd
}

func newZapCommand(a *app) *cobra.Command {
	var (
		opts chroot.ZapOptions
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "zap",
		Short: "safely delete chroot folders",
		Args:  usageArgs(cobra.NoArgs),
	}

	fs := cmd.Flags()
	fs.BoolVar(&opts.Dry, "dry", false,
		"only show what would be deleted")
	fs.BoolVarP(&opts.Packages, "pkgs-local", "p", false,
		"also delete all locally compiled packages")
	fs.BoolVar(&opts.HTTP, "http", false,
		"also delete http cache")
	fs.BoolVarP(&opts.Distfiles, "distfiles", "d", false,
		"also delete the downloaded source files of packages")
	fs.BoolVar(&opts.Rust, "rust", false,
		"also delete the rust related caches")
	fs.BoolVarP(&all, "all", "a", false,
		"delete everything, equivalent to all other flags")

	cmd.RunE = a.action(checkHost, func(cmd *cobra.Command, _ []string) error {
		if all {
			opts.Packages, opts.HTTP, opts.Distfiles, opts.Rust = true, true, true, true
		}

		opts.Confirm = true

		deleted, err := a.bareChroots().Zap(cmd.Context(), opts)
		if err != nil {
			return err //nolint:wrapcheck
		}

		slog.Debug("Zapped", slog.Int("count", len(deleted)))

		return nil
	})

	return cmd
}

func newShutdownCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "umount, unregister binfmt",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.RunE = a.action(checkHost, func(cmd *cobra.Command, _ []string) error {
		err := a.bareChroots().Shutdown(cmd.Context(), false)
		if err != nil {
			return err //nolint:wrapcheck
		}

		slog.Info("Shutdown complete")

		return nil
	})

	return cmd
}
