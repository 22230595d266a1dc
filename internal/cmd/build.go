// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/build"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// buildArch returns the architecture packages are built for if no --arch
// is given.
func (a *app) buildArch(arch sys.Arch) (sys.Arch, error) {
	if arch != "" {
		return arch, nil
	}

	if !a.cfg.BuildDefaultDeviceArch {
		return sys.NativeArch(), nil
	}

	info, err := a.deviceinfo()
	if err != nil {
		return "", err
	}

	return info.Arch(), nil
}

func newBuildCommand(a *app) *cobra.Command {
	var (
		opts build.Options
		src  sys.FilePath
	)

	cmd := &cobra.Command{
		Use:   "build [flags] package...",
		Short: "create a package for an architecture",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
	}

	flags := cmd.Flags()
	flags.Var(&opts.Arch, "arch", "CPU architecture to build for "+
		"(default: native or device arch, see build_default_device_arch)")
	flags.BoolVar(&opts.Force, "force", false,
		"even build if not necessary")
	flags.BoolVar(&opts.Strict, "strict", false,
		"(slower) zap and install only required depends when building, "+
			"to detect dependency errors")
	flags.BoolVarP(&opts.NoDepends, "no-depends", "n", false,
		"never build dependencies, only the given packages")
	flags.Var(&src, "src", "override source used to build the package "+
		"with a local folder")

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, args []string) error {
		if src != "" {
			if len(args) > 1 {
				return &ParseArgsError{msg: "--src can only be used with one package"}
			}

			stat, err := os.Stat(string(src))
			if err != nil || !stat.IsDir() {
				return &ParseArgsError{msg: "--src must be an existing folder", err: err}
			}

			opts.Src = string(src)
		}

		arch, err := a.buildArch(opts.Arch)
		if err != nil {
			return err
		}

		opts.Arch = arch

		builder, err := a.builder()
		if err != nil {
			return err
		}

		for _, pkgname := range args {
			built, err := builder.Package(cmd.Context(), pkgname, opts)
			if err != nil {
				return fmt.Errorf("build %s: %w", pkgname, err)
			}

			if !built {
				slog.Info("NOTE: Package '" + pkgname + "' is up to date. " +
					"Use 'pmbootstrap build " + pkgname + " --force' " +
					"if needed.")
			}
		}

		return nil
	})

	return cmd
}

func newBuildInitCommand(a *app) *cobra.Command {
	var arch sys.Arch

	cmd := &cobra.Command{
		Use:   "build_init",
		Short: "initialize build environment (usually you do not need to call this)",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.Flags().Var(&arch, "arch", "CPU architecture of the build chroot")

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
		builder, err := a.builder()
		if err != nil {
			return err
		}

		arch, err := a.buildArch(arch)
		if err != nil {
			return err
		}

		return builder.Init(cmd.Context(), builder.Chroot(arch)) //nolint:wrapcheck
	})

	return cmd
}

func newIndexCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "re-index all repositories with custom built packages (do after manually moving packages)",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
		builder, err := a.builder()
		if err != nil {
			return err
		}

		return builder.Index(cmd.Context()) //nolint:wrapcheck
	})

	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		arch        sys.Arch
		nonExisting bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "update all existing APKINDEX files",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.Flags().Var(&arch, "arch", "only update a specific architecture")
	cmd.Flags().BoolVar(&nonExisting, "non-existing", false,
		"do not only update the existing APKINDEX files, but all of them")

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
		chroots, err := a.chroots()
		if err != nil {
			return err
		}

		archs := []sys.Arch{arch}
		if arch == "" {
			archs = updateArchs(a.cfg.Work, nonExisting, chroots.DeviceArch)
		}

		for _, arch := range archs {
			slog.Info("Update APKINDEX files", slog.String("arch", arch.String()))

			err := chroots.UpdateIndexes(cmd.Context(), arch, false)
			if err != nil {
				return err //nolint:wrapcheck
			}
		}

		return nil
	})

	return cmd
}

// updateArchs returns the architectures with an apk cache in the work
// folder, or all device architectures with nonExisting.
func updateArchs(work string, nonExisting bool, deviceArch sys.Arch) []sys.Arch {
	if nonExisting {
		return sys.DeviceArchs
	}

	var archs []sys.Arch

	for _, arch := range sys.DeviceArchs {
		_, err := os.Stat(filepath.Join(work, "cache_apk_"+arch.String()))
		if err == nil || arch == deviceArch || arch.IsNative() {
			archs = append(archs, arch)
		}
	}

	return archs
}

func newStatsCommand(a *app) *cobra.Command {
	var arch sys.Arch

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "show ccache statistics",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.Flags().Var(&arch, "arch", "CPU architecture of the build chroot")

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
		builder, err := a.builder()
		if err != nil {
			return err
		}

		arch, err := a.buildArch(arch)
		if err != nil {
			return err
		}

		c := builder.Chroot(arch)

		_, err = os.Stat(builder.Chroots.Path(c))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrChrootMissing, c)
		}

		_, err = builder.Chroots.User(cmd.Context(), c, []string{"ccache", "-s"},
			chroot.Options{Output: run.OutputStdout})

		return err //nolint:wrapcheck
	})

	return cmd
}

func newLintCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint [package...]",
		Short: "run quality checks against APKBUILDs (default: all)",
	}

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, args []string) error {
		chroots, err := a.chroots()
		if err != nil {
			return err
		}

		return lint(cmd.Context(), chroots, a.cfg.AportsDir(), args, a.tree().Find)
	})

	return cmd
}

// lintMount is the mount point of pmaports in the native chroot.
const lintMount = "/mnt/pmaports"

// lint runs apkbuild-lint from atools in the native chroot on the APKBUILDs
// of the given packages, or on all APKBUILDs if none are given.
func lint(
	ctx context.Context,
	chroots *chroot.Manager,
	aports string,
	pkgnames []string,
	find func(string) (string, error),
) error {
	paths := make([]string, 0, len(pkgnames))

	for _, pkgname := range pkgnames {
		dir, err := find(pkgname)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(aports, filepath.Join(dir, "APKBUILD"))
		if err != nil {
			return fmt.Errorf("relative APKBUILD path: %w", err)
		}

		paths = append(paths, rel)
	}

	if len(paths) == 0 {
		matches, err := filepath.Glob(filepath.Join(aports, "*", "*", "APKBUILD"))
		if err != nil {
			return fmt.Errorf("glob: %w", err)
		}

		for _, match := range matches {
			rel, _ := filepath.Rel(aports, match)
			paths = append(paths, rel)
		}
	}

	native := chroot.Native()

	err := chroots.InstallPackages(ctx, native, "atools")
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = chroots.BindMount(ctx, aports, filepath.Join(chroots.Path(native), lintMount))
	if err != nil {
		return err //nolint:wrapcheck
	}

	slog.Info(fmt.Sprintf("(native) linting %d APKBUILDs", len(paths)))

	_, err = chroots.User(ctx, native, append([]string{"apkbuild-lint"}, paths...),
		chroot.Options{Dir: lintMount, Output: run.OutputStdout})
	if err != nil {
		return fmt.Errorf("apkbuild-lint: %w", err)
	}

	return nil
}
