// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/export"
	"github.com/z3ntu/pmbootstrap/internal/flasher"
	"github.com/z3ntu/pmbootstrap/internal/initramfs"
)

// flavor returns the given flavor, or the first one installed in the rootfs.
func (a *app) flavor(flavor string) (string, error) {
	if flavor != "" {
		return flavor, nil
	}

	flavors, err := chroot.InstalledFlavors(a.cfg.Work, a.cfg.Device)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	if len(flavors) == 0 {
		return "", flasher.ErrNoKernel
	}

	return flavors[0], nil
}

func newInitfsCommand(a *app) *cobra.Command {
	var (
		flavor string
		extra  bool
	)

	cmd := &cobra.Command{
		Use:   "initfs",
		Short: "inspect the initramfs of the device rootfs",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			return &ParseArgsError{msg: "missing initfs action"}
		},
	}

	cmd.PersistentFlags().StringVar(&flavor, "flavor", "",
		"name of the kernel flavor (default: first installed)")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "list the contents of the initramfs",
		Args:  usageArgs(cobra.NoArgs),
	}

	ls.Flags().BoolVar(&extra, "extra", false,
		"list the initramfs-extra instead")

	ls.RunE = a.action(checkConfig, func(*cobra.Command, []string) error {
		flavor, err := a.flavor(flavor)
		if err != nil {
			return err
		}

		path := initramfs.Path(chroot.Rootfs(a.cfg.Device).Path(a.cfg.Work), flavor, extra)

		entries, compression, err := initramfs.Read(path)
		if err != nil {
			return err //nolint:wrapcheck
		}

		slog.Debug("Read initramfs",
			slog.String("path", path),
			slog.String("compression", string(compression)),
			slog.Int("entries", len(entries)),
		)

		for _, entry := range entries {
			fmt.Fprintln(a.io.Stdout, entry.String())
		}

		return nil
	})

	cmd.AddCommand(ls)

	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var flavor string

	cmd := &cobra.Command{
		Use:   "export [folder]",
		Short: "create convenience symlinks to generated image files " +
			"(default folder: " + export.DefaultFolder + ")",
		Args: usageArgs(cobra.MaximumNArgs(1)),
	}

	cmd.Flags().StringVar(&flavor, "flavor", "",
		"name of the kernel flavor (default: first installed)")

	cmd.RunE = a.action(checkPmaports, func(_ *cobra.Command, args []string) error {
		info, err := a.deviceinfo()
		if err != nil {
			return err
		}

		flavor, err := a.flavor(flavor)
		if err != nil {
			return err
		}

		opts := export.Options{
			Work:   a.cfg.Work,
			Device: a.cfg.Device,
			Arch:   info.Arch(),
			Flavor: flavor,
		}

		if len(args) > 0 {
			opts.Folder = args[0]
		}

		links, err := export.Symlinks(opts)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if len(links) == 0 {
			slog.Warn("Nothing to export, run 'pmbootstrap install' first")
		}

		return nil
	})

	return cmd
}
