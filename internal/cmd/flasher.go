// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/flasher"
)

var flasherActions = []struct {
	name  string
	short string
	// kernel actions take the kernel flags.
	kernel bool
}{
	{flasher.ActionBoot, "boot a kernel once", true},
	{flasher.ActionFlashKernel, "flash a kernel", true},
	{flasher.ActionFlashRootfs, "flash the rootfs to a partition on the device", false},
	{flasher.ActionFlashSystem, "alias of flash_rootfs", false},
	{flasher.ActionFlashVbmeta, "flash vbmeta partition with verification disabled flag", false},
	{flasher.ActionListFlavors, "list installed kernel flavors inside the device rootfs chroot", false},
	{flasher.ActionListDevices, "show connected devices", false},
	{flasher.ActionSideload, "push the installation zip to the device in recovery", false},
}

func newFlasherCommand(a *app) *cobra.Command {
	var opts flasher.FrontendOptions

	cmd := &cobra.Command{
		Use:   "flasher",
		Short: "flash something to the target device",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return &ParseArgsError{msg: "missing flasher action"}
		},
	}

	cmd.PersistentFlags().Var(newChoiceValue(&opts.Method, flasher.Methods()...), "method",
		"override flash method (default: deviceinfo_flash_method)")
	cmd.PersistentFlags().StringVar(&opts.Partition, "partition", "",
		"partition to flash to, overrides all partition variables")

	for _, action := range flasherActions {
		sub := &cobra.Command{
			Use:   action.name,
			Short: action.short,
			Args:  usageArgs(cobra.NoArgs),
		}

		if action.kernel {
			sub.Flags().StringVar(&opts.Flavor, "flavor", "",
				"name of the kernel flavor (default: first installed)")
			sub.Flags().StringVar(&opts.Cmdline, "cmdline", "",
				"override kernel commandline")
			sub.Flags().BoolVar(&opts.NoKconfigCheck, "no-kconfig-check", false,
				"skip the kernel config check")
		}

		sub.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
			f, err := a.flasher()
			if err != nil {
				return err
			}

			return f.Frontend(cmd.Context(), cmd.Name(), opts) //nolint:wrapcheck
		})

		cmd.AddCommand(sub)
	}

	return cmd
}
