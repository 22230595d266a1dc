// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/qemu"
)

const (
	memMin = 128
	memMax = 65536

	smpMin = 1
	smpMax = 64

	portMax = 65535
)

type qemuFlags struct {
	spec  qemu.CommandSpec
	opts  qemu.Options
	port  uint64
	noGL  bool
	audio string
}

func (f *qemuFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()

	fs.StringVar(&f.spec.Cmdline, "cmdline", "",
		"override kernel commandline")
	fs.Var(&sizeValue{value: &f.opts.ImageSize}, "image-size",
		"set rootfs size, like 2G or 4096M (default: unchanged)")
	fs.Var(&LimitedUintValue{Value: &f.spec.Memory, Lower: memMin, Upper: memMax},
		"memory", "guest RAM in MiB (default: 1024)")
	fs.Var(&LimitedUintValue{Value: &f.spec.SMP, Lower: smpMin, Upper: smpMax},
		"smp", "number of guest CPUs (default: number of host CPUs)")
	fs.StringVar(&f.spec.CPU, "cpu", "",
		"QEMU CPU type (default: host with KVM, otherwise arch default)")
	fs.Var(&LimitedUintValue{Value: &f.port, Lower: 1, Upper: portMax},
		"port", "SSH port forwarded to the guest (default: 2222)")
	fs.BoolVar(&f.spec.NoKVM, "no-kvm", false,
		"do not use KVM, even if it is available")
	fs.Var(newChoiceValue(&f.spec.Display, qemu.Displays...), "display",
		"QEMU display (default: sdl)")
	fs.BoolVar(&f.noGL, "no-gl", false,
		"do not use OpenGL acceleration of the display")
	fs.StringVar(&f.spec.Video, "video", "",
		"video resolution and refresh rate (default: 1024x768@60)")
	fs.Var(newChoiceValue(&f.audio, qemu.AudioBackends...), "audio",
		"use an audio backend")
	fs.BoolVar(&f.spec.Tablet, "tablet", false,
		"use an absolute pointing device instead of a mouse")
	fs.BoolVar(&f.opts.HostQemu, "host-qemu", false,
		"use the QEMU binary of the host system instead of the native chroot")
	fs.StringVar(&f.opts.Flavor, "flavor", "",
		"name of the kernel flavor (default: first installed)")
}

// commandSpec returns the spec for the device with the flag values.
func (f *qemuFlags) commandSpec(device string) qemu.CommandSpec {
	spec := f.spec
	spec.Device = device
	spec.Port = uint16(f.port) //nolint:gosec
	spec.GL = !f.noGL
	spec.Audio = f.audio

	return spec
}

func newQemuCommand(a *app) *cobra.Command {
	var flags qemuFlags

	cmd := &cobra.Command{
		Use:   "qemu",
		Short: "run the rootfs image of a QEMU device in QEMU",
		Args:  usageArgs(cobra.NoArgs),
	}

	flags.register(cmd)

	cmd.RunE = a.action(checkPmaports, func(cmd *cobra.Command, _ []string) error {
		chroots, err := a.chroots()
		if err != nil {
			return err
		}

		info, err := a.deviceinfo()
		if err != nil {
			return err
		}

		runner := &qemu.Runner{
			Chroots:       chroots,
			Arch:          info.Arch(),
			KernelCmdline: info.KernelCmdline(),
		}

		opts := flags.opts
		opts.User = a.cfg.User

		return runner.Run(cmd.Context(), flags.commandSpec(a.cfg.Device), opts) //nolint:wrapcheck
	})

	return cmd
}
