// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const (
	machineTypeVirt = "virt"

	defaultMemory = 1024
	defaultPort   = 2222
	defaultVideo  = "1024x768@60"
)

// Displays are the supported values of [CommandSpec.Display].
var Displays = []string{"sdl", "gtk", "none"}

// AudioBackends are the supported values of [CommandSpec.Audio]. Empty
// disables audio.
var AudioBackends = []string{"alsa", "pa", "sdl"}

// CommandSpec defines the parameters for a QEMU command.
type CommandSpec struct {
	// Device is the configured device. It must be one of the QEMU device
	// packages.
	Device string

	// Path to the qemu-system binary.
	Executable string
	// Prefix is prepended to the executable, like the dynamic loader of the
	// native chroot.
	Prefix []string
	// DataDir is the folder with firmware and keymaps of QEMU.
	DataDir string
	// Env is set for the QEMU process.
	Env map[string]string

	Kernel    string
	Initramfs string
	// Cmdline is the kernel command line. The video mode is appended unless
	// it has one.
	Cmdline string
	// Image is the rootfs image attached as virtio drive.
	Image string

	// Memory for the machine in MiB.
	Memory uint64
	// Number of CPUs for the guest.
	SMP uint64
	// CPU type to use. Depends on machine type and QEMU binary used.
	CPU string
	// Port on localhost forwarded to ssh of the guest.
	Port uint16

	// Disable KVM support.
	NoKVM bool

	Display string
	GL      bool
	// Video is the resolution and refresh rate, like "1024x768@60".
	Video string
	Audio string
	// Tablet uses an absolute pointing device instead of a mouse.
	Tablet bool

	// ExtraArgs are extra arguments that are passed to the QEMU command.
	// They must not interfere with the essential arguments set by the spec
	// itself or an error is returned by [CommandSpec.Command].
	ExtraArgs []Argument

	machine   string
	archCPU   string
	archFlags []Argument
}

// AddDefaultsFor adds architecture specific default values to the given spec
// if the fields are not set yet.
func (s *CommandSpec) AddDefaultsFor(arch sys.Arch) error {
	switch arch {
	case sys.X86_64:
		s.archFlags = []Argument{UniqueArg("vga", "virtio")}
	case sys.AArch64:
		s.machine = machineTypeVirt
		s.archCPU = "cortex-a57"
		s.archFlags = []Argument{RepeatableArg("device", "virtio-gpu-pci")}
	default:
		return fmt.Errorf("%w: %s", sys.ErrArchNotSupported, arch)
	}

	if s.Executable == "" {
		s.Executable = "qemu-system-" + arch.QemuSystemArch()
	}

	if !s.NoKVM {
		s.NoKVM = !arch.KVMAvailable()
	}

	s.Memory = cmp.Or(s.Memory, defaultMemory)
	s.SMP = cmp.Or(s.SMP, uint64(runtime.NumCPU())) //nolint:gosec
	s.Port = cmp.Or(s.Port, defaultPort)
	s.Video = cmp.Or(s.Video, defaultVideo)
	s.Display = cmp.Or(s.Display, "sdl")

	return nil
}

// Validate checks for known incompatibilities.
func (s *CommandSpec) Validate() error {
	if !strings.HasPrefix(s.Device, "qemu-") {
		return fmt.Errorf("%w: %q, run 'pmbootstrap init' and select the 'qemu' vendor",
			ErrNotQemuDevice, s.Device)
	}

	if s.Display != "" && !slices.Contains(Displays, s.Display) {
		return fmt.Errorf("%w: display %s", ErrInvalidChoice, s.Display)
	}

	if s.Audio != "" && !slices.Contains(AudioBackends, s.Audio) {
		return fmt.Errorf("%w: audio %s", ErrInvalidChoice, s.Audio)
	}

	return nil
}

// KernelCmdline returns the kernel command line with the video mode.
func (s *CommandSpec) KernelCmdline() string {
	if strings.Contains(s.Cmdline, "video=") {
		return s.Cmdline
	}

	return strings.TrimSpace(s.Cmdline + " video=" + s.Video)
}

// arguments compiles the argument list for the QEMU command.
func (s *CommandSpec) arguments() []Argument {
	args := []Argument{
		UniqueArg("nodefaults"),
		UniqueArg("kernel", s.Kernel),
		UniqueArg("initrd", s.Initramfs),
		UniqueArg("append", s.KernelCmdline()),
		UniqueArg("smp", strconv.FormatUint(s.SMP, 10)),
		UniqueArg("m", strconv.FormatUint(s.Memory, 10)),
		RepeatableArg("serial", "stdio"),
		RepeatableArg("drive").With("file", s.Image).With("format", "raw").With("if", "virtio"),
	}

	if s.DataDir != "" {
		args = append(args, UniqueArg("L", s.DataDir))
	}

	pointer := "virtio-mouse-pci"
	if s.Tablet {
		pointer = "virtio-tablet-pci"
	}

	args = append(args,
		RepeatableArg("device", pointer),
		RepeatableArg("device", "virtio-keyboard-pci"),
		// The empty last option gives the trailing comma QEMU's user
		// networking expects after hostfwd.
		RepeatableArg("nic", "user", "model=virtio-net-pci",
			"hostfwd=tcp::"+strconv.Itoa(int(s.Port))+"-:22", ""),
	)

	if s.machine != "" {
		args = append(args, UniqueArg("M", s.machine))
	}

	args = append(args, s.archFlags...)

	cpu := s.CPU

	if !s.NoKVM {
		args = append(args, UniqueArg("enable-kvm"))
		cpu = cmp.Or(cpu, "host")
	}

	if cpu = cmp.Or(cpu, s.archCPU); cpu != "" {
		args = append(args, UniqueArg("cpu", cpu))
	}

	display := UniqueArg("display", s.Display)
	if s.Display != "none" {
		gl := "off"
		if s.GL {
			gl = "on"
		}

		display = display.With("gl", gl)
	}

	args = append(args, display, UniqueArg("show-cursor"))

	if s.Audio != "" {
		args = append(args,
			RepeatableArg("audiodev", s.Audio).With("id", "audio"),
			RepeatableArg("device", "AC97").With("audiodev", "audio"),
		)
	}

	return append(args, s.ExtraArgs...)
}

// Command returns the complete command line including the executable.
func (s *CommandSpec) Command() ([]string, error) {
	args, err := BuildArgumentStrings(s.arguments())
	if err != nil {
		return nil, err
	}

	return slices.Concat(s.Prefix, []string{s.Executable}, args), nil
}
