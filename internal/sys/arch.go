// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"os"
	"runtime"
	"slices"
)

// Arch is an architecture name as used by Alpine Linux and its package
// manager, e.g. "x86_64" or "armv7".
type Arch string

// Supported architectures.
const (
	X86_64  Arch = "x86_64"
	X86     Arch = "x86"
	AArch64 Arch = "aarch64"
	ARMHF   Arch = "armhf"
	ARMv7   Arch = "armv7"
	PPC64LE Arch = "ppc64le"
	S390X   Arch = "s390x"
	RISCV64 Arch = "riscv64"
)

// DeviceArchs are the architectures devices can be built for.
var DeviceArchs = []Arch{ARMHF, ARMv7, AArch64, X86_64, X86}

var goArchs = map[string]Arch{
	"amd64":   X86_64,
	"386":     X86,
	"arm64":   AArch64,
	"arm":     ARMv7,
	"ppc64le": PPC64LE,
	"s390x":   S390X,
	"riscv64": RISCV64,
}

// NativeArch returns the architecture of the host.
func NativeArch() Arch {
	return goArchs[runtime.GOARCH]
}

func (a Arch) String() string {
	return string(a)
}

// IsValid returns if the architecture is known.
func (a Arch) IsValid() bool {
	switch a {
	case X86_64, X86, AArch64, ARMHF, ARMv7, PPC64LE, S390X, RISCV64:
		return true
	default:
		return false
	}
}

// IsNative returns if the architecture matches the one of the host.
func (a Arch) IsNative() bool {
	return NativeArch() == a
}

// IsDeviceArch returns if packages can be built for devices of this
// architecture.
func (a Arch) IsDeviceArch() bool {
	return slices.Contains(DeviceArchs, a)
}

// KVMAvailable checks if KVM support is available for the given architecture.
func (a Arch) KVMAvailable() bool {
	if !a.IsNative() {
		return false
	}

	f, err := os.OpenFile("/dev/kvm", os.O_WRONLY, 0)
	_ = f.Close()

	return err == nil
}

// QemuArch returns the architecture name as used in QEMU binary names, like
// "qemu-system-<arch>" or "qemu-<arch>" for user mode emulation.
func (a Arch) QemuArch() string {
	switch a {
	case X86:
		return "i386"
	case ARMHF, ARMv7:
		return "arm"
	case PPC64LE:
		return "ppc64le"
	default:
		return string(a)
	}
}

// QemuSystemArch is like [Arch.QemuArch] but for full system emulation.
func (a Arch) QemuSystemArch() string {
	if a == PPC64LE {
		return "ppc64"
	}

	return a.QemuArch()
}

// KernelArch returns the architecture name as used by the Linux kernel build
// system.
func (a Arch) KernelArch() string {
	switch a {
	case X86:
		return "x86"
	case AArch64:
		return "arm64"
	case ARMHF, ARMv7:
		return "arm"
	case PPC64LE:
		return "powerpc"
	case RISCV64:
		return "riscv"
	case S390X:
		return "s390"
	default:
		return string(a)
	}
}

// Set implements [pflag.Value].
func (a *Arch) Set(s string) error {
	arch := Arch(s)
	if !arch.IsValid() {
		return ErrArchNotSupported
	}

	*a = arch

	return nil
}

// Type implements [pflag.Value].
func (*Arch) Type() string {
	return "arch"
}
