// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// binfmt is the ELF header magic and mask of an architecture as expected by
// binfmt_misc. Both are escaped, the kernel decodes them.
type binfmt struct {
	magic string
	mask  string
}

const (
	elfMask32 = `\xff\xff\xff\xff\xff\xff\xff\x00\xff\xff\xff\xff\xff\xff\xff\xff\xfe\xff\xff\xff`
	elfMaskX  = `\xff\xff\xff\xff\xff\xfe\xfe\x00\xff\xff\xff\xff\xff\xff\xff\xff\xfe\xff\xff\xff`
)

// binfmts is indexed by [sys.Arch.QemuArch].
var binfmts = map[string]binfmt{
	"aarch64": {
		magic: `\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\xb7\x00`,
		mask:  elfMask32,
	},
	"arm": {
		magic: `\x7fELF\x01\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\x28\x00`,
		mask:  elfMask32,
	},
	"x86_64": {
		magic: `\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\x3e\x00`,
		mask:  elfMaskX,
	},
	"i386": {
		magic: `\x7fELF\x01\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\x03\x00`,
		mask:  elfMaskX,
	},
	"riscv64": {
		magic: `\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\xf3\x00`,
		mask:  elfMask32,
	},
	"ppc64le": {
		magic: `\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\x15\x00`,
		mask:  `\xff\xff\xff\xff\xff\xff\xff\x00\xff\xff\xff\xff\xff\xff\xff\xff\xfe\xff\xff\x00`,
	},
	"s390x": {
		magic: `\x7fELF\x02\x02\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00\x16`,
		mask:  `\xff\xff\xff\xff\xff\xff\xff\x00\xff\xff\xff\xff\xff\xff\xff\xff\xff\xfe\xff\xff`,
	},
}

// BinfmtRegistration returns the binfmt_misc registration string for running
// binaries of the given architecture with the qemu-user binary at
// /usr/bin/qemu-<arch>-static.
func BinfmtRegistration(arch sys.Arch) (string, error) {
	qemuArch := arch.QemuArch()

	info, exists := binfmts[qemuArch]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrNoBinfmt, arch)
	}

	// :name:type:offset:magic:mask:interpreter:flags
	return strings.Join([]string{
		"",
		"qemu-" + qemuArch,
		"M",
		"",
		info.magic,
		info.mask,
		"/usr/bin/qemu-" + qemuArch + "-static",
		"C",
	}, ":"), nil
}

// BinfmtRegistered returns if binaries of the architecture are registered
// for emulation.
func (m *Manager) BinfmtRegistered(arch sys.Arch) bool {
	return exists(filepath.Join(m.binfmtDir(), "qemu-"+arch.QemuArch()))
}

// RegisterBinfmt installs the qemu-user emulator in the native chroot and
// registers it in binfmt_misc.
func (m *Manager) RegisterBinfmt(ctx context.Context, arch sys.Arch) error {
	err := m.InstallPackages(ctx, Native(), "qemu-"+arch.QemuArch())
	if err != nil {
		return err
	}

	if m.BinfmtRegistered(arch) {
		return nil
	}

	code, err := BinfmtRegistration(arch)
	if err != nil {
		return err
	}

	register := filepath.Join(m.binfmtDir(), "register")
	if !exists(register) {
		_, _ = run.Root(ctx, m.Runner, run.Cmd{
			Args:  []string{"modprobe", "binfmt_misc"},
			Check: run.Bool(false),
		})

		err := m.host(ctx, "mount", "-t", "binfmt_misc", "none", m.binfmtDir())
		if err != nil {
			return fmt.Errorf("mount binfmt_misc: %w", err)
		}
	}

	slog.Info("Register qemu binfmt", slog.String("arch", arch.QemuArch()))

	err = m.host(ctx, "sh", "-c", "printf '%s\\n' "+run.Quote(code)+" > "+register)
	if err != nil {
		return fmt.Errorf("register binfmt: %w", err)
	}

	return nil
}

// UnregisterBinfmt removes the emulation of the architecture if it is
// registered.
func (m *Manager) UnregisterBinfmt(ctx context.Context, arch sys.Arch) error {
	if !m.BinfmtRegistered(arch) {
		return nil
	}

	slog.Info("Unregister qemu binfmt", slog.String("arch", arch.QemuArch()))

	file := filepath.Join(m.binfmtDir(), "qemu-"+arch.QemuArch())

	err := m.host(ctx, "sh", "-c", "echo -1 > "+file)
	if err != nil {
		return fmt.Errorf("unregister binfmt: %w", err)
	}

	return nil
}

func (m *Manager) setupEmulation(ctx context.Context, c Chroot) error {
	arch := m.Arch(c)
	if arch == m.nativeArch() {
		return nil
	}

	err := m.RegisterBinfmt(ctx, arch)
	if err != nil {
		return err
	}

	qemuArch := arch.QemuArch()

	return m.BindMountFile(ctx,
		filepath.Join(m.Path(Native()), "usr/bin/qemu-"+qemuArch),
		filepath.Join(m.Path(c), "usr/bin/qemu-"+qemuArch+"-static"),
	)
}
