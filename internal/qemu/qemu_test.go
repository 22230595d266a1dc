// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/qemu"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newRunner(t *testing.T, recorder *run.Recorder) *qemu.Runner {
	t.Helper()

	resolvConf := filepath.Join(t.TempDir(), "resolv.conf")
	writeFile(t, resolvConf, 0)

	manager := &chroot.Manager{
		Work:        t.TempDir(),
		Runner:      recorder,
		NativeArch:  sys.X86_64,
		DeviceArch:  sys.X86_64,
		KeysDir:     t.TempDir(),
		BinfmtDir:   t.TempDir(),
		ResolvConf:  resolvConf,
		Now:         func() time.Time { return time.Unix(1700000000, 0) },
		MountPoints: func(string) ([]string, error) { return nil, nil },
	}

	native := manager.Path(chroot.Native())
	writeFile(t, filepath.Join(native, "bin/sh"), 0)
	writeFile(t, filepath.Join(native, "home/pmos/rootfs/qemu-amd64.img"), 1<<20)

	rootfs := manager.Path(chroot.Rootfs("qemu-amd64"))
	writeFile(t, filepath.Join(rootfs, "boot/vmlinuz-virt"), 0)
	writeFile(t, filepath.Join(rootfs, "boot/initramfs-virt"), 0)

	return &qemu.Runner{
		Chroots:       manager,
		Arch:          sys.X86_64,
		KernelCmdline: "console=tty0 console=ttyS0,115200",
	}
}

func TestRunnerRun(t *testing.T) {
	recorder := &run.Recorder{}
	runner := newRunner(t, recorder)

	spec := qemu.CommandSpec{Device: "qemu-amd64", NoKVM: true, Display: "none"}
	opts := qemu.Options{ImageSize: "2M", User: "user"}

	require.NoError(t, runner.Run(t.Context(), spec, opts))

	native := runner.Chroots.Path(chroot.Native())
	rootfs := runner.Chroots.Path(chroot.Rootfs("qemu-amd64"))

	cmds := recorder.Cmds()
	require.NotEmpty(t, cmds)

	lines := recorder.Lines()
	assert.True(t, slices.ContainsFunc(lines, func(line string) bool {
		return strings.Contains(line, "apk --no-progress add qemu qemu-system-x86_64")
	}), "qemu depends installed")

	last := cmds[len(cmds)-1]
	assert.Equal(t, run.OutputTUI, last.Output)
	assert.Equal(t, filepath.Join(native, "lib/ld-musl-x86_64.so.1"), last.Args[0])
	assert.Equal(t, filepath.Join(native, "usr/bin/qemu-system-x86_64"), last.Args[2])
	assert.Subset(t, last.Args, []string{
		filepath.Join(rootfs, "boot/vmlinuz-virt"),
		filepath.Join(rootfs, "boot/initramfs-virt"),
		"console=tty0 console=ttyS0,115200 video=1024x768@60",
		"file=" + filepath.Join(native, "home/pmos/rootfs/qemu-amd64.img") + ",format=raw,if=virtio",
	})
	assert.Equal(t, filepath.Join(native, "usr/lib/qemu"), last.Env["QEMU_MODULE_DIR"])

	stat, err := os.Stat(filepath.Join(native, "home/pmos/rootfs/qemu-amd64.img"))
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), stat.Size())
}

func TestRunnerPrepare(t *testing.T) {
	tests := []struct {
		name   string
		spec   qemu.CommandSpec
		opts   qemu.Options
		modify func(t *testing.T, runner *qemu.Runner)
		err    error
	}{
		{
			name: "not a qemu device",
			spec: qemu.CommandSpec{Device: "pine64-pinephone"},
			err:  qemu.ErrNotQemuDevice,
		},
		{
			name: "missing image",
			spec: qemu.CommandSpec{Device: "qemu-amd64"},
			modify: func(t *testing.T, runner *qemu.Runner) {
				t.Helper()
				require.NoError(t, os.Remove(filepath.Join(runner.Chroots.Path(chroot.Native()),
					"home/pmos/rootfs/qemu-amd64.img")))
			},
			err: qemu.ErrImageNotFound,
		},
		{
			name: "no kernel",
			spec: qemu.CommandSpec{Device: "qemu-amd64"},
			modify: func(t *testing.T, runner *qemu.Runner) {
				t.Helper()
				require.NoError(t, os.RemoveAll(filepath.Join(
					runner.Chroots.Path(chroot.Rootfs("qemu-amd64")), "boot")))
			},
			err: qemu.ErrNoKernel,
		},
		{
			name: "unsupported arch",
			spec: qemu.CommandSpec{Device: "qemu-amd64"},
			modify: func(_ *testing.T, runner *qemu.Runner) {
				runner.Arch = sys.RISCV64
			},
			err: sys.ErrArchNotSupported,
		},
		{
			name: "explicit flavor",
			spec: qemu.CommandSpec{Device: "qemu-amd64", NoKVM: true},
			opts: qemu.Options{Flavor: "lts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newRunner(t, &run.Recorder{})
			if tt.modify != nil {
				tt.modify(t, runner)
			}

			spec := tt.spec

			err := runner.Prepare(&spec, tt.opts)
			require.ErrorIs(t, err, tt.err)

			if tt.err == nil {
				assert.True(t, strings.HasSuffix(spec.Kernel, "boot/vmlinuz-"+tt.opts.Flavor))
			}
		})
	}
}
