// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/qemu"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

func TestBuildArgumentStrings(t *testing.T) {
	tests := []struct {
		name     string
		args     []qemu.Argument
		expected []string
		err      error
	}{
		{
			name:     "empty",
			expected: []string{},
		},
		{
			name: "values",
			args: []qemu.Argument{
				qemu.UniqueArg("nodefaults"),
				qemu.UniqueArg("m", "1024"),
				qemu.RepeatableArg("device", "virtio-mouse-pci"),
				qemu.RepeatableArg("device", "virtio-keyboard-pci"),
				qemu.RepeatableArg("drive").With("file", "a.img").With("format", "raw"),
			},
			expected: []string{
				"-nodefaults",
				"-m", "1024",
				"-device", "virtio-mouse-pci",
				"-device", "virtio-keyboard-pci",
				"-drive", "file=a.img,format=raw",
			},
		},
		{
			name: "unique collision",
			args: []qemu.Argument{
				qemu.UniqueArg("cpu", "host"),
				qemu.UniqueArg("cpu", "cortex-a57"),
			},
			err: qemu.ErrArgumentCollision,
		},
		{
			name: "repeatable collision",
			args: []qemu.Argument{
				qemu.RepeatableArg("device", "AC97"),
				qemu.RepeatableArg("device", "AC97"),
			},
			err: qemu.ErrArgumentCollision,
		},
		{
			name: "duplicate id",
			args: []qemu.Argument{
				qemu.RepeatableArg("audiodev", "sdl").With("id", "audio"),
				qemu.RepeatableArg("audiodev", "pa").With("id", "audio"),
			},
			err: qemu.ErrArgumentCollision,
		},
		{
			name: "distinct ids",
			args: []qemu.Argument{
				qemu.RepeatableArg("audiodev", "sdl").With("id", "one"),
				qemu.RepeatableArg("audiodev", "sdl").With("id", "two"),
			},
			expected: []string{
				"-audiodev", "sdl,id=one",
				"-audiodev", "sdl,id=two",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := qemu.BuildArgumentStrings(tt.args)
			require.ErrorIs(t, err, tt.err)

			if tt.err == nil {
				assert.Equal(t, tt.expected, actual)
			}
		})
	}
}

func TestCommandSpecAddDefaultsFor(t *testing.T) {
	spec := qemu.CommandSpec{NoKVM: true}

	require.NoError(t, spec.AddDefaultsFor(sys.AArch64))
	assert.Equal(t, "qemu-system-aarch64", spec.Executable)
	assert.Equal(t, uint64(1024), spec.Memory)
	assert.Equal(t, uint16(2222), spec.Port)
	assert.Equal(t, "1024x768@60", spec.Video)
	assert.Equal(t, "sdl", spec.Display)
	assert.NotZero(t, spec.SMP)

	spec = qemu.CommandSpec{Executable: "/usr/local/bin/qemu", Memory: 512, NoKVM: true}

	require.NoError(t, spec.AddDefaultsFor(sys.X86_64))
	assert.Equal(t, "/usr/local/bin/qemu", spec.Executable)
	assert.Equal(t, uint64(512), spec.Memory)

	err := (&qemu.CommandSpec{}).AddDefaultsFor(sys.ARMv7)
	require.ErrorIs(t, err, sys.ErrArchNotSupported)
}

func TestCommandSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec qemu.CommandSpec
		err  error
	}{
		{
			name: "valid",
			spec: qemu.CommandSpec{Device: "qemu-amd64", Display: "gtk", Audio: "pa"},
		},
		{
			name: "not a qemu device",
			spec: qemu.CommandSpec{Device: "pine64-pinephone"},
			err:  qemu.ErrNotQemuDevice,
		},
		{
			name: "unknown display",
			spec: qemu.CommandSpec{Device: "qemu-aarch64", Display: "vnc"},
			err:  qemu.ErrInvalidChoice,
		},
		{
			name: "unknown audio",
			spec: qemu.CommandSpec{Device: "qemu-aarch64", Audio: "jack"},
			err:  qemu.ErrInvalidChoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.spec.Validate(), tt.err)
		})
	}
}

func TestCommandSpecKernelCmdline(t *testing.T) {
	spec := qemu.CommandSpec{Cmdline: "console=tty1", Video: "800x600@60"}
	assert.Equal(t, "console=tty1 video=800x600@60", spec.KernelCmdline())

	spec.Cmdline = "console=tty1 video=1920x1080@60"
	assert.Equal(t, "console=tty1 video=1920x1080@60", spec.KernelCmdline())
}

func TestCommandSpecCommand(t *testing.T) {
	t.Run("x86_64", func(t *testing.T) {
		spec := qemu.CommandSpec{
			Kernel:    "/boot/vmlinuz-virt",
			Initramfs: "/boot/initramfs-virt",
			Image:     "/img/qemu-amd64.img",
			Memory:    2048,
			SMP:       4,
			NoKVM:     true,
			Display:   "none",
		}
		require.NoError(t, spec.AddDefaultsFor(sys.X86_64))

		actual, err := spec.Command()
		require.NoError(t, err)

		assert.Equal(t, []string{
			"qemu-system-x86_64",
			"-nodefaults",
			"-kernel", "/boot/vmlinuz-virt",
			"-initrd", "/boot/initramfs-virt",
			"-append", "video=1024x768@60",
			"-smp", "4",
			"-m", "2048",
			"-serial", "stdio",
			"-drive", "file=/img/qemu-amd64.img,format=raw,if=virtio",
			"-device", "virtio-mouse-pci",
			"-device", "virtio-keyboard-pci",
			"-nic", "user,model=virtio-net-pci,hostfwd=tcp::2222-:22,",
			"-vga", "virtio",
			"-display", "none",
			"-show-cursor",
		}, actual)
	})

	t.Run("aarch64 with kvm", func(t *testing.T) {
		spec := qemu.CommandSpec{
			Prefix:  []string{"/native/lib/ld-musl-x86_64.so.1"},
			Port:    2200,
			Tablet:  true,
			GL:      true,
			Audio:   "sdl",
			DataDir: "/native/usr/share/qemu/",
		}
		require.NoError(t, spec.AddDefaultsFor(sys.AArch64))

		spec.NoKVM = false

		actual, err := spec.Command()
		require.NoError(t, err)

		assert.Equal(t, "/native/lib/ld-musl-x86_64.so.1", actual[0])
		assert.Equal(t, "qemu-system-aarch64", actual[1])
		assert.Subset(t, actual, []string{
			"-L", "/native/usr/share/qemu/",
			"virtio-tablet-pci",
			"user,model=virtio-net-pci,hostfwd=tcp::2200-:22,",
			"-M", "virt",
			"virtio-gpu-pci",
			"-enable-kvm",
			"sdl,gl=on",
			"sdl,id=audio",
			"AC97,audiodev=audio",
		})

		cpu := slices.Index(actual, "-cpu")
		require.NotEqual(t, -1, cpu)
		assert.Equal(t, "host", actual[cpu+1])
	})

	t.Run("explicit cpu", func(t *testing.T) {
		spec := qemu.CommandSpec{NoKVM: true, CPU: "max"}
		require.NoError(t, spec.AddDefaultsFor(sys.AArch64))

		actual, err := spec.Command()
		require.NoError(t, err)

		cpu := slices.Index(actual, "-cpu")
		require.NotEqual(t, -1, cpu)
		assert.Equal(t, "max", actual[cpu+1])
	})

	t.Run("colliding extra args", func(t *testing.T) {
		spec := qemu.CommandSpec{
			NoKVM:     true,
			ExtraArgs: []qemu.Argument{qemu.UniqueArg("m", "4096")},
		}
		require.NoError(t, spec.AddDefaultsFor(sys.X86_64))

		_, err := spec.Command()
		require.ErrorIs(t, err, qemu.ErrArgumentCollision)
	})
}
