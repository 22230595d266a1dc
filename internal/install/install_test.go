// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/install"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const device = "qemu-amd64"

var aports = map[string]string{
	"device/testing/device-qemu-amd64": `pkgname=device-qemu-amd64
pkgver=1
pkgrel=0
pkgdesc="Qemu amd64"
arch="x86_64"
subpackages="$pkgname-kernel-lts:kernel_lts $pkgname-kernel-virt:kernel_virt $pkgname-nonfree-firmware:nonfree_firmware"
`,
	"main/postmarketos-ui-weston": `pkgname=postmarketos-ui-weston
pkgver=1
pkgrel=0
pkgdesc="weston"
arch="noarch"
_pmb_recommends="weston-terminal foot"
subpackages="$pkgname-extras:extras"

extras() {
	pkgdesc="extras"
	_pmb_recommends="gnome-maps"
}
`,
	"main/postmarketos-ondev": `pkgname=postmarketos-ondev
pkgver=0.1.0
pkgrel=0
pkgdesc="ondev"
arch="all"
`,
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeTree(t *testing.T) *pmaports.Tree {
	t.Helper()

	dir := t.TempDir()

	for path, content := range aports {
		writeFile(t, filepath.Join(dir, path, "APKBUILD"), content)
	}

	return pmaports.New(dir)
}

func installed(pkgs ...string) string {
	var db strings.Builder

	for _, pkg := range pkgs {
		db.WriteString("P:" + pkg + "\nV:1-r0\nA:x86_64\n\n")
	}

	return db.String()
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Device = device
	cfg.Kernel = "virt"
	cfg.UI = "weston"
	cfg.User = "user"
	cfg.Keymap = "de/rx51_de"
	cfg.Timezone = "Europe/Berlin"
	cfg.Locale = "en_US.UTF-8"
	cfg.Hostname = ""
	cfg.BuildPkgsOnInstall = false

	return cfg
}

func newInstaller(t *testing.T, recorder *run.Recorder) *install.Installer {
	t.Helper()

	resolvConf := filepath.Join(t.TempDir(), "resolv.conf")
	writeFile(t, resolvConf, "nameserver 9.9.9.9\n")

	manager := &chroot.Manager{
		Work:       t.TempDir(),
		Runner:     recorder,
		NativeArch: sys.X86_64,
		DeviceArch: sys.X86_64,
		Channel: config.Channel{
			Name:            "edge",
			BranchPmaports:  "master",
			MirrordirAlpine: "edge",
		},
		MirrorAlpine:        "http://dl-cdn.alpinelinux.org/alpine/",
		MirrorsPostmarketos: []string{"http://mirror.postmarketos.org/postmarketos/"},
		KeysDir:             t.TempDir(),
		BinfmtDir:           t.TempDir(),
		ResolvConf:          resolvConf,
		Now:                 func() time.Time { return time.Unix(1700000000, 0) },
		MountPoints:         func(string) ([]string, error) { return nil, nil },
	}

	native := manager.Path(chroot.Native())
	writeFile(t, filepath.Join(native, "bin/sh"), "")
	writeFile(t, filepath.Join(native, "lib/apk/db/installed"),
		installed(slices.Concat(config.InstallNativePackages, []string{"android-tools", "rsync"})...))

	rootfs := manager.Path(chroot.Rootfs(device))
	writeFile(t, filepath.Join(rootfs, "bin/sh"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "tmp"), 0o755))

	return &install.Installer{
		Chroots: manager,
		Tree:    writeTree(t),
		Config:  testConfig(),
		Deviceinfo: deviceinfo.Deviceinfo{
			"arch":         "x86_64",
			"codename":     device,
			"flash_method": "none",
			"keymaps":      "us/rx51_us de/rx51_de",
		},
		Revision: func(context.Context) (string, error) {
			return "0123456789abcdef", nil
		},
		SSHKeyGlob:   filepath.Join(t.TempDir(), "id_*.pub"),
		SysBlockDir:  t.TempDir(),
		PollInterval: time.Millisecond,
		FreeSpace:    func(string) (uint64, error) { return 1 << 40, nil },
	}
}

// indexContaining returns the index of the first line at or after from
// that contains substr, or -1.
func indexContaining(lines []string, substr string, from int) int {
	for idx := from; idx < len(lines); idx++ {
		if strings.Contains(lines[idx], substr) {
			return idx
		}
	}

	return -1
}

func TestStepCount(t *testing.T) {
	tests := []struct {
		name     string
		opts     install.Options
		expected int
	}{
		{name: "image", expected: 5},
		{name: "no image", opts: install.Options{NoImage: true}, expected: 2},
		{name: "recovery zip", opts: install.Options{RecoveryZip: true}, expected: 4},
		{name: "on-device installer", opts: install.Options{OnDev: true}, expected: 8},
		{
			name:     "no image wins",
			opts:     install.Options{NoImage: true, OnDev: true},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, install.StepCount(tt.opts))
		})
	}
}

func TestPackages(t *testing.T) {
	tree := writeTree(t)

	path, err := apkbuild.DevicePath(tree.Dir, device)
	require.NoError(t, err)

	deviceAPKBUILD, err := tree.Parse(path)
	require.NoError(t, err)

	tests := []struct {
		name     string
		modify   func(*config.Config)
		opts     install.Options
		expected []string
		err      error
	}{
		{
			name: "default",
			expected: []string{
				"postmarketos-base",
				"device-qemu-amd64",
				"device-qemu-amd64-kernel-virt",
				"device-qemu-amd64-nonfree-firmware",
				"postmarketos-ui-weston",
			},
		},
		{
			name: "everything",
			modify: func(cfg *config.Config) {
				cfg.UIExtras = true
				cfg.NonfreeFirmware = false
				cfg.ExtraPackages = "vim,htop"
			},
			opts: install.Options{Add: []string{"git"}, FDE: true},
			expected: []string{
				"postmarketos-base",
				"device-qemu-amd64",
				"device-qemu-amd64-kernel-virt",
				"postmarketos-ui-weston",
				"postmarketos-ui-weston-extras",
				"vim",
				"htop",
				"git",
				"cryptsetup",
			},
		},
		{
			name: "no ui and no kernel",
			modify: func(cfg *config.Config) {
				cfg.UI = "none"
				cfg.Kernel = "none"
				cfg.ExtraPackages = "none"
			},
			expected: []string{
				"postmarketos-base",
				"device-qemu-amd64",
				"device-qemu-amd64-nonfree-firmware",
			},
		},
		{
			name: "invalid kernel",
			modify: func(cfg *config.Config) {
				cfg.Kernel = "mainline"
			},
			err: install.ErrKernelNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.modify != nil {
				tt.modify(cfg)
			}

			actual, err := install.Packages(cfg, deviceAPKBUILD, tt.opts)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestRecommends(t *testing.T) {
	i := newInstaller(t, &run.Recorder{})

	actual, err := i.Recommends(install.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"weston-terminal", "foot"}, actual)

	i.Config.UIExtras = true

	actual, err = i.Recommends(install.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"weston-terminal", "foot", "gnome-maps"}, actual)

	actual, err = i.Recommends(install.Options{NoRecommends: true})
	require.NoError(t, err)
	assert.Empty(t, actual)
}

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"qemu-amd64", true},
		{"pine64.pinephone", true},
		{"", false},
		{"UPPER", false},
		{"under_score", false},
		{"-leading", false},
		{"trailing-", false},
		{strings.Repeat("a", 63), true},
		{strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := install.ValidateHostname(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, install.ErrInvalidHostname)
			}
		})
	}
}

func TestRootfsSize(t *testing.T) {
	assert.Equal(t, uint64(50), install.RootfsSize(0))
	assert.Equal(t, uint64(170), install.RootfsSize(100*1024*1024))
	assert.Equal(t, uint64(1279), install.RootfsSize(1024*1024*1024))
}

func TestPartitionCommands(t *testing.T) {
	t.Run("without reserve", func(t *testing.T) {
		assert.Equal(t, [][]string{
			{"mktable", "msdos"},
			{"mkpart", "primary", "ext2", "2048s", "256M"},
			{"mkpart", "primary", "256M", "100%"},
			{"set", "1", "boot", "on"},
		}, install.PartitionCommands(256, 0, "ext2", ""))
	})

	t.Run("with reserve", func(t *testing.T) {
		assert.Equal(t, [][]string{
			{"mktable", "msdos"},
			{"mkpart", "primary", "fat32", "4096s", "128M"},
			{"mkpart", "primary", "128M", "428M"},
			{"mkpart", "primary", "428M", "100%"},
			{"set", "1", "boot", "on"},
		}, install.PartitionCommands(128, 300, "fat32", "4096"))
	})
}

func TestMkfs(t *testing.T) {
	boot, err := install.BootMkfs("fat16", "/dev/installp1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mkfs.fat", "-F", "16", "-n", "pmOS_boot", "/dev/installp1"}, boot)

	_, err = install.BootMkfs("xfs", "/dev/installp1")
	require.ErrorIs(t, err, install.ErrUnsupportedFilesystem)

	root, err := install.RootMkfs("", "pmOS_root", "/dev/installp2", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"mkfs.ext4", "-O", "^metadata_csum", "-F", "-q", "-L", "pmOS_root",
		"-N", "100000", "/dev/installp2",
	}, root)

	root, err = install.RootMkfs("ext4", "pmOS_root", "/dev/installp2", true)
	require.NoError(t, err)
	assert.NotContains(t, root, "-N")

	root, err = install.RootMkfs("f2fs", "pmOS_root", "/dev/installp2", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"mkfs.f2fs", "-f", "-l", "pmOS_root", "/dev/installp2"}, root)
}

func TestEmbeddedFirmware(t *testing.T) {
	rootfs := t.TempDir()
	writeFile(t, filepath.Join(rootfs, "usr/share/u-boot/spl.bin"), strings.Repeat("x", 2048))
	writeFile(t, filepath.Join(rootfs, "usr/share/u-boot/u-boot.img"), strings.Repeat("x", 4096))

	tests := []struct {
		name         string
		info         deviceinfo.Deviceinfo
		expected     []install.Firmware
		expectedStep int64
		err          error
	}{
		{
			name: "none",
			info: deviceinfo.Deviceinfo{},
		},
		{
			name: "valid",
			info: deviceinfo.Deviceinfo{
				"sd_embed_firmware": "u-boot/spl.bin:8,u-boot/u-boot.img:40",
			},
			expected: []install.Firmware{
				{Binary: "u-boot/spl.bin", Offset: 8},
				{Binary: "u-boot/u-boot.img", Offset: 40},
			},
			expectedStep: 1024,
		},
		{
			name: "step size",
			info: deviceinfo.Deviceinfo{
				"sd_embed_firmware":           "u-boot/spl.bin:16",
				"sd_embed_firmware_step_size": "512",
			},
			expected:     []install.Firmware{{Binary: "u-boot/spl.bin", Offset: 16}},
			expectedStep: 512,
		},
		{
			name: "missing",
			info: deviceinfo.Deviceinfo{"sd_embed_firmware": "u-boot/missing.bin:8"},
			err:  install.ErrFirmwareNotFound,
		},
		{
			name: "too large",
			info: deviceinfo.Deviceinfo{
				"sd_embed_firmware": "u-boot/u-boot.img:1022",
			},
			err: install.ErrFirmwareTooLarge,
		},
		{
			name: "overlap",
			info: deviceinfo.Deviceinfo{
				"sd_embed_firmware": "u-boot/u-boot.img:8,u-boot/spl.bin:10",
			},
			err: install.ErrFirmwareOverlap,
		},
		{
			name: "invalid offset",
			info: deviceinfo.Deviceinfo{"sd_embed_firmware": "u-boot/spl.bin:eight"},
			err:  install.ErrInvalidFirmwareSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, step, err := install.EmbeddedFirmware(tt.info, rootfs)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.expected, actual)
			assert.Equal(t, tt.expectedStep, step)
		})
	}
}

func TestFormatRecoveryOptions(t *testing.T) {
	vars := map[string]string{
		"$PARTITION_KERNEL": "KERNEL",
		"$PARTITION_INITFS": "RECOVERY",
		"$PARTITION_SYSTEM": "SYSTEM",
	}

	options := install.RecoveryOptions(device, "virt", "heimdall-isorec", vars, install.Options{
		RecoveryFlashKernel: true,
	})

	assert.Equal(t, `DEVICE='qemu-amd64'
FLAVOR='virt'
FLASH_KERNEL='true'
ISOREC='true'
KERNEL_PARTLABEL='KERNEL'
INITFS_PARTLABEL='RECOVERY'
SYSTEM_PARTLABEL='SYSTEM'
INSTALL_PARTITION='system'
CIPHER='aes-xts-plain64'
FDE='false'
`, install.FormatRecoveryOptions(options))
}

func TestOSRelease(t *testing.T) {
	release := install.OSRelease("0123456789abcdef")

	assert.Contains(t, release, `VERSION="`+config.Version+`-01234567"`+"\n")
	assert.Contains(t, release, `PMOS_HASH="0123456789abcdef"`+"\n")
	assert.True(t, strings.HasPrefix(release, `PRETTY_NAME="postmarketOS `+config.Version+`"`))
}

func TestSetupRootfs(t *testing.T) {
	recorder := &run.Recorder{}
	i := newInstaller(t, recorder)

	require.NoError(t, i.SetupRootfs(t.Context(), install.Options{}))

	lines := recorder.Lines()
	ordered := []string{
		"getent passwd user",
		"adduser -D -u 10000 user",
		"addgroup -S wheel",
		"addgroup user wheel",
		"passwd user",
		"passwd -l root",
		"setup-keymap de rx51_de",
		"setup-timezone -z Europe/Berlin",
		"/etc/hostname",
		"/etc/hosts",
		"/etc/profile.d/locale.sh",
	}

	next := 0

	for _, expected := range ordered {
		idx := indexContaining(lines, expected, next)
		require.NotEqual(t, -1, idx, "%s not found in order", expected)
		next = idx + 1
	}

	hostnameLine := lines[indexContaining(lines, "/etc/hostname", 0)]
	assert.Contains(t, hostnameLine, "echo qemu-amd64")
}

func TestSetupRootfsOnDevice(t *testing.T) {
	recorder := &run.Recorder{}
	i := newInstaller(t, recorder)
	i.Config.Keymap = "fr/azerty"

	require.NoError(t, i.SetupRootfs(t.Context(), install.Options{OnDev: true}))

	lines := recorder.Lines()
	adduser := indexContaining(lines, "adduser", 0)
	require.NotEqual(t, -1, adduser)
	assert.Equal(t, -1, indexContaining(lines, "passwd user", adduser))
	assert.NotEqual(t, -1, indexContaining(lines, "passwd -l root", adduser))
	assert.Equal(t, -1, indexContaining(lines, "setup-keymap", 0))
}

func TestSetupRootfsInvalidHostname(t *testing.T) {
	i := newInstaller(t, &run.Recorder{})
	i.Config.Hostname = "Invalid_Name"

	err := i.SetupRootfs(t.Context(), install.Options{OnDev: true})
	require.ErrorIs(t, err, install.ErrInvalidHostname)
}

func TestCheckSDCard(t *testing.T) {
	i := newInstaller(t, &run.Recorder{})

	dir := t.TempDir()
	sdcard := filepath.Join(dir, "mmcblk0")
	locked := filepath.Join(dir, "mmcblk1")

	writeFile(t, sdcard, "")
	writeFile(t, locked, "")
	writeFile(t, filepath.Join(i.SysBlockDir, "mmcblk0/ro"), "0\n")
	writeFile(t, filepath.Join(i.SysBlockDir, "mmcblk1/ro"), "1\n")

	require.NoError(t, i.CheckSDCard(sdcard))
	require.ErrorIs(t, i.CheckSDCard(locked), install.ErrSDCardReadOnly)
	require.ErrorIs(t, i.CheckSDCard(filepath.Join(dir, "sdz")), install.ErrSDCardMissing)
}

func TestCheckOndevVersion(t *testing.T) {
	i := newInstaller(t, &run.Recorder{})

	require.ErrorIs(t, i.CheckOndevVersion(), install.ErrOndevTooOld)
}

func TestPartitionsMount(t *testing.T) {
	recorder := &run.Recorder{}
	i := newInstaller(t, recorder)

	loop := filepath.Join(t.TempDir(), "loop3")
	writeFile(t, loop+"p1", "")

	image := filepath.Join(i.Chroots.Path(chroot.Native()), "home/pmos/rootfs", device+".img")

	recorder.Handler = func(cmd run.Cmd) (run.Result, error) {
		if slices.Contains(cmd.Args, "--list") {
			return run.Result{Output: loop + " " + image + "\n"}, nil
		}

		return run.Result{}, nil
	}

	require.NoError(t, i.PartitionsMount(t.Context(), 3, ""))

	native := i.Chroots.Path(chroot.Native())
	lines := recorder.Lines()

	assert.NotEqual(t, -1, indexContaining(lines, "mount --bind "+loop+"p1 "+native+"/dev/installp1", 0))
	assert.NotEqual(t, -1, indexContaining(lines, "mount --bind "+loop+"p3 "+native+"/dev/installp3", 0))
}

func TestPartitionsMountNotFound(t *testing.T) {
	i := newInstaller(t, &run.Recorder{})

	err := i.PartitionsMount(t.Context(), 2, filepath.Join(t.TempDir(), "mmcblk0"))
	require.ErrorIs(t, err, install.ErrPartitionNotFound)
}
