// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package chroot manages the Alpine Linux chroots in the work folder.
//
// There is one native chroot, one buildroot per foreign architecture and one
// rootfs and installer chroot per device. All of them are created with a
// statically linked apk and are entered with sudo and chroot(8).
package chroot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/http"
	"github.com/z3ntu/pmbootstrap/internal/prompt"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// Type is the kind of a chroot.
type Type string

// Chroot types.
const (
	TypeNative    Type = "native"
	TypeBuildroot Type = "buildroot"
	TypeRootfs    Type = "rootfs"
	TypeInstaller Type = "installer"
)

// Chroot identifies a chroot in the work folder.
type Chroot struct {
	Type Type
	// Name is the architecture for buildroots and the device codename for
	// rootfs and installer chroots. It is empty for the native chroot.
	Name string
}

// Native returns the native chroot.
func Native() Chroot {
	return Chroot{Type: TypeNative}
}

// Buildroot returns the build chroot of the given architecture.
func Buildroot(arch sys.Arch) Chroot {
	return Chroot{Type: TypeBuildroot, Name: arch.String()}
}

// Rootfs returns the rootfs chroot of the given device.
func Rootfs(device string) Chroot {
	return Chroot{Type: TypeRootfs, Name: device}
}

// Installer returns the on-device installer chroot of the given device.
func Installer(device string) Chroot {
	return Chroot{Type: TypeInstaller, Name: device}
}

// Parse parses a chroot suffix like "native", "buildroot_armv7" or
// "rootfs_qemu-amd64".
func Parse(suffix string) (Chroot, error) {
	if suffix == string(TypeNative) {
		return Native(), nil
	}

	typ, name, found := strings.Cut(suffix, "_")
	if !found || name == "" {
		return Chroot{}, fmt.Errorf("%w: %s", ErrInvalidSuffix, suffix)
	}

	switch Type(typ) {
	case TypeBuildroot:
		arch := sys.Arch(name)
		if !arch.IsValid() {
			return Chroot{}, fmt.Errorf("%w: %s", sys.ErrArchNotSupported, name)
		}

		return Buildroot(arch), nil
	case TypeRootfs, TypeInstaller:
		return Chroot{Type: Type(typ), Name: name}, nil
	default:
		return Chroot{}, fmt.Errorf("%w: %s", ErrInvalidSuffix, suffix)
	}
}

// String returns the suffix of the chroot.
func (c Chroot) String() string {
	if c.Type == TypeNative {
		return string(TypeNative)
	}

	return string(c.Type) + "_" + c.Name
}

// Path returns the path of the chroot in the given work folder.
func (c Chroot) Path(work string) string {
	return filepath.Join(work, "chroot_"+c.String())
}

// Arch returns the architecture of the chroot. Device chroots have the
// architecture of the device.
func (c Chroot) Arch(native, deviceArch sys.Arch) sys.Arch {
	switch c.Type {
	case TypeNative:
		return native
	case TypeBuildroot:
		return sys.Arch(c.Name)
	default:
		return deviceArch
	}
}

// Manager creates, enters and removes chroots.
type Manager struct {
	Work   string
	Runner run.Runner
	HTTP   *http.Client
	// Prompter asks for confirmation when zapping.
	Prompter *prompt.Prompter

	// DeviceArch is the architecture of rootfs and installer chroots.
	DeviceArch sys.Arch
	// NativeArch defaults to [sys.NativeArch].
	NativeArch sys.Arch

	Channel             config.Channel
	MirrorAlpine        string
	MirrorsPostmarketos []string

	// KeysDir defaults to [config.ApkKeysPath].
	KeysDir string
	// BinfmtDir defaults to "/proc/sys/fs/binfmt_misc".
	BinfmtDir string
	// ResolvConf defaults to "/etc/resolv.conf".
	ResolvConf string

	Now func() time.Time
	// MountPoints defaults to [sys.MountPointsUnderPath].
	MountPoints func(prefix string) ([]string, error)
}

// New returns a Manager for the work folder of the given config.
func New(cfg *config.Config, runner run.Runner, channel config.Channel) *Manager {
	return &Manager{
		Work:   cfg.Work,
		Runner: runner,
		HTTP: &http.Client{
			CacheDir: filepath.Join(cfg.Work, "cache_http"),
			Offline:  cfg.Offline,
		},
		Prompter:            prompt.New(nil, cfg.AssumeYes),
		Channel:             channel,
		MirrorAlpine:        cfg.MirrorAlpine,
		MirrorsPostmarketos: cfg.MirrorsPostmarketos,
	}
}

// Path returns the path of the chroot.
func (m *Manager) Path(c Chroot) string {
	return c.Path(m.Work)
}

// Arch returns the architecture of the chroot.
func (m *Manager) Arch(c Chroot) sys.Arch {
	return c.Arch(m.nativeArch(), m.DeviceArch)
}

func (m *Manager) nativeArch() sys.Arch {
	if m.NativeArch != "" {
		return m.NativeArch
	}

	return sys.NativeArch()
}

func (m *Manager) keysDir() string {
	if m.KeysDir != "" {
		return m.KeysDir
	}

	return config.ApkKeysPath
}

func (m *Manager) binfmtDir() string {
	if m.BinfmtDir != "" {
		return m.BinfmtDir
	}

	return "/proc/sys/fs/binfmt_misc"
}

func (m *Manager) resolvConf() string {
	if m.ResolvConf != "" {
		return m.ResolvConf
	}

	return "/etc/resolv.conf"
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}

	return time.Now()
}

func (m *Manager) mountPoints(prefix string) ([]string, error) {
	if m.MountPoints != nil {
		return m.MountPoints(prefix)
	}

	return sys.MountPointsUnderPath(prefix)
}

func (m *Manager) isMountPoint(path string) (bool, error) {
	mounts, err := m.mountPoints(path)
	if err != nil {
		return false, err
	}

	return slices.Contains(mounts, filepath.Clean(path)), nil
}

// host runs a command as root on the host.
func (m *Manager) host(ctx context.Context, args ...string) error {
	_, err := run.Root(ctx, m.Runner, run.Cmd{Args: args})
	return err
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
