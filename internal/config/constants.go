// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import "time"

// Version is the pmbootstrap version that is compared against the minimum
// version required by pmaports.
const Version = "1.18.1"

// WorkVersion is the format version of the work folder. It is increased
// whenever a migration of existing work folders is required.
const WorkVersion = 5

// PmaportsMinVersion is the minimum version of pmaports.cfg supported.
const PmaportsMinVersion = "6"

// ApkToolsStaticMinVersion is the minimum accepted version of the statically
// linked apk used to bootstrap chroots.
const ApkToolsStaticMinVersion = "2.10.5-r0"

// ApkKeysPath is the folder with the public keys of Alpine Linux and
// postmarketOS that are trusted in all chroots.
const ApkKeysPath = "/usr/share/pmbootstrap/keys"

// ChrootOutdated is the age after which chroots should be zapped.
const ChrootOutdated = 48 * time.Hour

// ChrootUID is the user ID of the "pmos" user inside the build chroots. It
// differs from the usual first user ID 1000, so it does not match the ID of
// a user of the installed rootfs.
const ChrootUID = 12345

// ChrootPath is the PATH inside all chroots.
const ChrootPath = "/usr/lib/ccache/bin:/usr/local/sbin:/usr/local/bin:" +
	"/usr/sbin:/usr/bin:/sbin:/bin"

// RequiredPrograms are the programs expected to be installed on the host.
var RequiredPrograms = []string{"git", "openssl", "ps", "sudo"}

// Bind is a bind mount of a host path into a chroot.
type Bind struct {
	Source string
	Target string
}

// ChrootMountBinds are the folders mounted into each chroot. "$WORK" is
// replaced with the work folder and "$ARCH" with the chroot architecture.
var ChrootMountBinds = []Bind{
	{"/proc", "/proc"},
	{"$WORK/cache_apk_$ARCH", "/var/cache/apk"},
	{"$WORK/cache_ccache_$ARCH", "/mnt/pmbootstrap-ccache"},
	{"$WORK/cache_distfiles", "/var/cache/distfiles"},
	{"$WORK/cache_git", "/mnt/pmbootstrap-git"},
	{"$WORK/cache_rust", "/mnt/pmbootstrap-rust"},
	{"$WORK/config_abuild", "/mnt/pmbootstrap-abuild-config"},
	{"$WORK/config_apk_keys", "/etc/apk/keys"},
	{"$WORK/packages", "/mnt/pmbootstrap-packages"},
}

// ChrootHomeSymlinks are symlinks in the home folder of the "pmos" user of
// all chroots except the rootfs ones, pointing at the mounted folders.
var ChrootHomeSymlinks = []Bind{
	{"/mnt/pmbootstrap-abuild-config", "/home/pmos/.abuild"},
	{"/mnt/pmbootstrap-ccache", "/home/pmos/.ccache"},
	{"/mnt/pmbootstrap-packages", "/home/pmos/packages/pmos"},
	{"/mnt/pmbootstrap-rust/registry/index", "/home/pmos/.cargo/registry/index"},
	{"/mnt/pmbootstrap-rust/registry/cache", "/home/pmos/.cargo/registry/cache"},
	{"/mnt/pmbootstrap-rust/git/db", "/home/pmos/.cargo/git/db"},
}

// DeviceNode is a character device created in the /dev of each chroot.
type DeviceNode struct {
	Mode  uint32
	Major int
	Minor int
	Name  string
}

// ChrootDeviceNodes are the device nodes created in each chroot.
var ChrootDeviceNodes = []DeviceNode{
	{0o666, 1, 3, "null"},
	{0o666, 1, 5, "zero"},
	{0o666, 1, 7, "full"},
	{0o644, 1, 8, "random"},
	{0o644, 1, 9, "urandom"},
}

// BuildPackages are installed in every build chroot.
var BuildPackages = []string{"abuild", "build-base", "ccache", "git"}

// InstallNativePackages are required in the native chroot for installing.
var InstallNativePackages = []string{
	"cryptsetup", "util-linux", "e2fsprogs", "parted", "dosfstools",
}

// InstallDevicePackages are installed in every rootfs.
var InstallDevicePackages = []string{"postmarketos-base"}

// InstallUID is the uid of the user created in the rootfs. It is above the
// range Android uses for its users and groups.
const InstallUID = 10000

// OndevMinVersion is the minimum version of postmarketos-ondev supported by
// the on-device installer flow.
const OndevMinVersion = "0.2.0"

// InstallUserGroups are the groups of the user created in the rootfs.
var InstallUserGroups = []string{
	"wheel", "video", "audio", "input", "plugdev", "netdev",
}

// FlashMountBinds are the host folders required in the native chroot for
// flashing devices via USB.
var FlashMountBinds = []string{
	"/sys/bus/usb/devices/",
	"/sys/dev/",
	"/sys/devices/",
	"/dev/bus/usb/",
}

// GitRepos are the git repositories pmbootstrap clones.
var GitRepos = map[string]string{
	"aports_upstream": "https://gitlab.alpinelinux.org/alpine/aports.git",
	"pmaports":        "https://gitlab.com/postmarketOS/pmaports.git",
}

// GitRepoOutdated is the age of the last fetch after which a repository is
// considered outdated.
const GitRepoOutdated = 48 * time.Hour

// InitfsHookPrefix is the package name prefix of initramfs hooks.
const InitfsHookPrefix = "postmarketos-mkinitfs-hook-"

// DefaultIP is the IP address of devices in USB network mode.
const DefaultIP = "172.16.42.1"

// Cipher and IterTime are the defaults for full disk encryption.
const (
	Cipher   = "aes-xts-plain64"
	IterTime = 200
)
