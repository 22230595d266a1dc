// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/flasher"
)

const recoveryZipRoot = "/var/lib/postmarketos-android-recovery-installer/"

// RecoveryOption is a line of the install_options file of the recovery
// installer. Values are strings or bools.
type RecoveryOption struct {
	Key   string
	Value any
}

// FormatRecoveryOptions returns the install_options file content. Each
// option is written as key='value', booleans in lowercase.
func FormatRecoveryOptions(options []RecoveryOption) string {
	var content strings.Builder

	for _, option := range options {
		var value string

		switch v := option.Value.(type) {
		case bool:
			value = strconv.FormatBool(v)
		default:
			value = fmt.Sprint(v)
		}

		content.WriteString(option.Key + "='" + value + "'\n")
	}

	return content.String()
}

// RecoveryOptions returns the options of the recovery installer for the
// device.
func RecoveryOptions(device, flavor, method string, vars map[string]string, opts Options) []RecoveryOption {
	return []RecoveryOption{
		{"DEVICE", device},
		{"FLAVOR", flavor},
		{"FLASH_KERNEL", opts.RecoveryFlashKernel},
		{"ISOREC", method == "heimdall-isorec"},
		{"KERNEL_PARTLABEL", vars["$PARTITION_KERNEL"]},
		{"INITFS_PARTLABEL", vars["$PARTITION_INITFS"]},
		{"SYSTEM_PARTLABEL", vars["$PARTITION_SYSTEM"]},
		{"INSTALL_PARTITION", cmp.Or(opts.RecoveryInstallPartition, "system")},
		{"CIPHER", cmp.Or(opts.Cipher, config.Cipher)},
		{"FDE", opts.FDE},
	}
}

func (i *Installer) flavor(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	flavors, err := chroot.InstalledFlavors(i.Chroots.Work, i.Config.Device)
	if err != nil {
		return "", err
	}

	if len(flavors) == 0 {
		return "", fmt.Errorf("%w: no kernel installed in the rootfs", flasher.ErrNoKernel)
	}

	return flavors[0], nil
}

// RecoveryZip creates a zip that installs the rootfs from an Android
// recovery. It is built in the buildroot of the device architecture.
func (i *Installer) RecoveryZip(ctx context.Context, opts Options) error {
	buildroot := chroot.Buildroot(i.Deviceinfo.Arch())

	rootfsMount, err := i.mountRootfs(ctx, i.rootfs(), buildroot)
	if err != nil {
		return err
	}

	flavor, err := i.flavor(opts.Flavor)
	if err != nil {
		return err
	}

	method := i.Deviceinfo.FlashMethod()
	vars := flasher.Variables(i.Deviceinfo, flasher.Options{
		Device: i.Config.Device,
		Flavor: flavor,
		Method: method,
	})

	err = i.Chroots.InstallPackages(ctx, buildroot, "postmarketos-android-recovery-installer")
	if err != nil {
		return err
	}

	slog.Info("(" + buildroot.String() + ") create recovery zip")

	blacklist := i.Deviceinfo.List("partition_blacklist")
	for name, value := range vars {
		err := flasher.CheckPartitionBlacklist(name, value, blacklist)
		if err != nil {
			return err
		}
	}

	options := RecoveryOptions(i.Config.Device, flavor, method, vars, opts)
	tmp := filepath.Join(i.Chroots.Path(buildroot), "tmp/install_options")

	err = os.WriteFile(tmp, []byte(FormatRecoveryOptions(options)), 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("write install options: %w", err)
	}

	for _, args := range [][]string{
		{"mv", "/tmp/install_options", "chroot/install_options"},
		{"tar", "-pcf", "rootfs.tar", "--exclude", "./home", "-C", rootfsMount, "."},
		{"tar", "-prf", "rootfs.tar", "-C", "/", "./etc/apk/keys"},
		// -1 for speed
		{"gzip", "-f1", "rootfs.tar"},
		{"build-recovery-zip", i.Config.Device},
	} {
		_, err := i.Chroots.Root(ctx, buildroot, args, chroot.Options{Dir: recoveryZipRoot})
		if err != nil {
			return fmt.Errorf("recovery zip: %w", err)
		}
	}

	return nil
}

func (i *Installer) installRecoveryZip(ctx context.Context, opts Options) error {
	logStep(3, 4, "CREATING RECOVERY-FLASHABLE ZIP") //nolint:mnd

	err := i.RecoveryZip(ctx, opts)
	if err != nil {
		return err
	}

	logStep(4, 4, "FLASHING TO DEVICE") //nolint:mnd
	slog.Info("Flashing with the recovery zip is explained here:")
	slog.Info("<https://postmarketos.org/recoveryzip>")

	return nil
}
