// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flasher

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
)

// Options are the user choices that affect the variables.
type Options struct {
	Device string
	// Method overrides the flash method of the deviceinfo.
	Method string
	Flavor string
	// Cmdline overrides the kernel command line of the deviceinfo.
	Cmdline string
	// Partition overrides all partition variables.
	Partition string
}

const cmdlineVar = "$KERNEL_CMDLINE"

// RecoveryZipPath is the path of the recovery zip inside the buildroot.
func RecoveryZipPath(device string) string {
	return "/var/lib/postmarketos-android-recovery-installer/pmos-" + device + ".zip"
}

// Variables returns the values of the variables used in the commands of the
// flash methods.
func Variables(info deviceinfo.Deviceinfo, opts Options) map[string]string {
	method := cmp.Or(opts.Method, info.FlashMethod())
	cmdline := cmp.Or(opts.Cmdline, info.KernelCmdline())

	var kernel, system, vbmeta string

	if strings.HasPrefix(method, "fastboot") {
		kernel = cmp.Or(info["flash_fastboot_partition_kernel"], "boot")
		system = cmp.Or(info["flash_fastboot_partition_system"], "system")
		vbmeta = info["flash_fastboot_partition_vbmeta"]
	} else {
		kernel = cmp.Or(info["flash_heimdall_partition_kernel"], "KERNEL")
		system = cmp.Or(info["flash_heimdall_partition_system"], "SYSTEM")
		vbmeta = info["flash_heimdall_partition_vbmeta"]
	}

	// Only one action runs at a time, so a single override is enough.
	if opts.Partition != "" {
		kernel = opts.Partition
		system = opts.Partition
		vbmeta = opts.Partition
	}

	rootfs := "/home/pmos/rootfs/" + opts.Device

	return map[string]string{
		"$BOOT":             "/mnt/rootfs_" + opts.Device + "/boot",
		"$FLAVOR":           opts.Flavor,
		"$IMAGE":            rootfs + ".img",
		"$IMAGE_SPLIT_BOOT": rootfs + "-boot.img",
		"$IMAGE_SPLIT_ROOT": rootfs + "-root.img",
		cmdlineVar:          cmdline,
		"$PARTITION_KERNEL": kernel,
		"$PARTITION_SYSTEM": system,
		"$PARTITION_INITFS": cmp.Or(info["flash_heimdall_partition_initfs"], "RECOVERY"),
		"$PARTITION_VBMETA": vbmeta,
		"$FLASH_PAGESIZE":   info["flash_pagesize"],
		"$RECOVERY_ZIP":     "/mnt/buildroot_" + info.Arch().String() + RecoveryZipPath(opts.Device),
		"$UUU_SCRIPT":       "/mnt/rootfs_" + info.Codename() + "/usr/share/uuu/flash_script.lst",
	}
}

// CheckPartitionBlacklist returns an error if the variable is a partition
// variable and its value is in the blacklist.
func CheckPartitionBlacklist(name, value string, blacklist []string) error {
	if !strings.HasPrefix(name, "$PARTITION_") {
		return nil
	}

	if slices.Contains(blacklist, value) {
		return fmt.Errorf("%w: %s", ErrPartitionBlacklisted, value)
	}

	return nil
}

// Replace returns the command with all variables replaced by their values.
//
// A variable without value is an error, except for the kernel command line:
// a "--cmdline" argument followed by it is dropped instead. Partition
// variables are checked against the blacklist.
func Replace(cmd []string, vars map[string]string, blacklist []string) ([]string, error) {
	// Longest first, so "$IMAGE" does not match in "$IMAGE_SPLIT_ROOT".
	names := slices.SortedFunc(maps.Keys(vars), func(a, b string) int {
		return cmp.Or(len(b)-len(a), strings.Compare(a, b))
	})

	replaced := make([]string, 0, len(cmd))

	for idx := 0; idx < len(cmd); idx++ {
		arg := cmd[idx]

		if arg == "--cmdline" && idx+1 < len(cmd) && cmd[idx+1] == cmdlineVar && vars[cmdlineVar] == "" {
			idx++
			continue
		}

		for _, name := range names {
			if !strings.Contains(arg, name) {
				continue
			}

			value := vars[name]
			if value == "" && name != cmdlineVar {
				return nil, &VariableError{Name: name}
			}

			err := CheckPartitionBlacklist(name, value, blacklist)
			if err != nil {
				return nil, err
			}

			arg = strings.ReplaceAll(arg, name, value)
		}

		replaced = append(replaced, arg)
	}

	return replaced, nil
}
