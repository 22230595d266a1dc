// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package deviceinfo parses deviceinfo files of device packages.
//
// A deviceinfo is a shell snippet of "deviceinfo_<key>="<value>"" lines. No
// variable substitution is performed on the values.
package deviceinfo

import (
	"bufio"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const prefix = "deviceinfo_"

// Attributes are the known keys. They default to "" if not set.
var Attributes = []string{
	// general
	"format_version",
	"name",
	"manufacturer",
	"codename",
	"year",
	"dtb",
	"modules_initfs",
	"arch",
	"chassis",

	// device
	"keyboard",
	"external_storage",
	"screen_width",
	"screen_height",
	"dev_touchscreen",
	"dev_touchscreen_calibration",

	// bootloader
	"flash_method",
	"boot_filesystem",

	// flash
	"flash_heimdall_partition_kernel",
	"flash_heimdall_partition_initfs",
	"flash_heimdall_partition_system",
	"flash_fastboot_partition_kernel",
	"flash_fastboot_partition_system",
	"flash_fastboot_partition_vbmeta",
	"generate_legacy_uboot_initfs",
	"kernel_cmdline",
	"generate_bootimg",
	"bootimg_qcdt",
	"bootimg_dtb_second",
	"flash_offset_base",
	"flash_offset_kernel",
	"flash_offset_ramdisk",
	"flash_offset_second",
	"flash_offset_tags",
	"flash_pagesize",
	"flash_fastboot_max_size",
	"flash_sparse",
	"rootfs_image_sector_size",
	"sd_embed_firmware",
	"sd_embed_firmware_step_size",
	"partition_blacklist",
	"boot_part_start",

	// weston
	"weston_pixman_type",

	// keymaps
	"keymaps",
}

// ChassisTypes are the valid values of the chassis key, as defined by
// systemd's hostnamectl.
var ChassisTypes = []string{
	"desktop",
	"laptop",
	"convertible",
	"server",
	"tablet",
	"handset",
	"watch",
	"embedded",
	"vm",
}

// obsoleteKeys maps keys that are not used anymore to the hint what to do
// instead.
var obsoleteKeys = map[string]string{
	"flash_methods": "deviceinfo_flash_methods has been renamed to " +
		"deviceinfo_flash_method",
	"external_disk": "instead of deviceinfo_external_disk, please use " +
		"deviceinfo_external_storage",
	"external_disk_install": "instead of deviceinfo_external_disk_install, " +
		"please use deviceinfo_external_storage",
	"msm_refresher": "it is enough to specify 'msm-fb-refresher' in the " +
		"depends of your device's package now, please delete the " +
		"deviceinfo_msm_refresher line",
	"flash_fastboot_vendor_id": "fastboot doesn't allow specifying the " +
		"vendor ID anymore, try removing the " +
		"deviceinfo_flash_fastboot_vendor_id line",
	"nonfree":      "deviceinfo_nonfree is unused, please delete it",
	"dev_keyboard": "deviceinfo_dev_keyboard is unused, please delete it",
	"date":         "deviceinfo_date was replaced by deviceinfo_year",
}

// Deviceinfo maps the keys without "deviceinfo_" prefix to their values.
type Deviceinfo map[string]string

// Arch returns the architecture of the device.
func (d Deviceinfo) Arch() sys.Arch {
	return sys.Arch(d["arch"])
}

// Codename returns the codename of the device.
func (d Deviceinfo) Codename() string {
	return d["codename"]
}

// Chassis returns the chassis type of the device.
func (d Deviceinfo) Chassis() string {
	return d["chassis"]
}

// FlashMethod returns the flash method of the device.
func (d Deviceinfo) FlashMethod() string {
	return d["flash_method"]
}

// KernelCmdline returns the kernel command line of the device.
func (d Deviceinfo) KernelCmdline() string {
	return d["kernel_cmdline"]
}

// Keymaps returns the keymaps the device supports.
func (d Deviceinfo) Keymaps() []string {
	return strings.Fields(d["keymaps"])
}

// Bool returns if the value of the key is "true".
func (d Deviceinfo) Bool(key string) bool {
	return d[key] == "true"
}

// List returns the comma separated list value of the key.
func (d Deviceinfo) List(key string) []string {
	var list []string

	for item := range strings.SplitSeq(d[key], ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}

	return list
}

// Parse parses the deviceinfo file at the given path without any sanity
// check.
func Parse(path string) (Deviceinfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open deviceinfo: %w", err)
	}
	defer file.Close()

	info := make(Deviceinfo, len(Attributes))

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%s:%d: %w: %s", path, lineNum, ErrSyntax, line)
		}

		info[key[len(prefix):]] = strings.ReplaceAll(value, `"`, "")
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read deviceinfo: %w", err)
	}

	for _, key := range Attributes {
		if _, exists := info[key]; !exists {
			info[key] = ""
		}
	}

	return info, nil
}

// SanityCheck checks the deviceinfo read from the given path for obsolete
// keys and for the required keys codename and chassis.
func SanityCheck(info Deviceinfo, path string) error {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	for _, key := range slices.Sorted(maps.Keys(obsoleteKeys)) {
		if _, exists := info[key]; exists {
			return fmt.Errorf("%w %s: %s: %s", ErrObsoleteKey, key, obsoleteKeys[key], path)
		}
	}

	codename := strings.TrimPrefix(filepath.Base(filepath.Dir(path)), "device-")
	if info.Codename() != codename {
		return fmt.Errorf("%w: please add 'deviceinfo_codename=\"%s\"' to: %s",
			ErrInvalidCodename, codename, path)
	}

	chassis := info.Chassis()
	if chassis == "" {
		slog.Info("NOTE: the most commonly used chassis types in " +
			"postmarketOS are 'handset' (for phones) and 'tablet'.")

		return fmt.Errorf("%w: please add 'deviceinfo_chassis' to: %s",
			ErrInvalidChassis, path)
	}

	if !slices.Contains(ChassisTypes, chassis) {
		return fmt.Errorf("%w: unknown chassis type '%s', should be one of %s: %s",
			ErrInvalidChassis, chassis, strings.Join(ChassisTypes, ", "), path)
	}

	return nil
}

// Path returns the path of the deviceinfo of the given device.
func Path(aports, device string) (string, error) {
	apkbuildPath, err := apkbuild.DevicePath(aports, device)
	if err != nil {
		return "", err
	}

	return filepath.Join(filepath.Dir(apkbuildPath), "deviceinfo"), nil
}

// Find parses and checks the deviceinfo of the given device in the aports
// folder.
func Find(aports, device string) (Deviceinfo, error) {
	path, err := Path(aports, device)
	if err != nil {
		return nil, fmt.Errorf("device '%s' not found, run 'pmbootstrap init' "+
			"to start a new device port or to choose another device: %w", device, err)
	}

	info, err := Parse(path)
	if err != nil {
		return nil, err
	}

	err = SanityCheck(info, path)
	if err != nil {
		return nil, err
	}

	return info, nil
}
