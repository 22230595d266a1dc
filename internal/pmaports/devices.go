// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pmaports

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
)

func (t *Tree) deviceDirs() ([]string, error) {
	var dirs []string

	for _, pattern := range []string{
		filepath.Join(t.Dir, "device", "*", "device-*"),
		filepath.Join(t.Dir, "device", "device-*"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob: %w", err)
		}

		dirs = append(dirs, matches...)
	}

	return dirs, nil
}

// ListCodenames returns the codenames of all devices. If vendor is not empty,
// only devices of this vendor are returned.
func (t *Tree) ListCodenames(vendor string) ([]string, error) {
	dirs, err := t.deviceDirs()
	if err != nil {
		return nil, err
	}

	var codenames []string

	for _, dir := range dirs {
		codename, found := strings.CutPrefix(filepath.Base(dir), "device-")
		if !found {
			continue
		}

		if vendor == "" || strings.HasPrefix(codename, vendor+"-") {
			codenames = append(codenames, codename)
		}
	}

	slices.Sort(codenames)

	return slices.Compact(codenames), nil
}

// ListVendors returns the vendors of all devices, the first part of their
// codenames.
func (t *Tree) ListVendors() ([]string, error) {
	codenames, err := t.ListCodenames("")
	if err != nil {
		return nil, err
	}

	vendors := make([]string, 0, len(codenames))

	for _, codename := range codenames {
		vendor, _, _ := strings.Cut(codename, "-")
		vendors = append(vendors, vendor)
	}

	slices.Sort(vendors)

	return slices.Compact(vendors), nil
}

// FindDevicePath returns the path of the file in the device package folder
// of the given device.
func (t *Tree) FindDevicePath(device, file string) (string, error) {
	path, err := apkbuild.DevicePath(t.Dir, device)
	if err != nil {
		return "", err
	}

	return filepath.Join(filepath.Dir(path), file), nil
}

// ListAPKBUILDs returns the parsed APKBUILDs of all device packages by
// codename.
func (t *Tree) ListAPKBUILDs() (map[string]*apkbuild.APKBUILD, error) {
	codenames, err := t.ListCodenames("")
	if err != nil {
		return nil, err
	}

	apkbuilds := make(map[string]*apkbuild.APKBUILD, len(codenames))

	for _, codename := range codenames {
		path, err := t.FindDevicePath(codename, "APKBUILD")
		if err != nil {
			return nil, err
		}

		apkbuilds[codename], err = t.Parse(path)
		if err != nil {
			return nil, err
		}
	}

	return apkbuilds, nil
}

// ListDeviceinfos returns the deviceinfos of all devices by codename.
func (t *Tree) ListDeviceinfos() (map[string]deviceinfo.Deviceinfo, error) {
	codenames, err := t.ListCodenames("")
	if err != nil {
		return nil, err
	}

	infos := make(map[string]deviceinfo.Deviceinfo, len(codenames))

	for _, codename := range codenames {
		infos[codename], err = deviceinfo.Find(t.Dir, codename)
		if err != nil {
			return nil, err
		}
	}

	return infos, nil
}

// NonfreePackages returns the nonfree subpackages of the device package that
// are enabled.
func NonfreePackages(device *apkbuild.APKBUILD, codename string, firmware, userland bool) []string {
	prefix := "device-" + codename + "-nonfree-"

	var pkgs []string

	if _, exists := device.Subpackages[prefix+"firmware"]; firmware && exists {
		pkgs = append(pkgs, prefix+"firmware")
	}

	if _, exists := device.Subpackages[prefix+"userland"]; userland && exists {
		pkgs = append(pkgs, prefix+"userland")
	}

	return pkgs
}
