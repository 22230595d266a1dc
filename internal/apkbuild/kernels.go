// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrDeviceNotFound is returned if no device package exists in pmaports.
var ErrDeviceNotFound = errors.New("device package not found")

// DevicePath returns the path of the APKBUILD of the device package of the
// given device in the aports folder.
func DevicePath(aports, device string) (string, error) {
	for _, pattern := range []string{
		filepath.Join(aports, "device", "*", "device-"+device, "APKBUILD"),
		filepath.Join(aports, "device", "device-"+device, "APKBUILD"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", fmt.Errorf("glob: %w", err)
		}

		if len(matches) > 0 {
			return matches[0], nil
		}
	}

	return "", fmt.Errorf("%w: device-%s", ErrDeviceNotFound, device)
}

// Kernels returns the kernel flavors the device can be installed with,
// mapped to their description.
//
// Kernels are subpackages of the device package named
// "device-<device>-kernel-<flavor>". Nil is returned if the device has only
// a single kernel and does not use this scheme.
func Kernels(aports, device string) (map[string]string, error) {
	path, err := DevicePath(aports, device)
	if err != nil {
		return nil, err
	}

	apkbuild, err := Parse(path, Options{})
	if err != nil {
		return nil, err
	}

	prefix := "device-" + device + "-kernel-"

	var kernels map[string]string

	for _, name := range apkbuild.SubpackageNames {
		flavor, found := strings.CutPrefix(name, prefix)
		if !found {
			continue
		}

		function := "kernel_" + strings.ReplaceAll(flavor, "-", "_")

		desc, err := SubpackageDescription(path, function)
		if err != nil {
			return nil, err
		}

		if kernels == nil {
			kernels = make(map[string]string)
		}

		kernels[flavor] = desc
	}

	return kernels, nil
}
