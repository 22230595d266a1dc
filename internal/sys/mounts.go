// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ProcMounts is the kernel's list of the mount points of the current mount
// namespace.
const ProcMounts = "/proc/mounts"

// MountPointsUnder returns all mount points in the given mounts table that are
// the prefix itself or below it.
//
// The list is sorted so that deeper mount points come first and so it can be
// used for unmounting in order.
func MountPointsUnder(mounts io.Reader, prefix string) ([]string, error) {
	prefix = filepath.Clean(prefix)

	var result []string

	scanner := bufio.NewScanner(mounts)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 { //nolint:mnd
			continue
		}

		path := unescapeMountPath(fields[1])
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			result = append(result, path)
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("scan mounts: %w", err)
	}

	slices.SortStableFunc(result, func(a, b string) int {
		return len(b) - len(a)
	})

	return slices.Compact(result), nil
}

// MountPointsUnderPath is like [MountPointsUnder] but reads [ProcMounts].
func MountPointsUnderPath(prefix string) ([]string, error) {
	file, err := os.Open(ProcMounts)
	if err != nil {
		return nil, fmt.Errorf("open mounts: %w", err)
	}
	defer file.Close()

	return MountPointsUnder(file, prefix)
}

// IsMountPoint returns if the given path is a mount point.
func IsMountPoint(path string) bool {
	mounts, err := MountPointsUnderPath(path)
	if err != nil {
		return false
	}

	return slices.Contains(mounts, filepath.Clean(path))
}

// unescapeMountPath reverts the octal escaping of white space and backslashes
// done by the kernel in the mounts table.
func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}

	var builder strings.Builder

	for idx := 0; idx < len(path); idx++ {
		if path[idx] == '\\' && idx+4 <= len(path) {
			value, err := strconv.ParseUint(path[idx+1:idx+4], 8, 8)
			if err == nil {
				builder.WriteByte(byte(value))

				idx += 3

				continue
			}
		}

		builder.WriteByte(path[idx])
	}

	return builder.String()
}
