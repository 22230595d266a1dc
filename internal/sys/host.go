// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// IsRoot returns if the process runs with effective user ID 0.
func IsRoot() bool {
	return unix.Geteuid() == 0
}

// RequirePrograms checks that all given programs can be found in PATH.
//
// It returns a [MissingProgramsError] listing all programs not found.
func RequirePrograms(names ...string) error {
	var missing []string

	for _, name := range names {
		_, err := exec.LookPath(name)
		if err != nil {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &MissingProgramsError{Programs: missing}
	}

	return nil
}

// FreeSpace returns the number of bytes available to unprivileged users on
// the file system the given path is located on.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t

	err := unix.Statfs(path, &stat)
	if err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	return stat.Bavail * uint64(stat.Bsize), nil //nolint:gosec
}

// KillProcessGroup sends SIGKILL to all processes of the process group with
// the given ID.
//
// It is not an error if the group does not exist anymore.
func KillProcessGroup(pgid int) error {
	err := unix.Kill(-pgid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pgid, err)
	}

	return nil
}
