// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strconv"
)

var imageSizeRegexp = regexp.MustCompile(`^[0-9]+[MG]$`)

// ParseImageSize returns the size in bytes of a size given in MiB or GiB,
// like "2048M" or "2G".
func ParseImageSize(size string) (int64, error) {
	if !imageSizeRegexp.MatchString(size) {
		return 0, fmt.Errorf("%w: %q, specify the size in [M]iB or [G]iB, e.g. 2048M or 2G",
			ErrInvalidImageSize, size)
	}

	value, err := strconv.ParseInt(size[:len(size)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidImageSize, err)
	}

	bytes := value * 1024 * 1024 //nolint:mnd
	if size[len(size)-1] == 'G' {
		bytes *= 1024
	}

	return bytes, nil
}

// ResizeImage grows the image at path to the given size. The new size must
// not be smaller than the current one.
func ResizeImage(size, path string) error {
	newSize, err := ParseImageSize(size)
	if err != nil {
		return err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageNotFound, err)
	}

	if newSize < stat.Size() {
		// Decimal places are not allowed, so suggest the size in MiB.
		current := int64(math.Round(float64(stat.Size()) / 1024 / 1024)) //nolint:mnd
		return fmt.Errorf("%w: the rootfs size must be %dM or greater", ErrImageShrink, current)
	}

	slog.Info("Setting the rootfs size to " + size)

	err = os.Truncate(path, newSize)
	if err != nil {
		return fmt.Errorf("resize image: %w", err)
	}

	return nil
}
