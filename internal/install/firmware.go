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
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
)

// Firmware is a binary embedded in front of the first partition.
type Firmware struct {
	// Binary is the path below /usr/share in the rootfs.
	Binary string
	// Offset is counted in steps.
	Offset int64
}

// EmbeddedFirmware returns the firmware binaries of
// deviceinfo_sd_embed_firmware and the step size for their offsets.
//
// The binaries must exist below usr/share of the rootfs folder and fit in
// front of the first partition without overlapping each other.
func EmbeddedFirmware(info deviceinfo.Deviceinfo, rootfs string) ([]Firmware, int64, error) {
	value := info["sd_embed_firmware"]
	if value == "" {
		return nil, 0, nil
	}

	step := int64(1024) //nolint:mnd

	if stepSize := info["sd_embed_firmware_step_size"]; stepSize != "" {
		var err error

		step, err = strconv.ParseInt(stepSize, 10, 64)
		if err != nil || step <= 0 {
			return nil, 0, fmt.Errorf("%w: deviceinfo_sd_embed_firmware_step_size %q",
				ErrInvalidFirmwareSpec, stepSize)
		}
	}

	bootPartStart, err := strconv.ParseInt(cmp.Or(info["boot_part_start"], "2048"), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: deviceinfo_boot_part_start: %w", ErrInvalidFirmwareSpec, err)
	}

	limit := bootPartStart * 512 //nolint:mnd

	type byteRange struct{ start, end int64 }

	var (
		ranges   []byteRange
		firmware []Firmware
	)

	for entry := range strings.SplitSeq(value, ",") {
		binary, offsetStr, found := strings.Cut(entry, ":")
		if !found {
			return nil, 0, fmt.Errorf("%w: %q", ErrInvalidFirmwareSpec, entry)
		}

		offset, err := strconv.ParseInt(offsetStr, 10, 64)
		if err != nil || offset < 0 {
			return nil, 0, fmt.Errorf("%w: offset of %s: %q", ErrInvalidFirmwareSpec, binary, offsetStr)
		}

		stat, err := os.Stat(filepath.Join(rootfs, "usr/share", binary))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: /usr/share/%s", ErrFirmwareNotFound, binary)
		}

		start := offset * step
		end := start + stat.Size()

		if end > limit {
			return nil, 0, fmt.Errorf("%w: %s: %dB > %dB",
				ErrFirmwareTooLarge, binary, stat.Size(), limit-start)
		}

		for _, other := range ranges {
			if start < other.end && other.start < end {
				return nil, 0, fmt.Errorf("%w: %s", ErrFirmwareOverlap, binary)
			}
		}

		ranges = append(ranges, byteRange{start, end})
		firmware = append(firmware, Firmware{Binary: binary, Offset: offset})
	}

	return firmware, step, nil
}

// EmbedFirmware writes the firmware binaries of the device to the install
// block device, for example u-boot.
func (i *Installer) EmbedFirmware(ctx context.Context) error {
	rootfs := i.rootfs()

	firmware, step, err := EmbeddedFirmware(i.Deviceinfo, i.Chroots.Path(rootfs))
	if err != nil || len(firmware) == 0 {
		return err
	}

	mountpoint, err := i.mountRootfs(ctx, rootfs, chroot.Native())
	if err != nil {
		return err
	}

	for _, fw := range firmware {
		slog.Info(fmt.Sprintf("Embed firmware %s in the SD card image at offset %d with step size %d",
			fw.Binary, fw.Offset, step))

		err := i.root(ctx, chroot.Native(), "dd",
			"if="+path.Join(mountpoint, "usr/share", fw.Binary),
			"of="+installDevice,
			"bs="+strconv.FormatInt(step, 10),
			"seek="+strconv.FormatInt(fw.Offset, 10),
		)
		if err != nil {
			return fmt.Errorf("embed %s: %w", fw.Binary, err)
		}
	}

	return nil
}

// mountRootfs bind mounts the chroot to /mnt/<name> inside the target
// chroot and returns the mount point inside the target.
func (i *Installer) mountRootfs(ctx context.Context, c, target chroot.Chroot) (string, error) {
	mountpoint := "/mnt/" + c.String()

	err := i.Chroots.BindMount(ctx, i.Chroots.Path(c), filepath.Join(i.Chroots.Path(target), mountpoint))
	if err != nil {
		return "", err
	}

	return mountpoint, nil
}
