// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const mib = 1024 * 1024

// installDevice is the install block device inside the native chroot.
const installDevice = "/dev/install"

// imagesDir holds the images inside the native chroot.
const imagesDir = "/home/pmos/rootfs"

// RootfsSize returns the size in MiB of a root partition for files with the
// given size. It adds a fifth plus 50 MiB of free space, as the overhead of
// the file system can not be predicted.
func RootfsSize(folderBytes uint64) uint64 {
	return uint64(math.Round(float64(folderBytes)/mib*1.2)) + 50 //nolint:mnd
}

// folderSize returns the size of the folder in bytes.
func (i *Installer) folderSize(ctx context.Context, path string) (uint64, error) {
	result, err := run.Root(ctx, i.Chroots.Runner, run.Cmd{
		Args:         []string{"du", "-sk", path},
		ReturnOutput: true,
	})
	if err != nil {
		return 0, fmt.Errorf("folder size: %w", err)
	}

	fields := strings.Fields(result.Output)
	if len(fields) == 0 {
		return 0, fmt.Errorf("folder size: unexpected du output %q", result.Output)
	}

	kib, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("folder size: %w", err)
	}

	return kib * 1024, nil //nolint:mnd
}

// image is an image file in the native chroot and the device it is
// attached to.
type image struct {
	path   string
	size   uint64
	device string
}

func (i *Installer) imagePath(suffix string) string {
	return imagesDir + "/" + i.Config.Device + suffix + ".img"
}

// createBlockDevice attaches the sdcard or new images as install block
// device to the native chroot.
func (i *Installer) createBlockDevice(ctx context.Context, bootMiB, rootMiB, reserveMiB uint64, split bool, sdcard string) error {
	native := i.Chroots.Path(chroot.Native())

	err := i.Chroots.Umount(ctx, filepath.Join(native, installDevice))
	if err != nil {
		return err
	}

	if sdcard != "" {
		slog.Info("(native) mount " + installDevice + " (" + sdcard + ")")
		return i.Chroots.BindMountFile(ctx, sdcard, filepath.Join(native, installDevice))
	}

	return i.createImages(ctx, bootMiB, rootMiB, reserveMiB, split)
}

func (i *Installer) createImages(ctx context.Context, bootMiB, rootMiB, reserveMiB uint64, split bool) error {
	native := i.Chroots.Path(chroot.Native())

	for _, suffix := range []string{"", "-boot", "-root"} {
		path := i.imagePath(suffix)
		if _, err := os.Stat(filepath.Join(native, path)); err != nil {
			continue
		}

		err := i.Chroots.Umount(ctx, filepath.Join(native, "mnt"))
		if err != nil {
			return err
		}

		err = i.detachImage(ctx, path)
		if err != nil {
			return err
		}

		err = i.root(ctx, chroot.Native(), "rm", path)
		if err != nil {
			return fmt.Errorf("remove old image: %w", err)
		}
	}

	total := bootMiB + reserveMiB + rootMiB

	freeSpace := i.FreeSpace
	if freeSpace == nil {
		freeSpace = sys.FreeSpace
	}

	free, err := freeSpace(i.Chroots.Work)
	if err != nil {
		return err
	}

	if total > free/mib {
		return fmt.Errorf("%w: free: %dM, required: %dM", ErrNoSpace, free/mib, total)
	}

	_, err = i.Chroots.User(ctx, chroot.Native(), []string{"mkdir", "-p", imagesDir}, chroot.Options{})
	if err != nil {
		return fmt.Errorf("create images folder: %w", err)
	}

	images := []image{{path: i.imagePath(""), size: total, device: installDevice}}
	if split {
		images = []image{
			{path: i.imagePath("-boot"), size: bootMiB, device: installDevice + "p1"},
			{path: i.imagePath("-root"), size: rootMiB, device: installDevice + "p2"},
		}
	}

	for _, img := range images {
		size := strconv.FormatUint(img.size, 10) + "M"

		slog.Info("(native) create " + filepath.Base(img.path) + " (" + size + ")")

		err := i.root(ctx, chroot.Native(), "truncate", "-s", size, img.path)
		if err != nil {
			return fmt.Errorf("create image: %w", err)
		}
	}

	for _, img := range images {
		slog.Info("(native) mount " + img.device + " (" + filepath.Base(img.path) + ")")

		result, err := run.Root(ctx, i.Chroots.Runner, run.Cmd{
			Args:         []string{"losetup", "--find", "--show", "--partscan", filepath.Join(native, img.path)},
			ReturnOutput: true,
		})
		if err != nil {
			return fmt.Errorf("attach image: %w", err)
		}

		err = i.Chroots.BindMountFile(ctx, strings.TrimSpace(result.Output), filepath.Join(native, img.device))
		if err != nil {
			return err
		}
	}

	return nil
}

// loopDevice returns the loop device the image in the native chroot is
// attached to, or "" if it is not attached.
func (i *Installer) loopDevice(ctx context.Context, path string) (string, error) {
	devices, err := i.Chroots.LoopDevices(ctx)
	if err != nil {
		return "", err
	}

	backFile := filepath.Join(i.Chroots.Path(chroot.Native()), path)

	for device, file := range devices {
		if file == backFile {
			return device, nil
		}
	}

	return "", nil
}

func (i *Installer) detachImage(ctx context.Context, path string) error {
	device, err := i.loopDevice(ctx, path)
	if err != nil || device == "" {
		return err
	}

	_, err = run.Root(ctx, i.Chroots.Runner, run.Cmd{Args: []string{"losetup", "-d", device}})
	if err != nil {
		return fmt.Errorf("detach %s: %w", device, err)
	}

	return nil
}

// PartitionCommands returns the parted commands that create the boot
// partition, an optional reserved partition and the root partition.
func PartitionCommands(bootMiB, reserveMiB uint64, filesystem, bootStart string) [][]string {
	mbBoot := strconv.FormatUint(bootMiB, 10) + "M"
	mbRootStart := strconv.FormatUint(bootMiB+reserveMiB, 10) + "M"

	commands := [][]string{
		{"mktable", "msdos"},
		{"mkpart", "primary", filesystem, cmp.Or(bootStart, "2048") + "s", mbBoot},
	}

	if reserveMiB > 0 {
		commands = append(commands, []string{"mkpart", "primary", mbBoot, mbRootStart})
	}

	return append(commands,
		[]string{"mkpart", "primary", mbRootStart, "100%"},
		[]string{"set", "1", "boot", "on"},
	)
}

// Partition partitions the install block device.
//
// Failures are ignored, as parted sometimes fails to inform the kernel. If
// partitioning failed for real, formatting fails later.
func (i *Installer) Partition(ctx context.Context, bootMiB, reserveMiB uint64) error {
	slog.Info(fmt.Sprintf("(native) partition %s (boot: %dM, reserved: %dM, root: the rest)",
		installDevice, bootMiB, reserveMiB))

	commands := PartitionCommands(bootMiB, reserveMiB,
		i.bootFilesystem(), i.Deviceinfo["boot_part_start"])

	for _, command := range commands {
		_, err := i.Chroots.Root(ctx, chroot.Native(),
			append([]string{"parted", "-s", installDevice}, command...),
			chroot.Options{Check: run.Bool(false)})
		if err != nil {
			return err
		}
	}

	return nil
}

// PartitionsMount mounts the boot and root partitions of the sdcard or the
// image as /dev/installp1 and /dev/installp<rootID> into the native chroot.
func (i *Installer) PartitionsMount(ctx context.Context, rootID int, sdcard string) error {
	prefix := sdcard
	if prefix == "" {
		device, err := i.loopDevice(ctx, i.imagePath(""))
		if err != nil {
			return err
		}

		if device == "" {
			return fmt.Errorf("%w: image %s is not attached", ErrPartitionNotFound, i.imagePath(""))
		}

		prefix = device
	}

	interval := cmp.Or(i.PollInterval, 100*time.Millisecond) //nolint:mnd

	const tries = 20

	symbol, found := "", false

	for try := range tries {
		for _, candidate := range []string{"p", ""} {
			if _, err := os.Stat(prefix + candidate + "1"); err == nil {
				symbol, found = candidate, true
				break
			}
		}

		if found {
			break
		}

		slog.Debug(fmt.Sprintf("NOTE: (%d/%d) failed to find the install partition. Retrying...",
			try+1, tries))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	if !found {
		return fmt.Errorf("%w: expected the first partition of %s at %s1 or %sp1",
			ErrPartitionNotFound, prefix, prefix, prefix)
	}

	native := i.Chroots.Path(chroot.Native())

	for _, id := range []int{1, rootID} {
		source := prefix + symbol + strconv.Itoa(id)
		target := filepath.Join(native, installDevice+"p"+strconv.Itoa(id))

		err := i.Chroots.BindMountFile(ctx, source, target)
		if err != nil {
			return err
		}
	}

	return nil
}

// Sparse converts the image in the native chroot to the Android sparse
// image format.
func (i *Installer) Sparse(ctx context.Context) error {
	slog.Info("(native) make sparse rootfs")

	err := i.Chroots.InstallPackages(ctx, chroot.Native(), "android-tools")
	if err != nil {
		return err
	}

	img := i.Config.Device + ".img"
	sparse := i.Config.Device + "-sparse.img"

	for _, args := range [][]string{
		{"img2simg", img, sparse},
		{"mv", "-f", sparse, img},
	} {
		_, err := i.Chroots.User(ctx, chroot.Native(), args, chroot.Options{Dir: imagesDir})
		if err != nil {
			return fmt.Errorf("sparse image: %w", err)
		}
	}

	return nil
}
