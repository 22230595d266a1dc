// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/config"
)

// markerFile is created in every chroot that is mounted by pmbootstrap.
const markerFile = "in-pmbootstrap"

// Mount bind-mounts the folders of [config.ChrootMountBinds] into the chroot
// and creates its /dev. Existing mounts are skipped.
func (m *Manager) Mount(ctx context.Context, c Chroot) error {
	chroot := m.Path(c)
	arch := m.Arch(c)

	for _, bind := range config.ChrootMountBinds {
		source := strings.NewReplacer("$WORK", m.Work, "$ARCH", arch.String()).
			Replace(bind.Source)

		err := m.BindMount(ctx, source, filepath.Join(chroot, bind.Target))
		if err != nil {
			return err
		}
	}

	return m.mountDev(ctx, chroot)
}

// BindMount mounts the source folder at the target unless the target is a
// mount point already. Both folders are created if necessary.
func (m *Manager) BindMount(ctx context.Context, source, target string) error {
	mounted, err := m.isMountPoint(target)
	if err != nil {
		return err
	}

	if mounted {
		return nil
	}

	err = m.host(ctx, "mkdir", "-p", source, target)
	if err != nil {
		return fmt.Errorf("create mount folders: %w", err)
	}

	err = m.host(ctx, "mount", "--bind", source, target)
	if err != nil {
		return fmt.Errorf("bind mount %s: %w", source, err)
	}

	return nil
}

// BindMountFile is like [Manager.BindMount] for a single file.
func (m *Manager) BindMountFile(ctx context.Context, source, target string) error {
	mounted, err := m.isMountPoint(target)
	if err != nil {
		return err
	}

	if mounted {
		return nil
	}

	err = m.host(ctx, "mkdir", "-p", filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("create mount folder: %w", err)
	}

	err = m.host(ctx, "touch", target)
	if err != nil {
		return fmt.Errorf("create mount target: %w", err)
	}

	err = m.host(ctx, "mount", "--bind", source, target)
	if err != nil {
		return fmt.Errorf("bind mount %s: %w", source, err)
	}

	return nil
}

func (m *Manager) mountDev(ctx context.Context, chroot string) error {
	dev := filepath.Join(chroot, "dev")

	mounted, err := m.isMountPoint(dev)
	if err != nil {
		return err
	}

	if !mounted {
		cmds := [][]string{
			{"mkdir", "-p", dev},
			{"mount", "-t", "tmpfs", "-o", "size=1M,noexec,dev", "tmpfs", dev},
		}

		for _, node := range config.ChrootDeviceNodes {
			cmds = append(cmds, []string{
				"mknod",
				"-m", strconv.FormatUint(uint64(node.Mode), 8),
				filepath.Join(dev, node.Name),
				"c",
				strconv.Itoa(node.Major),
				strconv.Itoa(node.Minor),
			})
		}

		cmds = append(cmds, []string{"ln", "-sf", "/proc/self/fd", dev + "/"})

		for _, args := range cmds {
			err := m.host(ctx, args...)
			if err != nil {
				return fmt.Errorf("create /dev: %w", err)
			}
		}
	}

	shm := filepath.Join(dev, "shm")

	mounted, err = m.isMountPoint(shm)
	if err != nil {
		return err
	}

	if mounted {
		return nil
	}

	for _, args := range [][]string{
		{"mkdir", "-p", shm},
		{"mount", "-t", "tmpfs", "-o", "nodev,nosuid,noexec", "tmpfs", shm},
	} {
		err := m.host(ctx, args...)
		if err != nil {
			return fmt.Errorf("create /dev/shm: %w", err)
		}
	}

	return nil
}

// Umount unmounts everything below the given path, deepest first.
func (m *Manager) Umount(ctx context.Context, path string) error {
	mounts, err := m.mountPoints(path)
	if err != nil {
		return err
	}

	for _, mount := range mounts {
		slog.Debug("Umount", slog.String("path", mount))

		err := m.host(ctx, "umount", mount)
		if err != nil {
			return fmt.Errorf("umount: %w", err)
		}
	}

	return nil
}

// UmountChroot unmounts everything below the chroot.
func (m *Manager) UmountChroot(ctx context.Context, c Chroot) error {
	return m.Umount(ctx, m.Path(c))
}

func (m *Manager) markInChroot(ctx context.Context, c Chroot) error {
	marker := filepath.Join(m.Path(c), markerFile)
	if exists(marker) {
		return nil
	}

	return m.host(ctx, "touch", marker)
}
