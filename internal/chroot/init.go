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

	"github.com/z3ntu/pmbootstrap/internal/config"
)

// Init prepares the chroot. It is mounted and, for foreign architectures,
// emulation is set up. A chroot that has /bin/sh already only gets its
// resolv.conf and repositories refreshed. Otherwise alpine-base is installed
// with apk.static and, except for rootfs chroots, the "pmos" user is
// created.
func (m *Manager) Init(ctx context.Context, c Chroot) error {
	chroot := m.Path(c)

	err := m.Mount(ctx, c)
	if err != nil {
		return err
	}

	err = m.setupEmulation(ctx, c)
	if err != nil {
		return err
	}

	err = m.markInChroot(ctx, c)
	if err != nil {
		return err
	}

	if exists(filepath.Join(chroot, "bin/sh")) {
		err := m.copyResolvConf(ctx, c)
		if err != nil {
			return err
		}

		return m.UpdateRepositoryList(ctx, c)
	}

	err = m.ApkStatic(ctx)
	if err != nil {
		return err
	}

	arch := m.Arch(c)

	slog.Info("Install alpine-base", slog.String("chroot", c.String()))

	err = m.host(ctx, "mkdir", "-p", filepath.Join(chroot, "etc/apk"))
	if err != nil {
		return fmt.Errorf("create apk config folder: %w", err)
	}

	err = m.host(ctx, "ln", "-s", "-f", "/var/cache/apk", filepath.Join(chroot, "etc/apk/cache"))
	if err != nil {
		return fmt.Errorf("link apk cache: %w", err)
	}

	err = m.initKeys(ctx)
	if err != nil {
		return err
	}

	err = m.copyResolvConf(ctx, c)
	if err != nil {
		return err
	}

	err = m.UpdateRepositoryList(ctx, c)
	if err != nil {
		return err
	}

	err = config.SaveChrootDate(m.Work, c.String(), m.now())
	if err != nil {
		return err
	}

	err = m.RunApkStatic(ctx,
		"--root", chroot,
		"--cache-dir", filepath.Join(m.Work, "cache_apk_"+arch.String()),
		"--initdb",
		"--arch", arch.String(),
		"add", "alpine-base",
	)
	if err != nil {
		return err
	}

	if c.Type == TypeRootfs {
		return nil
	}

	return m.createBuildUser(ctx, c)
}

func (m *Manager) createBuildUser(ctx context.Context, c Chroot) error {
	chroot := m.Path(c)

	_, err := m.Root(ctx, c, []string{
		"adduser", "-D", "pmos", "-u", strconv.Itoa(config.ChrootUID),
	}, Options{})
	if err != nil {
		return fmt.Errorf("create build user: %w", err)
	}

	for _, link := range config.ChrootHomeSymlinks {
		linkDir := filepath.Dir(link.Target)

		if !exists(filepath.Join(chroot, linkDir)) {
			_, err := m.User(ctx, c, []string{"mkdir", "-p", linkDir}, Options{})
			if err != nil {
				return fmt.Errorf("create home folder: %w", err)
			}
		}

		if !exists(filepath.Join(chroot, link.Source)) {
			_, err := m.Root(ctx, c, []string{"mkdir", "-p", link.Source}, Options{})
			if err != nil {
				return fmt.Errorf("create link target: %w", err)
			}
		}

		_, err := m.User(ctx, c, []string{"ln", "-s", link.Source, link.Target}, Options{})
		if err != nil {
			return fmt.Errorf("create home symlink: %w", err)
		}

		_, err = m.Root(ctx, c, []string{"chown", "pmos:pmos", link.Source}, Options{})
		if err != nil {
			return fmt.Errorf("chown link target: %w", err)
		}
	}

	return nil
}

// initKeys copies the trusted keys into "$WORK/config_apk_keys", which is
// mounted as /etc/apk/keys in all chroots.
func (m *Manager) initKeys(ctx context.Context) error {
	keys, err := filepath.Glob(filepath.Join(m.keysDir(), "*.pub"))
	if err != nil {
		return fmt.Errorf("find keys: %w", err)
	}

	target := filepath.Join(m.Work, "config_apk_keys")

	for _, key := range keys {
		if exists(filepath.Join(target, filepath.Base(key))) {
			continue
		}

		err := m.host(ctx, "cp", key, target+"/")
		if err != nil {
			return fmt.Errorf("copy key: %w", err)
		}
	}

	return nil
}

func (m *Manager) copyResolvConf(ctx context.Context, c Chroot) error {
	target := filepath.Join(m.Path(c), "etc/resolv.conf")

	err := m.host(ctx, "mkdir", "-p", filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("create /etc: %w", err)
	}

	if exists(m.resolvConf()) {
		err = m.host(ctx, "cp", m.resolvConf(), target)
	} else {
		err = m.host(ctx, "sh", "-c", "echo 'nameserver 1.1.1.1' > "+target)
	}

	if err != nil {
		return fmt.Errorf("copy resolv.conf: %w", err)
	}

	return nil
}
