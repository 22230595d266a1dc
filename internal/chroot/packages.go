// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/apkindex"
)

// Installed returns the index of the packages installed in the chroot. It
// is read from the apk database, which has the same format as an APKINDEX.
func (m *Manager) Installed(c Chroot) (*apkindex.Index, error) {
	file, err := os.Open(filepath.Join(m.Path(c), "lib/apk/db/installed"))
	if errors.Is(err, fs.ErrNotExist) {
		return apkindex.NewIndex(), nil
	} else if err != nil {
		return nil, fmt.Errorf("open apk database: %w", err)
	}
	defer file.Close()

	pkgs, err := apkindex.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("read apk database: %w", err)
	}

	return apkindex.NewIndex(pkgs), nil
}

// InstallPackages initializes the chroot and installs the packages that are
// not installed yet. Names prefixed with "!" are removed from the world.
func (m *Manager) InstallPackages(ctx context.Context, c Chroot, pkgs ...string) error {
	err := m.Init(ctx, c)
	if err != nil {
		return err
	}

	installed, err := m.Installed(c)
	if err != nil {
		return err
	}

	var missing []string

	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg, "!") || len(installed.Providers(pkg)) == 0 {
			missing = append(missing, pkg)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	slog.Info("Install packages",
		slog.String("chroot", c.String()),
		slog.String("packages", strings.Join(missing, " ")),
	)

	_, err = m.Root(ctx, c, append([]string{"apk", "--no-progress", "add"}, missing...), Options{})
	if err != nil {
		return fmt.Errorf("install packages: %w", err)
	}

	return nil
}

// UpgradeAll upgrades all packages of the chroot.
func (m *Manager) UpgradeAll(ctx context.Context, c Chroot) error {
	err := m.Init(ctx, c)
	if err != nil {
		return err
	}

	_, err = m.Root(ctx, c, []string{"apk", "--no-progress", "upgrade", "-a"}, Options{})
	if err != nil {
		return fmt.Errorf("upgrade packages: %w", err)
	}

	return nil
}
