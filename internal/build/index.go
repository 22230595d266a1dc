// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// IndexRepo creates and signs the APKINDEX of the local repository of the
// architecture.
func (b *Builder) IndexRepo(ctx context.Context, arch sys.Arch) error {
	hostDir := filepath.Join(b.Chroots.Work, "packages", arch.String())

	apks, err := filepath.Glob(filepath.Join(hostDir, "*.apk"))
	if err != nil {
		return fmt.Errorf("find packages: %w", err)
	}

	if len(apks) == 0 {
		slog.Debug("No packages to index", slog.String("arch", arch.String()))
		return nil
	}

	slog.Info("Index local repository", slog.String("arch", arch.String()))

	args := []string{
		"apk", "-q", "index",
		"--output", "APKINDEX.tar.gz_",
		"--rewrite-arch", arch.String(),
		"--description", "postmarketOS local repository",
	}
	for _, apk := range apks {
		args = append(args, filepath.Base(apk))
	}

	opts := chroot.Options{Dir: "/home/pmos/packages/pmos/" + arch.String()}

	for _, cmd := range [][]string{
		args,
		{"abuild-sign", "APKINDEX.tar.gz_"},
		{"mv", "APKINDEX.tar.gz_", "APKINDEX.tar.gz"},
	} {
		_, err := b.Chroots.User(ctx, chroot.Native(), cmd, opts)
		if err != nil {
			return fmt.Errorf("index %s: %w", arch, err)
		}
	}

	return nil
}

// Index re-indexes the local repositories of all architectures.
func (b *Builder) Index(ctx context.Context) error {
	entries, err := os.ReadDir(filepath.Join(b.Chroots.Work, "packages"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("read packages folder: %w", err)
	}

	for _, entry := range entries {
		arch := sys.Arch(entry.Name())
		if !entry.IsDir() || !arch.IsValid() {
			continue
		}

		err := b.IndexRepo(ctx, arch)
		if err != nil {
			return err
		}
	}

	return nil
}

// Lookup returns the APKBUILD that provides the package.
type Lookup func(pkgname string) (*apkbuild.APKBUILD, error)

// DependsRecurse returns the sorted names of all aports the package needs to
// be built for the architecture, including the package itself. Dependencies
// that no aport provides are ignored.
func DependsRecurse(lookup Lookup, pkgname string, arch sys.Arch) ([]string, error) {
	seen := make(map[string]bool)
	queue := []string{pkgname}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		a, err := lookup(name)
		if errors.Is(err, pmaports.ErrPackageNotFound) {
			if name == pkgname {
				return nil, err
			}

			continue
		} else if err != nil {
			return nil, err
		}

		if seen[a.Pkgname] || !pmaports.CheckArch(a.Arch, arch) {
			continue
		}

		seen[a.Pkgname] = true

		for _, dep := range append(buildDepends(a), a.Depends...) {
			depName, ok := dependencyName(dep)
			if ok && !seen[depName] {
				queue = append(queue, depName)
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}
