// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pmaports locates packages, devices and UIs in a pmaports checkout.
package pmaports

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// ErrPackageNotFound is returned if no aport provides a package.
var ErrPackageNotFound = errors.New("could not find aport for package")

// Tree is a pmaports checkout. Parsed APKBUILDs are cached for the lifetime
// of the Tree.
type Tree struct {
	Dir string

	cache apkbuild.Cache

	providersOnce sync.Once
	providers     map[string]string
	providersErr  error
}

// New returns a Tree for the given pmaports directory.
func New(dir string) *Tree {
	return &Tree{Dir: dir}
}

// APKBUILDPaths returns the paths of all APKBUILDs of the tree.
func (t *Tree) APKBUILDPaths() ([]string, error) {
	var paths []string

	for _, pattern := range []string{
		filepath.Join(t.Dir, "*", "*", "APKBUILD"),
		filepath.Join(t.Dir, "*", "*", "*", "APKBUILD"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob: %w", err)
		}

		paths = append(paths, matches...)
	}

	slices.Sort(paths)

	return paths, nil
}

// Find returns the aport directory that provides the given package.
//
// Aport directories are matched by name first. If that fails, subpackages
// and provides of all APKBUILDs are searched.
func (t *Tree) Find(pkgname string) (string, error) {
	for _, pattern := range []string{
		filepath.Join(t.Dir, "*", pkgname),
		filepath.Join(t.Dir, "*", "*", pkgname),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", fmt.Errorf("glob: %w", err)
		}

		for _, match := range matches {
			if !strings.HasPrefix(filepath.Base(filepath.Dir(match)), ".") {
				return match, nil
			}
		}
	}

	t.providersOnce.Do(func() {
		t.providers, t.providersErr = t.collectProviders()
	})

	if t.providersErr != nil {
		return "", t.providersErr
	}

	if dir, exists := t.providers[pkgname]; exists {
		return dir, nil
	}

	return "", fmt.Errorf("%w: %s", ErrPackageNotFound, pkgname)
}

// collectProviders maps subpackage names and provided names to the directory
// of the aport providing them.
func (t *Tree) collectProviders() (map[string]string, error) {
	paths, err := t.APKBUILDPaths()
	if err != nil {
		return nil, err
	}

	providers := make(map[string]string)
	add := func(name, dir string) {
		name, _, _ = strings.Cut(name, "=")
		if _, exists := providers[name]; !exists {
			providers[name] = dir
		}
	}

	for _, path := range paths {
		parsed, err := t.Parse(path)
		if err != nil {
			slog.Debug("Skipping unparsable APKBUILD",
				slog.String("path", path),
				slog.Any("error", err),
			)

			continue
		}

		dir := filepath.Dir(path)

		for _, name := range parsed.SubpackageNames {
			add(name, dir)
		}

		for _, name := range parsed.Provides {
			add(name, dir)
		}

		for _, sub := range parsed.Subpackages {
			if sub == nil {
				continue
			}

			for _, name := range sub.Provides {
				add(name, dir)
			}
		}
	}

	return providers, nil
}

// Parse returns the parsed APKBUILD at the given path.
func (t *Tree) Parse(path string) (*apkbuild.APKBUILD, error) {
	return t.cache.Get(path, apkbuild.Options{})
}

// Get returns the parsed APKBUILD of the aport providing the package.
func (t *Tree) Get(pkgname string) (*apkbuild.APKBUILD, error) {
	dir, err := t.Find(pkgname)
	if err != nil {
		return nil, err
	}

	return t.Parse(filepath.Join(dir, "APKBUILD"))
}

// CheckArch returns if the arch list of an APKBUILD allows building for the
// given architecture. "all" and "noarch" allow any architecture, "!<arch>"
// excludes one.
func CheckArch(archs []string, arch sys.Arch) bool {
	if slices.Contains(archs, "!"+arch.String()) {
		return false
	}

	return slices.Contains(archs, arch.String()) ||
		slices.Contains(archs, "all") ||
		slices.Contains(archs, "noarch")
}
