// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/z3ntu/pmbootstrap/internal/config"
)

// ZapOptions select what [Manager.Zap] deletes besides the chroots.
type ZapOptions struct {
	// Confirm asks before each deletion.
	Confirm bool
	// Dry only logs what would be deleted.
	Dry bool

	Packages  bool
	HTTP      bool
	Distfiles bool
	Rust      bool
}

// ZapPatterns returns the glob patterns of the folders in the work folder
// that are deleted with the given options.
func ZapPatterns(opts ZapOptions) []string {
	patterns := []string{
		"chroot_native",
		"chroot_buildroot_*",
		"chroot_installer_*",
		"chroot_rootfs_*",
	}

	for _, extra := range []struct {
		enabled bool
		pattern string
	}{
		{opts.Packages, "packages"},
		{opts.HTTP, "cache_http"},
		{opts.Distfiles, "cache_distfiles"},
		{opts.Rust, "cache_rust"},
	} {
		if extra.enabled {
			patterns = append(patterns, extra.pattern)
		}
	}

	return patterns
}

// Zap shuts everything down and deletes the chroots and the selected caches.
// It returns the deleted paths.
func (m *Manager) Zap(ctx context.Context, opts ZapOptions) ([]string, error) {
	err := m.Shutdown(ctx, false)
	if err != nil {
		return nil, err
	}

	var deleted []string

	for _, pattern := range ZapPatterns(opts) {
		matches, err := filepath.Glob(filepath.Join(m.Work, pattern))
		if err != nil {
			return deleted, fmt.Errorf("find %s: %w", pattern, err)
		}

		for _, match := range matches {
			if !opts.Dry && opts.Confirm {
				ok, err := m.Prompter.Confirm("Remove "+match+"?", false)
				if err != nil {
					return deleted, err
				}

				if !ok {
					continue
				}
			}

			slog.Info("% rm -rf " + match)

			if !opts.Dry {
				err := m.host(ctx, "rm", "-rf", match)
				if err != nil {
					return deleted, fmt.Errorf("remove %s: %w", match, err)
				}
			}

			deleted = append(deleted, match)
		}
	}

	if len(deleted) == 0 {
		slog.Info("Nothing to delete")
	}

	if opts.Dry {
		return deleted, nil
	}

	_, err = config.CleanWorkdir(m.Work)
	if err != nil {
		return deleted, err
	}

	return deleted, nil
}
