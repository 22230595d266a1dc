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
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// LocalRepository is the mount point of the locally built packages in all
// chroots.
const LocalRepository = "/mnt/pmbootstrap-packages"

// RepositoryURLs returns the repositories of the configured channel: the
// local repository if requested, the postmarketOS mirrors and the Alpine
// repositories.
func (m *Manager) RepositoryURLs(local, postmarketos bool) []string {
	var urls []string

	if local {
		urls = append(urls, LocalRepository)
	}

	if postmarketos {
		for _, mirror := range m.MirrorsPostmarketos {
			urls = append(urls, mirror+m.Channel.BranchPmaports)
		}
	}

	repos := []string{"main", "community"}
	if m.Channel.MirrordirAlpine == "edge" {
		repos = append(repos, "testing")
	}

	for _, repo := range repos {
		urls = append(urls, m.MirrorAlpine+m.Channel.MirrordirAlpine+"/"+repo)
	}

	return urls
}

// UpdateRepositoryList writes /etc/apk/repositories of the chroot if its
// content differs.
func (m *Manager) UpdateRepositoryList(ctx context.Context, c Chroot) error {
	path := filepath.Join(m.Path(c), "etc/apk/repositories")
	lines := m.RepositoryURLs(true, true)
	content := strings.Join(lines, "\n") + "\n"

	current, err := os.ReadFile(path)
	if err == nil && string(current) == content {
		return nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read repositories: %w", err)
	}

	quoted := make([]string, 0, len(lines))
	for _, line := range lines {
		quoted = append(quoted, run.Quote(line))
	}

	err = m.host(ctx, "mkdir", "-p", filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("create apk config folder: %w", err)
	}

	err = m.host(ctx, "sh", "-c",
		"printf '%s\\n' "+strings.Join(quoted, " ")+" > "+run.Quote(path))
	if err != nil {
		return fmt.Errorf("write repositories: %w", err)
	}

	return nil
}

// UpdateIndexes downloads the APKINDEX files of all remote repositories for
// the architecture into "$WORK/cache_apk_<arch>". With missingOnly, existing
// files are kept.
func (m *Manager) UpdateIndexes(ctx context.Context, arch sys.Arch, missingOnly bool) error {
	for _, url := range m.RepositoryURLs(false, true) {
		_, err := m.updateIndex(ctx, arch, url, missingOnly)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) updateIndex(ctx context.Context, arch sys.Arch, url string, missingOnly bool) (string, error) {
	target := apkindex.CachePath(m.Work, arch, url)
	if missingOnly && exists(target) {
		return target, nil
	}

	indexURL := url + "/" + arch.String() + "/APKINDEX.tar.gz"

	path, err := m.HTTP.Download(ctx, indexURL, "APKINDEX_"+apkindex.RepoHash(url), false, true)
	if err != nil {
		return "", fmt.Errorf("update APKINDEX: %w", err)
	}

	if path == "" {
		slog.Warn("No APKINDEX for repository", slog.String("url", url))
		return "", nil
	}

	// The apk cache is owned by root once it was mounted into a chroot.
	err = m.host(ctx, "mkdir", "-p", filepath.Dir(target))
	if err != nil {
		return "", fmt.Errorf("create apk cache: %w", err)
	}

	err = m.host(ctx, "cp", path, target)
	if err != nil {
		return "", fmt.Errorf("copy APKINDEX into apk cache: %w", err)
	}

	return target, nil
}
