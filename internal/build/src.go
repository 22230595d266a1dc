// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

// SourceMount is where a local source folder is mounted for [Options.Src].
const SourceMount = "/mnt/pmbootstrap-source"

// SourceOverride is appended to the copied APKBUILD if the source is taken
// from a local folder. Remote sources are dropped and the folder is synced
// into builddir instead of downloading and unpacking.
const SourceOverride = `
# Local source override
_pmb_src_copy="` + SourceMount + `"
_pmb_source_orig="$source"
source=""
for _pmb_f in $_pmb_source_orig; do
	case "$_pmb_f" in
	*::*|*://*) ;;
	*) source="$source $_pmb_f" ;;
	esac
done

fetch() {
	:
}

verify() {
	:
}

unpack() {
	mkdir -p "$builddir"
	rsync -a --exclude=".git/" --exclude="src/" --exclude="pkg/" \
		"$_pmb_src_copy/" "$builddir"
}
`

// overrideSource mounts the local source folder into the chroot and patches
// the copied APKBUILD to build from it.
func (b *Builder) overrideSource(ctx context.Context, c chroot.Chroot, a *apkbuild.APKBUILD, src string) error {
	src, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("source path: %w", err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source folder: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("source folder: %s: %w", src, os.ErrInvalid)
	}

	slog.Info("Override source",
		slog.String("package", a.Pkgname),
		slog.String("source", src),
	)

	err = b.Chroots.InstallPackages(ctx, c, "rsync")
	if err != nil {
		return err
	}

	err = b.Chroots.BindMount(ctx, src, b.Chroots.Path(c)+SourceMount)
	if err != nil {
		return err
	}

	script := "printf '%s\\n' " + run.Quote(SourceOverride) + " >> " + buildPath + "/APKBUILD"

	_, err = b.Chroots.User(ctx, c, []string{"sh", "-c", script}, chroot.Options{})
	if err != nil {
		return fmt.Errorf("patch APKBUILD: %w", err)
	}

	return nil
}
