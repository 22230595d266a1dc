// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package build builds packages of the pmaports tree with abuild inside the
// chroots and maintains the local binary repository.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/apkindex"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
	"github.com/z3ntu/pmbootstrap/internal/version"
)

// InitMarker is created in a chroot once it is prepared for building.
const InitMarker = "/var/local/pmbootstrap_chroot_build_init_done"

// buildPath is the folder the aport is copied to inside the chroot.
const buildPath = "/home/pmos/build"

// Builder builds packages.
type Builder struct {
	Chroots *chroot.Manager
	Tree    *pmaports.Tree

	Jobs       int
	CcacheSize string
	NoCcache   bool

	// done holds the packages handled in this run, including those that are
	// still being built, so dependency cycles terminate.
	done map[string]bool
}

// New returns a Builder for the given config.
func New(chroots *chroot.Manager, tree *pmaports.Tree, cfg *config.Config) *Builder {
	return &Builder{
		Chroots:    chroots,
		Tree:       tree,
		Jobs:       cfg.Jobs,
		CcacheSize: cfg.CcacheSize,
		NoCcache:   cfg.NoCcache,
	}
}

// Options are the options of [Builder.Package].
type Options struct {
	// Arch defaults to the native architecture.
	Arch sys.Arch
	// Force builds even if the package is up to date.
	Force bool
	// Strict lets abuild install and remove the makedepends itself.
	Strict bool
	// NoDepends skips building the dependencies.
	NoDepends bool
	// Src overrides the source of the package with a local folder.
	Src string
}

// Chroot returns the chroot packages for the architecture are built in.
func (b *Builder) Chroot(arch sys.Arch) chroot.Chroot {
	if arch == b.Chroots.Arch(chroot.Native()) {
		return chroot.Native()
	}

	return chroot.Buildroot(arch)
}

// OutputPath returns the path of the package built from the APKBUILD in the
// local repository.
func OutputPath(work string, arch sys.Arch, a *apkbuild.APKBUILD) string {
	return filepath.Join(work, "packages", arch.String(),
		a.Pkgname+"-"+a.VersionString()+".apk")
}

// Init prepares the chroot for building. It is skipped once the chroot has
// the [InitMarker].
func (b *Builder) Init(ctx context.Context, c chroot.Chroot) error {
	chrootPath := b.Chroots.Path(c)
	if _, err := os.Stat(filepath.Join(chrootPath, InitMarker)); err == nil {
		return nil
	}

	err := b.Chroots.InstallPackages(ctx, c, config.BuildPackages...)
	if err != nil {
		return err
	}

	slog.Info("Prepare chroot for building", slog.String("chroot", c.String()))

	root := func(args ...string) error {
		_, err := b.Chroots.Root(ctx, c, args, chroot.Options{})
		return err
	}

	for _, args := range [][]string{
		{"chown", "root:abuild", "/var/cache/distfiles"},
		{"chmod", "g+w", "/var/cache/distfiles"},
	} {
		err := root(args...)
		if err != nil {
			return fmt.Errorf("distfiles permissions: %w", err)
		}
	}

	err = b.generateKeys(ctx, c)
	if err != nil {
		return err
	}

	for _, args := range [][]string{
		{"adduser", "pmos", "abuild"},
		// Keep the build folder for inspection after failures.
		{"sed", "-i", "-e", "s/^CLEANUP=.*/CLEANUP=''/", "/etc/abuild.conf"},
		{"sed", "-i", "-e", "s/^ERROR_CLEANUP=.*/ERROR_CLEANUP=''/", "/etc/abuild.conf"},
		{"sed", "-i", "-e", "s/^export JOBS=.*/export JOBS=" + strconv.Itoa(b.Jobs) + "/", "/etc/abuild.conf"},
	} {
		err := root(args...)
		if err != nil {
			return fmt.Errorf("configure abuild: %w", err)
		}
	}

	if b.CcacheSize != "" {
		_, err := b.Chroots.User(ctx, c, []string{"ccache", "--max-size", b.CcacheSize}, chroot.Options{})
		if err != nil {
			return fmt.Errorf("set ccache size: %w", err)
		}
	}

	err = root("mkdir", "-p", filepath.Dir(InitMarker))
	if err != nil {
		return fmt.Errorf("create marker folder: %w", err)
	}

	return root("touch", InitMarker)
}

// generateKeys creates the package signing key once and trusts it in the
// chroot and in all future chroots.
func (b *Builder) generateKeys(ctx context.Context, c chroot.Chroot) error {
	abuildConfig := filepath.Join(b.Chroots.Work, "config_abuild")
	if _, err := os.Stat(filepath.Join(abuildConfig, "abuild.conf")); err == nil {
		return nil
	}

	slog.Info("Generate abuild keys", slog.String("chroot", c.String()))

	_, err := b.Chroots.User(ctx, c, []string{"abuild-keygen", "-n", "-q", "-a"}, chroot.Options{})
	if err != nil {
		return fmt.Errorf("generate abuild keys: %w", err)
	}

	keys, err := filepath.Glob(filepath.Join(abuildConfig, "*.pub"))
	if err != nil {
		return fmt.Errorf("find abuild keys: %w", err)
	}

	for _, key := range keys {
		inChroot := "/mnt/pmbootstrap-abuild-config/" + filepath.Base(key)

		_, err := b.Chroots.Root(ctx, c, []string{"cp", inChroot, "/etc/apk/keys/"}, chroot.Options{})
		if err != nil {
			return fmt.Errorf("trust abuild key: %w", err)
		}
	}

	return nil
}

// indexes returns the combined index of the local repository and the cached
// postmarketOS and Alpine indexes of the architecture. Missing files are
// skipped.
func (b *Builder) indexes(arch sys.Arch) (*apkindex.Index, error) {
	paths := []string{filepath.Join(b.Chroots.Work, "packages", arch.String(), "APKINDEX.tar.gz")}

	for _, url := range b.Chroots.RepositoryURLs(false, true) {
		paths = append(paths, apkindex.CachePath(b.Chroots.Work, arch, url))
	}

	var all [][]apkindex.Package

	for _, path := range paths {
		pkgs, err := apkindex.ParseArchive(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}

		all = append(all, pkgs)
	}

	return apkindex.NewIndex(all...), nil
}

// Necessary returns if the package needs to be built because no binary
// repository has its current version.
func (b *Builder) Necessary(arch sys.Arch, a *apkbuild.APKBUILD) (bool, error) {
	index, err := b.indexes(arch)
	if err != nil {
		return false, err
	}

	pkg, err := index.Package(a.Pkgname)
	if errors.Is(err, apkindex.ErrPackageNotFound) {
		slog.Debug("No binary package found", slog.String("package", a.Pkgname))
		return true, nil
	} else if err != nil {
		return false, err
	}

	switch cmp := version.Compare(pkg.Version, a.VersionString()); {
	case cmp < 0:
		slog.Debug("Binary package is outdated",
			slog.String("package", a.Pkgname),
			slog.String("binary", pkg.Version),
			slog.String("aport", a.VersionString()),
		)

		return true, nil
	case cmp > 0:
		slog.Warn("Binary package is newer than the aport",
			slog.String("package", a.Pkgname),
			slog.String("binary", pkg.Version),
			slog.String("aport", a.VersionString()),
		)
	}

	return false, nil
}

// Package builds the package and, unless disabled, the dependencies it has
// in pmaports first. It returns if the package was built.
func (b *Builder) Package(ctx context.Context, pkgname string, opts Options) (bool, error) {
	if opts.Arch == "" {
		opts.Arch = b.Chroots.Arch(chroot.Native())
	}

	if b.done == nil {
		b.done = make(map[string]bool)
	}

	key := opts.Arch.String() + "/" + pkgname
	if b.done[key] {
		return false, nil
	}

	b.done[key] = true

	a, err := b.Tree.Get(pkgname)
	if err != nil {
		return false, err
	}

	if !pmaports.CheckArch(a.Arch, opts.Arch) {
		return false, fmt.Errorf("%w: %s can not be built for %s",
			sys.ErrArchNotSupported, pkgname, opts.Arch)
	}

	makedepends := buildDepends(a)

	if !opts.NoDepends {
		err := b.dependencies(ctx, a, makedepends, opts)
		if err != nil {
			return false, err
		}
	}

	if !opts.Force && opts.Src == "" {
		necessary, err := b.Necessary(opts.Arch, a)
		if err != nil {
			return false, err
		}

		if !necessary {
			slog.Info("Package is up to date", slog.String("package", a.Pkgname))
			return false, nil
		}
	}

	err = b.build(ctx, a, makedepends, opts)
	if err != nil {
		return false, err
	}

	return true, nil
}

// dependencies builds all dependencies of the aport that are in pmaports.
func (b *Builder) dependencies(ctx context.Context, a *apkbuild.APKBUILD, makedepends []string, opts Options) error {
	depOpts := opts
	depOpts.Force = false
	depOpts.Src = ""

	for _, dep := range append(makedepends, a.Depends...) {
		name, ok := dependencyName(dep)
		if !ok || name == a.Pkgname {
			continue
		}

		depAPKBUILD, err := b.Tree.Get(name)
		if errors.Is(err, pmaports.ErrPackageNotFound) {
			continue
		} else if err != nil {
			return err
		}

		// Subpackages of the aport being built come with it.
		if depAPKBUILD.Pkgname == a.Pkgname {
			continue
		}

		if !pmaports.CheckArch(depAPKBUILD.Arch, opts.Arch) {
			slog.Debug("Skip dependency not available for arch",
				slog.String("package", name),
				slog.String("arch", opts.Arch.String()),
			)

			continue
		}

		_, err = b.Package(ctx, depAPKBUILD.Pkgname, depOpts)
		if err != nil {
			return fmt.Errorf("build dependency %s: %w", name, err)
		}
	}

	return nil
}

func (b *Builder) build(ctx context.Context, a *apkbuild.APKBUILD, makedepends []string, opts Options) error {
	c := b.Chroot(opts.Arch)

	err := b.Init(ctx, c)
	if err != nil {
		return err
	}

	if !opts.Strict {
		var install []string

		for _, dep := range makedepends {
			if name, ok := dependencyName(dep); ok && name != a.Pkgname {
				install = append(install, name)
			}
		}

		if len(install) > 0 {
			err := b.Chroots.InstallPackages(ctx, c, install...)
			if err != nil {
				return err
			}
		}
	}

	err = b.copyToBuildPath(ctx, c, filepath.Dir(a.Path))
	if err != nil {
		return err
	}

	if opts.Src != "" {
		err := b.overrideSource(ctx, c, a, opts.Src)
		if err != nil {
			return err
		}
	}

	slog.Info("Build package",
		slog.String("package", a.Pkgname),
		slog.String("version", a.VersionString()),
		slog.String("arch", opts.Arch.String()),
	)

	_, err = b.Chroots.User(ctx, c, AbuildCommand(a, opts), chroot.Options{
		Dir: buildPath,
		Env: b.abuildEnv(opts.Arch),
	})
	if err != nil {
		return fmt.Errorf("abuild %s: %w", a.Pkgname, err)
	}

	return b.IndexRepo(ctx, opts.Arch)
}

// AbuildCommand returns the abuild command line for the package.
func AbuildCommand(a *apkbuild.APKBUILD, opts Options) []string {
	args := []string{"abuild", "-D", "postmarketOS"}

	if opts.Strict || slices.Contains(a.Options, "pmb:strict") {
		// abuild installs the makedepends and removes them afterwards.
		args = append(args, "-r")
	} else {
		args = append(args, "-d")
	}

	if opts.Force || opts.Src != "" {
		args = append(args, "-f")
	}

	return args
}

func (b *Builder) abuildEnv(arch sys.Arch) map[string]string {
	env := map[string]string{
		"CARCH":    arch.String(),
		"SUDO_APK": "abuild-apk --no-progress",
	}

	if b.NoCcache {
		env["CCACHE_DISABLE"] = "1"
	}

	return env
}

func (b *Builder) copyToBuildPath(ctx context.Context, c chroot.Chroot, aportDir string) error {
	chrootPath := b.Chroots.Path(c)

	_, err := b.Chroots.Root(ctx, c, []string{"rm", "-rf", buildPath}, chroot.Options{})
	if err != nil {
		return fmt.Errorf("clean build folder: %w", err)
	}

	_, err = run.Root(ctx, b.Chroots.Runner, run.Cmd{
		Args: []string{"cp", "-r", aportDir + "/", chrootPath + buildPath},
	})
	if err != nil {
		return fmt.Errorf("copy aport: %w", err)
	}

	_, err = b.Chroots.Root(ctx, c, []string{"chown", "-R", "pmos:pmos", buildPath}, chroot.Options{})
	if err != nil {
		return fmt.Errorf("chown build folder: %w", err)
	}

	return nil
}

// dependencyName strips version constraints from a dependency. It returns
// false for conflicts and for dependencies on sonames, commands and
// pkg-config names, which are only satisfied by binary packages.
func dependencyName(dep string) (string, bool) {
	if strings.HasPrefix(dep, "!") {
		return "", false
	}

	for _, prefix := range []string{"so:", "cmd:", "pc:"} {
		if strings.HasPrefix(dep, prefix) {
			return "", false
		}
	}

	name := dep
	if idx := strings.IndexAny(name, "<>=~"); idx >= 0 {
		name = name[:idx]
	}

	return name, name != ""
}

func buildDepends(a *apkbuild.APKBUILD) []string {
	var deps []string

	for _, list := range [][]string{a.Makedepends, a.MakedependsBuild, a.MakedependsHost, a.Checkdepends} {
		deps = append(deps, list...)
	}

	return deps
}
