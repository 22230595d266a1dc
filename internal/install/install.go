// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package install creates the rootfs of a device and writes it to an image,
// an sdcard or an Android recovery zip.
package install

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/build"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/git"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/prompt"
	"github.com/z3ntu/pmbootstrap/internal/version"
)

// Options are the choices of a single install run.
type Options struct {
	// SDCard is the block device to install to instead of an image.
	SDCard string
	// Split creates separate boot and root images.
	Split bool
	// NoImage only creates the rootfs chroot.
	NoImage bool

	RecoveryZip              bool
	RecoveryInstallPartition string
	RecoveryFlashKernel      bool

	// Rsync updates the files of an existing installation on the sdcard.
	Rsync bool

	FDE      bool
	Cipher   string
	IterTime int

	Flavor string
	// Add are additional packages for this run.
	Add          []string
	NoRecommends bool
	// Sparse defaults to deviceinfo_flash_sparse.
	Sparse *bool
	// OnDev creates the image of the on-device installer.
	OnDev bool
	// Filesystem of the root partition. Defaults to "ext4".
	Filesystem  string
	NoLocalPkgs bool
}

// Installer installs the configured device.
type Installer struct {
	Chroots    *chroot.Manager
	Builder    *build.Builder
	Tree       *pmaports.Tree
	Config     *config.Config
	Deviceinfo deviceinfo.Deviceinfo
	Prompter   *prompt.Prompter

	// Revision returns the pmaports commit written to /etc/os-release.
	// Defaults to the HEAD of the pmaports checkout.
	Revision func(ctx context.Context) (string, error)
	// SSHKeyGlob defaults to "~/.ssh/id_*.pub".
	SSHKeyGlob string
	// SysBlockDir defaults to "/sys/class/block".
	SysBlockDir string
	// PollInterval is the wait time between checks for new partitions.
	// Defaults to 100ms.
	PollInterval time.Duration
	// FreeSpace defaults to [sys.FreeSpace].
	FreeSpace func(path string) (uint64, error)
}

// StepCount returns the number of steps logged for the install run.
func StepCount(opts Options) int {
	switch {
	case opts.NoImage:
		return 2
	case opts.RecoveryZip:
		return 4
	case opts.OnDev:
		return 8
	default:
		return 5
	}
}

func logStep(step, steps int, title string) {
	slog.Info(fmt.Sprintf("*** (%d/%d) %s ***", step, steps, title))
}

// KernelPackage returns the kernel subpackage of the device package for the
// configured kernel. Nil is returned for devices with a single kernel.
func KernelPackage(device *apkbuild.APKBUILD, codename, kernel string) ([]string, error) {
	prefix := "device-" + codename + "-kernel-"

	var kernels []string

	for _, name := range device.SubpackageNames {
		if flavor, found := strings.CutPrefix(name, prefix); found {
			kernels = append(kernels, flavor)
		}
	}

	if len(kernels) == 0 || kernel == "none" {
		return nil, nil
	}

	if !slices.Contains(kernels, kernel) {
		return nil, fmt.Errorf("%w: %s for %s", ErrKernelNotConfigured, kernel, codename)
	}

	return []string{prefix + kernel}, nil
}

// Packages returns the packages installed into the rootfs, without the
// recommends of the UI.
func Packages(cfg *config.Config, device *apkbuild.APKBUILD, opts Options) ([]string, error) {
	kernel, err := KernelPackage(device, cfg.Device, cfg.Kernel)
	if err != nil {
		return nil, err
	}

	pkgs := slices.Concat(
		config.InstallDevicePackages,
		[]string{"device-" + cfg.Device},
		kernel,
		pmaports.NonfreePackages(device, cfg.Device, cfg.NonfreeFirmware, cfg.NonfreeUserland),
	)

	if strings.ToLower(cfg.UI) != "none" {
		pkgs = append(pkgs, "postmarketos-ui-"+cfg.UI)
		if cfg.UIExtras {
			pkgs = append(pkgs, "postmarketos-ui-"+cfg.UI+"-extras")
		}
	}

	pkgs = append(pkgs, cfg.ExtraPackageList()...)
	pkgs = append(pkgs, opts.Add...)

	if opts.FDE {
		pkgs = append(pkgs, "cryptsetup")
	}

	return pkgs, nil
}

// Recommends returns the packages recommended by the UI package and, if
// enabled, its extras subpackage.
func (i *Installer) Recommends(opts Options) ([]string, error) {
	if opts.NoRecommends || strings.ToLower(i.Config.UI) == "none" {
		return nil, nil
	}

	meta := "postmarketos-ui-" + i.Config.UI

	ui, err := i.Tree.Get(meta)
	if err != nil {
		return nil, err
	}

	recommends := ui.Recommends()
	if len(recommends) > 0 {
		slog.Debug(meta+": install _pmb_recommends", slog.Any("packages", recommends))
	}

	if extras := ui.Subpackages[meta+"-extras"]; i.Config.UIExtras && extras != nil {
		recommends = append(recommends, extras.Recommends...)
	}

	return recommends, nil
}

func (i *Installer) deviceAPKBUILD() (*apkbuild.APKBUILD, error) {
	path, err := apkbuild.DevicePath(i.Tree.Dir, i.Config.Device)
	if err != nil {
		return nil, err
	}

	return i.Tree.Parse(path)
}

func (i *Installer) rootfs() chroot.Chroot {
	return chroot.Rootfs(i.Config.Device)
}

// CheckSDCard returns an error if the sdcard does not exist or is write
// protected.
func (i *Installer) CheckSDCard(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrSDCardMissing, path)
	}

	sysBlock := filepath.Join(cmp.Or(i.SysBlockDir, "/sys/class/block"), filepath.Base(path))
	if _, err := os.Stat(sysBlock); err != nil {
		return nil
	}

	ro, err := os.ReadFile(filepath.Join(sysBlock, "ro"))
	if err != nil {
		return fmt.Errorf("read sdcard state: %w", err)
	}

	if strings.TrimSpace(string(ro)) == "1" {
		return fmt.Errorf("%w: %s", ErrSDCardReadOnly, path)
	}

	return nil
}

// CheckOndevVersion returns an error if the postmarketos-ondev aport is too
// old.
func (i *Installer) CheckOndevVersion() error {
	ondev, err := i.Tree.Get("postmarketos-ondev")
	if err != nil {
		return err
	}

	if version.Compare(ondev.Pkgver, config.OndevMinVersion) < 0 {
		return fmt.Errorf("%w: %s found, %s or higher required",
			ErrOndevTooOld, ondev.Pkgver, config.OndevMinVersion)
	}

	return nil
}

func (i *Installer) revision(ctx context.Context) (string, error) {
	if i.Revision != nil {
		return i.Revision(ctx)
	}

	repo := &git.Repository{Dir: i.Tree.Dir, Runner: i.Chroots.Runner}

	return repo.RevParse(ctx, "HEAD")
}

// Install runs the whole installation.
func (i *Installer) Install(ctx context.Context, opts Options) error {
	if !opts.RecoveryZip && opts.SDCard != "" {
		err := i.CheckSDCard(opts.SDCard)
		if err != nil {
			return err
		}
	}

	if opts.OnDev {
		err := i.CheckOndevVersion()
		if err != nil {
			return err
		}
	}

	steps := StepCount(opts)

	logStep(1, steps, "PREPARE NATIVE CHROOT")

	err := i.Chroots.InstallPackages(ctx, chroot.Native(), config.InstallNativePackages...)
	if err != nil {
		return err
	}

	logStep(2, steps, fmt.Sprintf("CREATE DEVICE ROOTFS (%q)", i.Config.Device))

	err = i.CreateRootfs(ctx, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.NoImage:
		return nil
	case opts.RecoveryZip:
		return i.installRecoveryZip(ctx, opts)
	case opts.OnDev:
		err = i.installOnDevice(ctx, opts, 3, steps)
	default:
		err = i.installSystemImage(ctx, opts, imageOptions{
			chroot:    i.rootfs(),
			rootLabel: "pmOS_root",
			step:      3,
			steps:     steps,
			split:     opts.Split,
			sdcard:    opts.SDCard,
		})
	}

	if err != nil {
		return err
	}

	i.printFlashInfo(opts, steps, steps)

	return nil
}

// CreateRootfs installs all packages into the rootfs chroot of the device
// and configures it.
func (i *Installer) CreateRootfs(ctx context.Context, opts Options) error {
	device, err := i.deviceAPKBUILD()
	if err != nil {
		return err
	}

	pkgs, err := Packages(i.Config, device, opts)
	if err != nil {
		return err
	}

	recommends, err := i.Recommends(opts)
	if err != nil {
		return err
	}

	pkgs = append(pkgs, recommends...)

	err = i.Chroots.UpgradeAll(ctx, i.rootfs())
	if err != nil {
		return err
	}

	if i.Config.BuildPkgsOnInstall {
		for _, pkg := range pkgs {
			_, err := i.Builder.Package(ctx, pkg, build.Options{Arch: i.Deviceinfo.Arch()})
			if errors.Is(err, pmaports.ErrPackageNotFound) {
				continue
			} else if err != nil {
				return fmt.Errorf("build %s: %w", pkg, err)
			}
		}
	}

	err = i.Chroots.InstallPackages(ctx, i.rootfs(), pkgs...)
	if err != nil {
		return err
	}

	err = i.writeOSRelease(ctx)
	if err != nil {
		return err
	}

	flavors, err := chroot.InstalledFlavors(i.Chroots.Work, i.Config.Device)
	if err != nil {
		return err
	}

	for _, flavor := range flavors {
		err := i.buildInitfs(ctx, flavor)
		if err != nil {
			return err
		}
	}

	return i.SetupRootfs(ctx, opts)
}
