// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package install

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

var hostnameRegexp = regexp.MustCompile(`^[0-9a-z.-]+$`)

// ValidateHostname returns an error if the name is not a valid hostname.
func ValidateHostname(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: must not be empty", ErrInvalidHostname)
	case !hostnameRegexp.MatchString(name):
		return fmt.Errorf("%w: %q must only contain letters (a-z), digits (0-9), "+
			"minus signs (-), or periods (.)", ErrInvalidHostname, name)
	case len(name) > 63: //nolint:mnd
		return fmt.Errorf("%w: %q must not be longer than 63 characters",
			ErrInvalidHostname, name)
	case strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-"):
		return fmt.Errorf("%w: %q must not start or end with a minus sign",
			ErrInvalidHostname, name)
	}

	return nil
}

// OSRelease returns the content of /etc/os-release.
func OSRelease(revision string) string {
	short := revision
	if len(short) > 8 { //nolint:mnd
		short = short[:8]
	}

	return `PRETTY_NAME="postmarketOS ` + config.Version + `"
NAME="postmarketOS"
VERSION_ID="` + config.Version + `"
VERSION="` + config.Version + `-` + short + `"
ID="postmarketos"
ID_LIKE="alpine"
HOME_URL="https://www.postmarketos.org/"
SUPPORT_URL="https://gitlab.com/postmarketOS"
BUG_REPORT_URL="https://gitlab.com/postmarketOS/pmbootstrap/issues"
PMOS_HASH="` + revision + `"
`
}

func (i *Installer) root(ctx context.Context, c chroot.Chroot, args ...string) error {
	_, err := i.Chroots.Root(ctx, c, args, chroot.Options{})
	return err
}

func (i *Installer) writeOSRelease(ctx context.Context) error {
	slog.Info("(" + i.rootfs().String() + ") write /etc/os-release")

	revision, err := i.revision(ctx)
	if err != nil {
		return err
	}

	tmp := filepath.Join(i.Chroots.Path(i.rootfs()), "tmp/os-release")

	err = os.WriteFile(tmp, []byte(OSRelease(revision)), 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("write os-release: %w", err)
	}

	return i.root(ctx, i.rootfs(), "mv", "/tmp/os-release", "/etc/os-release")
}

func (i *Installer) buildInitfs(ctx context.Context, flavor string) error {
	rootfs := i.rootfs()

	err := i.Chroots.InstallPackages(ctx, rootfs, "postmarketos-mkinitfs")
	if err != nil {
		return err
	}

	slog.Info("(" + rootfs.String() + ") mkinitfs " + flavor)

	releaseFile := filepath.Join(i.Chroots.Path(rootfs), "usr/share/kernel", flavor, "kernel.release")

	release, err := os.ReadFile(releaseFile)
	if errors.Is(err, os.ErrNotExist) {
		return i.root(ctx, rootfs, "mkinitfs")
	} else if err != nil {
		return fmt.Errorf("read kernel release: %w", err)
	}

	return i.root(ctx, rootfs, "mkinitfs", "-o", "/boot/initramfs-"+flavor,
		strings.TrimSpace(string(release)))
}

// SetupRootfs creates the user and applies the configured keymap,
// timezone, hostname and locale to the rootfs chroot.
func (i *Installer) SetupRootfs(ctx context.Context, opts Options) error {
	for _, step := range []func(context.Context, Options) error{
		i.setUser,
		i.setupLogin,
		i.setupKeymap,
		i.setupTimezone,
		i.setupHostname,
		i.setupLocale,
	} {
		err := step(ctx, opts)
		if err != nil {
			return err
		}
	}

	return nil
}

func (i *Installer) setUser(ctx context.Context, _ Options) error {
	rootfs := i.rootfs()

	exists, err := i.Chroots.UserExists(ctx, rootfs, i.Config.User)
	if err != nil || exists {
		return err
	}

	err = i.root(ctx, rootfs, "adduser", "-D", "-u", strconv.Itoa(config.InstallUID), i.Config.User)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	for _, group := range config.InstallUserGroups {
		_, err := i.Chroots.Root(ctx, rootfs, []string{"addgroup", "-S", group}, chroot.Options{
			Check: run.Bool(false),
		})
		if err != nil {
			return err
		}

		err = i.root(ctx, rootfs, "addgroup", i.Config.User, group)
		if err != nil {
			return fmt.Errorf("add user to group %s: %w", group, err)
		}
	}

	return nil
}

func (i *Installer) setupLogin(ctx context.Context, opts Options) error {
	rootfs := i.rootfs()

	if !opts.OnDev {
		slog.Info(" *** SET LOGIN PASSWORD FOR: '" + i.Config.User + "' ***")

		for {
			_, err := i.Chroots.Root(ctx, rootfs, []string{"passwd", i.Config.User}, chroot.Options{
				Output: run.OutputInteractive,
			})
			if err == nil {
				break
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			slog.Warn("Failed to set the password. Try it one more time.")
		}
	}

	return i.root(ctx, rootfs, "passwd", "-l", "root")
}

func (i *Installer) setupKeymap(ctx context.Context, _ Options) error {
	rootfs := i.rootfs()
	keymaps := i.Deviceinfo.Keymaps()
	keymap := i.Config.Keymap

	if keymap == "" || !strings.Contains(keymap, "/") || !slices.Contains(keymaps, keymap) {
		slog.Info("NOTE: No valid keymap specified for device")
		return nil
	}

	layout, variant, _ := strings.Cut(keymap, "/")

	_, err := i.Chroots.Root(ctx, rootfs, []string{"setup-keymap", layout, variant}, chroot.Options{
		Output: run.OutputInteractive,
	})
	if err != nil {
		return fmt.Errorf("setup keymap: %w", err)
	}

	result, err := i.Chroots.Root(ctx, rootfs, []string{"grep", "-rl", "XkbLayout", "/etc/X11/xorg.conf.d/"},
		chroot.Options{ReturnOutput: true, Check: run.Bool(false)})
	if err != nil {
		return err
	}

	files := strings.Fields(result.Output)
	if len(files) == 0 {
		return nil
	}

	// Multiple files may set the layout, the last one wins.
	xorgConf := files[len(files)-1]
	expr := `s/Option *\"XkbLayout\" *\".*\"/Option \"XkbLayout\" \"` + layout + `\"/`

	return i.root(ctx, rootfs, "sed", "-i", expr, xorgConf)
}

func (i *Installer) setupTimezone(ctx context.Context, _ Options) error {
	return i.root(ctx, i.rootfs(), "setup-timezone", "-z", cmp.Or(i.Config.Timezone, "GMT"))
}

func (i *Installer) setupHostname(ctx context.Context, _ Options) error {
	rootfs := i.rootfs()
	hostname := cmp.Or(i.Config.Hostname, i.Config.Device)

	err := ValidateHostname(hostname)
	if err != nil {
		return fmt.Errorf("%w, run 'pmbootstrap init' to configure it", err)
	}

	err = i.root(ctx, rootfs, "sh", "-c", "echo "+run.Quote(hostname)+" > /etc/hostname")
	if err != nil {
		return fmt.Errorf("write hostname: %w", err)
	}

	expr := `s/^127\.0\.0\.1.*/127.0.0.1\t` + regexp.QuoteMeta(hostname) +
		` localhost.localdomain localhost/`

	return i.root(ctx, rootfs, "sed", "-i", "-e", expr, "/etc/hosts")
}

func (i *Installer) setupLocale(ctx context.Context, _ Options) error {
	locale := cmp.Or(i.Config.Locale, "C.UTF-8")
	line := "export LANG=${LANG:-" + locale + "}"

	return i.root(ctx, i.rootfs(), "sh", "-c",
		"mkdir -p /etc/profile.d && echo "+run.Quote(line)+" > /etc/profile.d/locale.sh")
}
