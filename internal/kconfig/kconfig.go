// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package kconfig checks kernel configs for options postmarketOS needs.
package kconfig

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/version"
)

var (
	// ErrUnknownArch is returned if the architecture can not be read from a
	// kernel config.
	ErrUnknownArch = errors.New("failed to extract arch from kernel config")

	// ErrVersionNotFound is returned if the kernel version can not be read
	// from a kernel config.
	ErrVersionNotFound = errors.New("failed to extract version from kernel config")
)

// Option is a kernel config option that must be enabled or disabled.
type Option struct {
	Name    string
	Enabled bool
}

// Rule is a set of options that apply to kernel versions matching the
// version rule, built for one of the given architectures.
type Rule struct {
	Version string
	// Archs is nil for all architectures.
	Archs   []string
	Options []Option
}

// NecessaryOptions are the options every postmarketOS kernel must have.
var NecessaryOptions = []Rule{
	{
		Version: ">=0.0.0",
		Options: []Option{
			{"ANDROID_PARANOID_NETWORK", false},
			{"BLK_DEV_INITRD", true},
			{"CGROUPS", true},
			{"DEVTMPFS", true},
			{"DM_CRYPT", true},
			{"EXT4_FS", true},
			{"KINETO_GAN", false},
			{"PFT", false},
			{"SYSVIPC", true},
			{"VT", true},
			{"USE_VFB", false},
		},
	},
	{
		Version: ">=4.0.0",
		Options: []Option{
			{"UEVENT_HELPER", true},
		},
	},
	{
		Version: "<5.2.0",
		Archs:   []string{"armhf", "armv7", "x86"},
		Options: []Option{
			{"LBDAF", true},
		},
	},
}

// IsSet returns if the boolean or tristate option is enabled as builtin or
// module.
func IsSet(config, option string) bool {
	re := regexp.MustCompile(`(?m)^CONFIG_` + regexp.QuoteMeta(option) + `=[ym]`)
	return re.MatchString(config)
}

// CheckConfig checks the config content of a kernel with the given version
// built for the given architecture. Name is used in log messages only.
//
// With details, every wrong option is logged. Otherwise only the first one
// is reported.
func CheckConfig(config, name, arch, pkgver string, details bool) (bool, error) {
	ok := true

	for _, rule := range NecessaryOptions {
		matches, err := version.CheckString(pkgver, rule.Version)
		if err != nil {
			return false, fmt.Errorf("check version: %w", err)
		}

		if !matches {
			continue
		}

		if rule.Archs != nil && !slices.Contains(rule.Archs, arch) {
			continue
		}

		for _, option := range rule.Options {
			if option.Enabled == IsSet(config, option.Name) {
				continue
			}

			ok = false

			if !details {
				slog.Warn(name + " isn't configured properly for postmarketOS, " +
					"run 'pmbootstrap kconfig check' for details!")

				break
			}

			should := "should"
			if !option.Enabled {
				should = "should *not*"
			}

			slog.Warn(fmt.Sprintf("CONFIG_%s %s be set", option.Name, should),
				slog.String("kernel", name),
				slog.String("details",
					"https://wiki.postmarketos.org/wiki/Kernel_configuration#CONFIG_"+option.Name),
			)
		}
	}

	return ok, nil
}

func checkPath(path, name, arch, pkgver string, details bool) (bool, error) {
	slog.Debug("Check kconfig", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read kernel config: %w", err)
	}

	return CheckConfig(string(data), name, arch, pkgver, details)
}

// Check checks all kernel configs of the kernel aport "linux-<flavor>". The
// "linux-" prefix of pkgname is optional.
func Check(tree *pmaports.Tree, pkgname string, details bool) (bool, error) {
	flavor := pkgname
	if after, found := strings.CutPrefix(pkgname, "linux-"); found {
		flavor = after

		slog.Info("PROTIP: You can simply do 'pmbootstrap kconfig check " + flavor + "'")
	}

	dir, err := tree.Find("linux-" + flavor)
	if err != nil {
		return false, err
	}

	aport, err := tree.Parse(filepath.Join(dir, "APKBUILD"))
	if err != nil {
		return false, err
	}

	paths, err := filepath.Glob(filepath.Join(dir, "config-*"))
	if err != nil {
		return false, fmt.Errorf("glob: %w", err)
	}

	ok := true

	for _, path := range paths {
		base := filepath.Base(path)

		_, arch, _ := strings.Cut(base, ".")
		arch, _, _ = strings.Cut(arch, ".")

		valid, err := checkPath(path, "linux-"+flavor+"/"+base, arch, aport.Pkgver, details)
		if err != nil {
			return false, err
		}

		ok = ok && valid
	}

	return ok, nil
}

// ExtractArch returns the architecture the kernel config is for.
func ExtractArch(config string) (string, error) {
	for _, candidate := range []struct {
		option string
		arch   string
	}{
		{"ARM", "armv7"},
		{"ARM64", "aarch64"},
		{"X86_32", "x86"},
		{"X86_64", "x86_64"},
	} {
		if IsSet(config, candidate.option) {
			return candidate.arch, nil
		}
	}

	return "", ErrUnknownArch
}

var versionLine = regexp.MustCompile(`^# Linux/\S+ (\S+) Kernel Configuration`)

// ExtractVersion returns the kernel version from the comment header of the
// kernel config. It is expected on the third line.
func ExtractVersion(config string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(config))
	for range 3 {
		if !scanner.Scan() {
			return "", ErrVersionNotFound
		}
	}

	match := versionLine.FindStringSubmatch(scanner.Text())
	if match == nil {
		return "", ErrVersionNotFound
	}

	return match[1], nil
}

// CheckFile checks a kernel config file outside of pmaports. The arch and
// version are read from the file itself.
func CheckFile(path string, details bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read kernel config: %w", err)
	}

	config := string(data)

	arch, err := ExtractArch(config)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	kernelVersion, err := ExtractVersion(config)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Check kconfig",
		slog.String("arch", arch),
		slog.String("version", kernelVersion),
		slog.String("path", path),
	)

	return CheckConfig(config, path, arch, kernelVersion, details)
}
