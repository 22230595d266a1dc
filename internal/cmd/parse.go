// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/apkindex"
	"github.com/z3ntu/pmbootstrap/internal/bootimg"
	"github.com/z3ntu/pmbootstrap/internal/flasher"
	"github.com/z3ntu/pmbootstrap/internal/kconfig"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const yamlIndent = 2

func dumpYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(yamlIndent)

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return encoder.Close() //nolint:wrapcheck
}

// parseAPKBUILDs parses the APKBUILDs of the given packages, or all of the
// tree if none are given.
func parseAPKBUILDs(tree *pmaports.Tree, pkgnames []string) (map[string]*apkbuild.APKBUILD, error) {
	result := map[string]*apkbuild.APKBUILD{}

	if len(pkgnames) > 0 {
		for _, pkgname := range pkgnames {
			parsed, err := tree.Get(pkgname)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}

			result[pkgname] = parsed
		}

		return result, nil
	}

	paths, err := tree.APKBUILDPaths()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	for _, path := range paths {
		parsed, err := tree.Parse(path)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		result[parsed.Pkgname] = parsed
	}

	return result, nil
}

func newAPKBUILDParseCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apkbuild_parse [package...]",
		Short: "parse APKBUILDs and print the result as YAML (default: all)",
	}

	cmd.RunE = a.action(checkPmaports, func(_ *cobra.Command, args []string) error {
		parsed, err := parseAPKBUILDs(a.tree(), args)
		if err != nil {
			return err
		}

		return dumpYAML(a.io.Stdout, parsed)
	})

	return cmd
}

func newAPKINDEXParseCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apkindex_parse path [package]",
		Short: "parse an APKINDEX.tar.gz and print the result as YAML",
		Args:  usageArgs(cobra.RangeArgs(1, 2)), //nolint:mnd
	}

	cmd.RunE = a.action(checkHost, func(_ *cobra.Command, args []string) error {
		pkgs, err := apkindex.ParseArchive(args[0])
		if err != nil {
			return err //nolint:wrapcheck
		}

		if len(args) == 1 {
			return dumpYAML(a.io.Stdout, pkgs)
		}

		pkg, err := apkindex.NewIndex(pkgs).Package(args[1])
		if err != nil {
			return err //nolint:wrapcheck
		}

		return dumpYAML(a.io.Stdout, pkg)
	})

	return cmd
}

// writeBootimgDeviceinfo prints the values of the boot image as deviceinfo
// lines.
func writeBootimgDeviceinfo(w io.Writer, img *bootimg.BootImage) {
	for _, line := range []struct {
		key   string
		value string
	}{
		{"flash_pagesize", img.Pagesize},
		{"flash_offset_base", img.Base},
		{"flash_offset_kernel", img.KernelOffset},
		{"flash_offset_ramdisk", img.RamdiskOffset},
		{"flash_offset_second", img.SecondOffset},
		{"flash_offset_tags", img.TagsOffset},
		{"bootimg_qcdt", strconv.FormatBool(img.QCDT)},
		{"bootimg_dtb_second", strconv.FormatBool(img.DTBSecond)},
		{"kernel_cmdline", img.Cmdline},
	} {
		fmt.Fprintf(w, "deviceinfo_%s=%q\n", line.key, line.value)
	}
}

func newBootimgAnalyzeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootimg_analyze path",
		Short: "extract deviceinfo variables from a boot.img",
		Args:  usageArgs(cobra.ExactArgs(1)),
	}

	cmd.RunE = a.action(checkHost, func(_ *cobra.Command, args []string) error {
		path := sys.FilePath(args[0])

		err := path.Check()
		if err != nil {
			return fmt.Errorf("boot image: %w", err)
		}

		img, err := bootimg.Analyze(string(path))
		if err != nil {
			return err //nolint:wrapcheck
		}

		writeBootimgDeviceinfo(a.io.Stdout, img)

		return nil
	})

	return cmd
}

func newKconfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kconfig",
		Short: "change or check kernel configs",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			return &ParseArgsError{msg: "missing kconfig action"}
		},
	}

	var (
		file    sys.FilePath
		details bool
	)

	check := &cobra.Command{
		Use:   "check [package...]",
		Short: "check kernel aport config (default: all kernels)",
	}

	check.Flags().Var(&file, "file", "check a kernel config file outside of pmaports")
	check.Flags().BoolVar(&details, "details", false,
		"print all missing and wrong options")

	check.RunE = a.action(checkPmaports, func(_ *cobra.Command, args []string) error {
		if file != "" {
			ok, err := kconfig.CheckFile(string(file), details)
			return kconfigResult(ok, err)
		}

		if len(args) == 0 {
			kernels, err := filepath.Glob(filepath.Join(a.cfg.AportsDir(), "*", "linux-*"))
			if err != nil {
				return fmt.Errorf("glob kernels: %w", err)
			}

			for _, kernel := range kernels {
				args = append(args, filepath.Base(kernel))
			}
		}

		allOK := true

		for _, pkgname := range args {
			ok, err := kconfig.Check(a.tree(), pkgname, details)
			if err != nil {
				return err //nolint:wrapcheck
			}

			allOK = allOK && ok
		}

		return kconfigResult(allOK, nil)
	})

	cmd.AddCommand(check)

	return cmd
}

func kconfigResult(ok bool, err error) error {
	if err != nil {
		return err
	}

	if !ok {
		return flasher.ErrKconfigCheck
	}

	return nil
}
