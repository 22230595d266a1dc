// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apkbuild parses the relevant variables out of APKBUILD files, the
// build recipes of Alpine Linux packages.
//
// This is not a shell parser. It covers the assignments used in pmaports:
// single and multi line values, quoting, trailing comments and the common
// forms of variable references.
package apkbuild

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/version"
)

type attribute struct {
	name  string
	array bool
}

// packageAttributes are parsed for the main package and all subpackages.
var packageAttributes = []attribute{
	{"pkgdesc", false},
	{"depends", true},
	{"provides", true},
	{"_pmb_recommends", true},
}

// attributes are parsed in this order for each line of the APKBUILD.
var attributes = append(slices.Clone(packageAttributes), []attribute{
	{"arch", true},
	{"depends_dev", true},
	{"makedepends", true},
	{"checkdepends", true},
	{"options", true},
	{"pkgname", false},
	{"pkgrel", false},
	{"pkgver", false},
	{"subpackages", false},
	{"url", false},
	{"makedepends_build", true},
	{"makedepends_host", true},
	{"_flavor", false},
	{"_device", false},
	{"_kernver", false},
	{"_outdir", false},
	{"_llvmver", false},
	{"_pkgver", false},
	{"_pkgname", false},
	{"_commit", false},
	{"source", true},
}...)

// APKBUILD holds the parsed variables of an APKBUILD.
type APKBUILD struct {
	Path string `yaml:"-"`

	Pkgname          string   `yaml:"pkgname"`
	Pkgver           string   `yaml:"pkgver"`
	Pkgrel           string   `yaml:"pkgrel"`
	Pkgdesc          string   `yaml:"pkgdesc"`
	URL              string   `yaml:"url"`
	Arch             []string `yaml:"arch"`
	Depends          []string `yaml:"depends"`
	DependsDev       []string `yaml:"depends_dev"`
	Makedepends      []string `yaml:"makedepends"`
	MakedependsBuild []string `yaml:"makedepends_build"`
	MakedependsHost  []string `yaml:"makedepends_host"`
	Checkdepends     []string `yaml:"checkdepends"`
	Options          []string `yaml:"options"`
	Provides         []string `yaml:"provides"`
	Source           []string `yaml:"source"`

	// Subpackages maps the subpackage names to their attributes. The value
	// is nil if the subpackage function is not defined in the APKBUILD, like
	// for "-dev" packages that are split by abuild.
	Subpackages     map[string]*Subpackage `yaml:"subpackages"`
	SubpackageNames []string               `yaml:"-"`

	// Vars holds the raw values of all parsed variables after variable
	// replacement, including "_flavor" and friends.
	Vars map[string]string `yaml:"-"`
}

// Subpackage holds the attributes of a subpackage.
type Subpackage struct {
	Name       string   `yaml:"-"`
	Pkgdesc    string   `yaml:"pkgdesc"`
	Depends    []string `yaml:"depends"`
	Provides   []string `yaml:"provides"`
	Recommends []string `yaml:"_pmb_recommends,omitempty"`
}

// Options control the sanity checks of [Parse].
type Options struct {
	SkipPkgnameCheck bool
	SkipPkgverCheck  bool
}

// VersionString returns the full version "pkgver-rpkgrel".
func (a *APKBUILD) VersionString() string {
	return a.Pkgver + "-r" + a.Pkgrel
}

// Var returns the value of a parsed variable.
func (a *APKBUILD) Var(name string) string {
	return a.Vars[name]
}

// Recommends returns the packages listed in "_pmb_recommends", which are
// installed along with a UI package.
func (a *APKBUILD) Recommends() []string {
	return splitArray(a.Vars["_pmb_recommends"])
}

// AllSubpackageNames returns the names of the main package and all its
// subpackages.
func (a *APKBUILD) AllSubpackageNames() []string {
	return append([]string{a.Pkgname}, a.SubpackageNames...)
}

// ReadLines reads the APKBUILD at the given path and returns its lines.
//
// It returns [ErrCRLF] if the file has Windows or old Mac line endings.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read APKBUILD: %w", err)
	}

	if bytes.ContainsRune(data, '\r') {
		return nil, &ParseError{Path: path, Err: ErrCRLF}
	}

	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), nil
}

// ParseAttribute parses the attribute from the line at index i. Values may
// span multiple lines if quoted and may have a trailing comment after the
// closing quote.
//
// It returns if the attribute was found in the line, its value and the index
// of the last line that was part of the value.
func ParseAttribute(attr string, lines []string, i int, path string) (bool, string, int, error) {
	value, found := strings.CutPrefix(lines[i], attr+"=")
	if !found {
		return false, "", i, nil
	}

	var endChar string

	for _, char := range []string{"'", `"`} {
		if strings.HasPrefix(value, char) {
			endChar = char
			value = value[1:]

			break
		}
	}

	if endChar == "" {
		return true, value, i, nil
	}

	if before, _, found := strings.Cut(value, endChar); found {
		return true, before, i, nil
	}

	start := i

	for i++; i < len(lines); i++ {
		value += " "

		if before, _, found := strings.Cut(lines[i], endChar); found {
			value += strings.TrimSpace(before)
			return true, strings.TrimSpace(value), i, nil
		}

		value += strings.TrimSpace(lines[i])
	}

	return false, "", start, &ParseError{
		Path: path,
		Line: start + 1,
		Err:  fmt.Errorf("%w (%s) for attribute %s", ErrMissingClosingQuote, endChar, attr),
	}
}

// parseAttributes parses the given attributes from the lines into vars.
// Only variables assigned before a reference are resolved, so vars must not
// hold defaults for variables not assigned yet.
func parseAttributes(path string, lines []string, attrs []attribute, vars map[string]string) error {
	for i := 0; i < len(lines); i++ {
		for _, attr := range attrs {
			found, value, end, err := ParseAttribute(attr.name, lines, i, path)
			if err != nil {
				return err
			}

			if !found {
				continue
			}

			vars[attr.name] = ReplaceVariables(value, vars)
			i = end

			break
		}
	}

	return nil
}

func splitArray(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}

	return fields
}

// Parse parses the APKBUILD at the given path.
func Parse(path string, opts Options) (*APKBUILD, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string, len(attributes))

	err = parseAttributes(path, lines, attributes, vars)
	if err != nil {
		return nil, err
	}

	apkbuild := &APKBUILD{
		Path:             path,
		Pkgname:          vars["pkgname"],
		Pkgver:           vars["pkgver"],
		Pkgrel:           vars["pkgrel"],
		Pkgdesc:          vars["pkgdesc"],
		URL:              vars["url"],
		Arch:             splitArray(vars["arch"]),
		Depends:          splitArray(vars["depends"]),
		DependsDev:       splitArray(vars["depends_dev"]),
		Makedepends:      splitArray(vars["makedepends"]),
		MakedependsBuild: splitArray(vars["makedepends_build"]),
		MakedependsHost:  splitArray(vars["makedepends_host"]),
		Checkdepends:     splitArray(vars["checkdepends"]),
		Options:          splitArray(vars["options"]),
		Provides:         splitArray(vars["provides"]),
		Source:           splitArray(vars["source"]),
		Subpackages:      map[string]*Subpackage{},
		Vars:             vars,
	}

	for _, subpkg := range strings.Fields(vars["subpackages"]) {
		name, sub, err := parseSubpackage(path, lines, vars, subpkg)
		if err != nil {
			return nil, err
		}

		if _, exists := apkbuild.Subpackages[name]; !exists {
			apkbuild.SubpackageNames = append(apkbuild.SubpackageNames, name)
		}

		apkbuild.Subpackages[name] = sub
	}

	for _, attr := range attributes {
		if _, exists := vars[attr.name]; !exists {
			vars[attr.name] = ""
		}
	}

	err = check(apkbuild, opts)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return apkbuild, nil
}

func check(apkbuild *APKBUILD, opts Options) error {
	if !opts.SkipPkgnameCheck {
		abs, err := filepath.Abs(apkbuild.Path)
		if err != nil {
			return fmt.Errorf("absolute path: %w", err)
		}

		if filepath.Base(filepath.Dir(abs)) != apkbuild.Pkgname {
			return fmt.Errorf("%w: folder %s, pkgname %s",
				ErrPkgnameMismatch, filepath.Dir(apkbuild.Path), apkbuild.Pkgname)
		}
	}

	if len(apkbuild.Arch) == 0 {
		return ErrEmptyArch
	}

	if !opts.SkipPkgverCheck {
		if strings.Contains(apkbuild.Pkgver, "-r") || !version.Validate(apkbuild.Pkgver) {
			slog.Info("Valid pkgvers are described here: " +
				"https://wiki.alpinelinux.org/wiki/APKBUILD_Reference#pkgver")

			return fmt.Errorf("%w: %q", ErrInvalidPkgver, apkbuild.Pkgver)
		}
	}

	return nil
}

// parseSubpackage parses the attributes of a subpackage from its function.
//
// The entry in the subpackages variable is "name" or "name:function". The
// function defaults to the part of the name after the last dash.
func parseSubpackage(
	path string,
	lines []string,
	parentVars map[string]string,
	entry string,
) (string, *Subpackage, error) {
	name, function, hasFunction := strings.Cut(entry, ":")
	if !hasFunction {
		function = name[strings.LastIndex(name, "-")+1:]
	}

	body, err := functionBody(path, lines, function)
	if err != nil {
		if errors.Is(err, ErrFunctionNotFound) {
			return name, nil, nil
		}

		return "", nil, err
	}

	for idx := range body {
		body[idx] = strings.TrimSpace(body[idx])
	}

	vars := maps.Clone(parentVars)

	vars["subpkgname"] = name
	delete(vars, "_pmb_recommends")

	err = parseAttributes(path, body, packageAttributes, vars)
	if err != nil {
		return "", nil, err
	}

	return name, &Subpackage{
		Name:       name,
		Pkgdesc:    vars["pkgdesc"],
		Depends:    splitArray(vars["depends"]),
		Provides:   splitArray(vars["provides"]),
		Recommends: splitArray(vars["_pmb_recommends"]),
	}, nil
}
