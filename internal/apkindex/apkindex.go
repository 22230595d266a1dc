// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apkindex reads APKINDEX files of apk repositories.
package apkindex

import (
	"archive/tar"
	"bufio"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/z3ntu/pmbootstrap/internal/sys"
	"github.com/z3ntu/pmbootstrap/internal/version"
)

var (
	// ErrNoIndex is returned if an archive contains no APKINDEX file.
	ErrNoIndex = errors.New("no APKINDEX in archive")

	// ErrInvalidLine is returned if a line of an APKINDEX is malformed.
	ErrInvalidLine = errors.New("invalid APKINDEX line")

	// ErrInvalidRepo is returned for unknown Alpine repository names.
	ErrInvalidRepo = errors.New("invalid Alpine repository")

	// ErrPackageNotFound is returned if no package provides a name.
	ErrPackageNotFound = errors.New("package not found in APKINDEX")
)

// AlpineRepos are the repositories of Alpine Linux.
var AlpineRepos = []string{"main", "community", "testing"}

// Package is a single block of an APKINDEX.
type Package struct {
	Pkgname   string   `yaml:"pkgname"`
	Version   string   `yaml:"version"`
	Arch      string   `yaml:"arch"`
	Depends   []string `yaml:"depends"`
	Provides  []string `yaml:"provides"`
	Origin    string   `yaml:"origin"`
	Timestamp int64    `yaml:"timestamp"`
}

func (p *Package) set(key byte, value string) error {
	switch key {
	case 'P':
		p.Pkgname = value
	case 'V':
		p.Version = value
	case 'A':
		p.Arch = value
	case 'D':
		p.Depends = strings.Fields(value)
	case 'p':
		p.Provides = strings.Fields(value)
	case 'o':
		p.Origin = value
	case 't':
		timestamp, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}

		p.Timestamp = timestamp
	}

	return nil
}

// providedNames returns the names the package can be installed by,
// including its own.
func (p *Package) providedNames() []string {
	names := []string{p.Pkgname}

	for _, provide := range p.Provides {
		name, _, _ := strings.Cut(provide, "=")
		names = append(names, name)
	}

	return names
}

// Parse reads the packages of a plain APKINDEX. Blocks are separated by
// blank lines and consist of "<key>:<value>" lines.
func Parse(r io.Reader) ([]Package, error) {
	var (
		pkgs    []Package
		current Package
		inBlock bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		if line == "" {
			if inBlock {
				pkgs = append(pkgs, current)
				current = Package{}
				inBlock = false
			}

			continue
		}

		if len(line) < 2 || line[1] != ':' {
			return nil, fmt.Errorf("%w %d: %q", ErrInvalidLine, lineNum, line)
		}

		err := current.set(line[0], line[2:])
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrInvalidLine, lineNum, err)
		}

		inBlock = true
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read APKINDEX: %w", err)
	}

	if inBlock {
		pkgs = append(pkgs, current)
	}

	return pkgs, nil
}

// ParseArchive reads the APKINDEX file of an APKINDEX.tar.gz archive.
func ParseArchive(path string) ([]Package, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrNoIndex, path)
		}

		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}

		if header.Name == "APKINDEX" {
			return Parse(tarReader)
		}
	}
}

// Index provides lookups over the packages of one or more APKINDEX files.
type Index struct {
	providers map[string][]Package
}

// NewIndex creates an index of the given packages.
func NewIndex(pkgs ...[]Package) *Index {
	index := &Index{providers: make(map[string][]Package)}

	for _, list := range pkgs {
		for _, pkg := range list {
			for _, name := range pkg.providedNames() {
				index.providers[name] = append(index.providers[name], pkg)
			}
		}
	}

	return index
}

// Providers returns all packages providing the given name.
func (i *Index) Providers(name string) []Package {
	return i.providers[name]
}

// Package returns the package with the highest version that provides the
// given name. Packages that are named like the requested name are preferred
// over other providers.
func (i *Index) Package(name string) (Package, error) {
	providers := i.providers[name]
	if len(providers) == 0 {
		return Package{}, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}

	best := slices.MaxFunc(providers, func(a, b Package) int {
		aExact, bExact := a.Pkgname == name, b.Pkgname == name
		if aExact != bExact {
			if aExact {
				return 1
			}

			return -1
		}

		return version.Compare(a.Version, b.Version)
	})

	return best, nil
}

// RepoHash returns the hash apk uses for the cache file name of the
// repository with the given URL.
func RepoHash(url string) string {
	sum := sha1.Sum([]byte(url)) //nolint:gosec

	return hex.EncodeToString(sum[:4])
}

// CachePath returns the path of the cached APKINDEX of the repository URL.
func CachePath(work string, arch sys.Arch, url string) string {
	return filepath.Join(work, "cache_apk_"+arch.String(), "APKINDEX."+RepoHash(url)+".tar.gz")
}

// AlpineURL returns the URL of an Alpine repository.
func AlpineURL(mirror, channelDir, repo string) (string, error) {
	if !slices.Contains(AlpineRepos, repo) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRepo, repo)
	}

	return strings.TrimSuffix(mirror, "/") + "/" + channelDir + "/" + repo, nil
}

// AlpineIndexPath returns the path of the cached APKINDEX of an Alpine
// repository.
func AlpineIndexPath(work, mirror, channelDir, repo string, arch sys.Arch) (string, error) {
	url, err := AlpineURL(mirror, channelDir, repo)
	if err != nil {
		return "", err
	}

	return CachePath(work, arch, url), nil
}
