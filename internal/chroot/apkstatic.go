// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/z3ntu/pmbootstrap/internal/apkindex"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/version"
)

const (
	apkStaticName   = "sbin/apk.static"
	apkStaticSigTag = apkStaticName + ".SIGN.RSA."
)

// ExtractedApkStatic is the content of the apk-tools-static package that is
// needed to verify the binary.
type ExtractedApkStatic struct {
	Binary    string
	Signature string
	// Key is the file name of the public key the binary was signed with.
	Key string
}

// ExtractApkStatic extracts apk.static and its signature from the
// apk-tools-static package into dir.
//
// An .apk file consists of concatenated gzip streams of tar segments, so it
// reads as a single tar archive.
func ExtractApkStatic(apk, dir string) (ExtractedApkStatic, error) {
	var extracted ExtractedApkStatic

	file, err := os.Open(apk)
	if err != nil {
		return extracted, fmt.Errorf("open package: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return extracted, fmt.Errorf("%w: %w", ErrApkStaticInvalid, err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	for {
		hdr, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return extracted, fmt.Errorf("%w: %w", ErrApkStaticInvalid, err)
		}

		var target *string

		switch {
		case hdr.Name == apkStaticName:
			target = &extracted.Binary
		case strings.HasPrefix(hdr.Name, apkStaticSigTag):
			target = &extracted.Signature
			extracted.Key = strings.TrimPrefix(hdr.Name, apkStaticSigTag)
		default:
			continue
		}

		*target = filepath.Join(dir, filepath.Base(hdr.Name))

		err = writeFile(*target, tarReader, 0o755)
		if err != nil {
			return extracted, err
		}
	}

	if extracted.Binary == "" || extracted.Signature == "" {
		return extracted, fmt.Errorf("%w: binary or signature missing in %s",
			ErrApkStaticInvalid, apk)
	}

	return extracted, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	_, err = io.Copy(file, r)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return file.Close()
}

// ApkStaticPath returns the location of the apk.static binary.
func (m *Manager) ApkStaticPath() string {
	return filepath.Join(m.Work, "apk.static")
}

// ApkStatic ensures that a verified apk.static of at least
// [config.ApkToolsStaticMinVersion] exists in the work folder.
func (m *Manager) ApkStatic(ctx context.Context) error {
	if exists(m.ApkStaticPath()) {
		return nil
	}

	arch := m.nativeArch()

	repoURL, err := apkindex.AlpineURL(m.MirrorAlpine, m.Channel.MirrordirAlpine, "main")
	if err != nil {
		return err
	}

	indexPath, err := m.updateIndex(ctx, arch, repoURL, true)
	if err != nil {
		return err
	}

	pkgs, err := apkindex.ParseArchive(indexPath)
	if err != nil {
		return err
	}

	pkg, err := apkindex.NewIndex(pkgs).Package("apk-tools-static")
	if err != nil {
		return err
	}

	if version.Compare(pkg.Version, config.ApkToolsStaticMinVersion) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrApkStaticTooOld, pkg.Version,
			config.ApkToolsStaticMinVersion)
	}

	url := repoURL + "/" + arch.String() + "/apk-tools-static-" + pkg.Version + ".apk"

	apk, err := m.HTTP.Download(ctx, url, "apk-tools-static-"+pkg.Version, true, false)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(m.Work, "apk-static-")
	if err != nil {
		return fmt.Errorf("create temp folder: %w", err)
	}
	defer os.RemoveAll(tmp)

	extracted, err := ExtractApkStatic(apk, tmp)
	if err != nil {
		return err
	}

	err = m.verifyApkStatic(ctx, extracted, pkg.Version)
	if err != nil {
		return err
	}

	err = os.Rename(extracted.Binary, m.ApkStaticPath())
	if err != nil {
		return fmt.Errorf("install apk.static: %w", err)
	}

	return nil
}

func (m *Manager) verifyApkStatic(ctx context.Context, extracted ExtractedApkStatic, pkgVersion string) error {
	key := filepath.Join(m.keysDir(), extracted.Key)
	if !exists(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, extracted.Key)
	}

	slog.Debug("Verify apk.static signature", slog.String("key", extracted.Key))

	_, err := run.User(ctx, m.Runner, run.Cmd{
		Args: []string{
			"openssl", "dgst", "-sha1",
			"-verify", key,
			"-signature", extracted.Signature,
			extracted.Binary,
		},
	})
	if err != nil {
		return fmt.Errorf("verify apk.static signature: %w", err)
	}

	// apk-tools 2.14.4, compiled for x86_64.
	output, err := run.OutputOf(ctx, m.Runner, extracted.Binary, "--version")
	if err != nil {
		return fmt.Errorf("run apk.static: %w", err)
	}

	fields := strings.Fields(output)
	if len(fields) < 2 { //nolint:mnd
		return fmt.Errorf("%w: unexpected version output %q", ErrApkStaticInvalid, output)
	}

	binVersion := strings.TrimSuffix(fields[1], ",")
	pkgBase, _, _ := strings.Cut(pkgVersion, "-r")

	if binVersion != pkgBase {
		return fmt.Errorf("%w: binary version %s does not match package version %s",
			ErrApkStaticInvalid, binVersion, pkgVersion)
	}

	return nil
}

// RunApkStatic runs apk.static as root on the host.
func (m *Manager) RunApkStatic(ctx context.Context, args ...string) error {
	err := m.ApkStatic(ctx)
	if err != nil {
		return err
	}

	_, err = run.Root(ctx, m.Runner, run.Cmd{
		Args: append([]string{m.ApkStaticPath(), "--no-progress"}, args...),
	})
	if err != nil {
		return fmt.Errorf("apk.static: %w", err)
	}

	return nil
}
