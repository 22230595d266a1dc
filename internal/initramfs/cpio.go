// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/cpio"
)

// Entry is a file in a CPIO archive.
type Entry struct {
	Name     string
	Mode     fs.FileMode
	Size     int64
	Linkname string
}

// String returns the entry formatted like a line of "ls -l".
func (e Entry) String() string {
	line := fmt.Sprintf("%s %10d %s", e.Mode, e.Size, e.Name)
	if e.Linkname != "" {
		line += " -> " + e.Linkname
	}

	return line
}

// List reads the entries of the uncompressed CPIO archive until its trailer.
func List(r io.Reader) ([]Entry, error) {
	reader := cpio.NewReader(r)

	var entries []Entry

	for {
		hdr, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}

		entries = append(entries, Entry{
			Name:     strings.TrimPrefix(hdr.Name, "./"),
			Mode:     hdr.FileInfo().Mode(),
			Size:     hdr.Size,
			Linkname: hdr.Linkname,
		})
	}

	return entries, nil
}

// Path returns the path of the initramfs of the flavor in the rootfs folder.
// With extra, the path of the initramfs with additional files is returned.
func Path(rootfs, flavor string, extra bool) string {
	name := "initramfs-" + flavor
	if extra {
		name += "-extra"
	}

	return filepath.Join(rootfs, "boot", name)
}

// Read decompresses the initramfs at path and returns its entries.
func Read(path string) ([]Entry, Compression, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, "", fmt.Errorf("open initramfs: %w", err)
	}
	defer file.Close()

	reader, compression, err := Decompress(file)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	defer reader.Close()

	entries, err := List(reader)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}

	return entries, compression, nil
}
