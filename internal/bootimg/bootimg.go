// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bootimg reads the header of Android boot images, so the flash
// offsets can be put into a deviceinfo.
package bootimg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrFileNotFound is returned if the boot image does not exist.
	ErrFileNotFound = errors.New("could not find file")

	// ErrKernelImage is returned if the file is a bare kernel instead of an
	// Android boot image.
	ErrKernelImage = errors.New("file is a kernel image, you might need the " +
		"'heimdall-isorec' flash method, see also: " +
		"<https://wiki.postmarketos.org/wiki/Deviceinfo_flash_methods>")

	// ErrNotBootImage is returned if the file is no Android boot image.
	ErrNotBootImage = errors.New("file is not an Android boot.img")
)

// Magic is the start of every Android boot image.
const Magic = "ANDROID!"

// DefaultKernelOffset is the offset of the kernel load address from the base
// address, as used by unpackbootimg.
const DefaultKernelOffset = 0x00008000

var dtbMagic = []byte{0xd0, 0x0d, 0xfe, 0xed}

// Header is the common header of boot image versions 0 to 2. For images
// with a QCDT device tree, HeaderVersion holds the size of the device tree
// image instead.
type Header struct {
	Magic         [8]byte
	KernelSize    uint32
	KernelAddr    uint32
	RamdiskSize   uint32
	RamdiskAddr   uint32
	SecondSize    uint32
	SecondAddr    uint32
	TagsAddr      uint32
	PageSize      uint32
	HeaderVersion uint32
	OSVersion     uint32
	Name          [16]byte
	Cmdline       [512]byte
	ID            [32]byte
	ExtraCmdline  [1024]byte
}

// BootImage holds the values of a boot image as used in deviceinfo files.
type BootImage struct {
	Base          string `yaml:"base"`
	KernelOffset  string `yaml:"kernel_offset"`
	RamdiskOffset string `yaml:"ramdisk_offset"`
	SecondOffset  string `yaml:"second_offset"`
	TagsOffset    string `yaml:"tags_offset"`
	Pagesize      string `yaml:"pagesize"`
	Cmdline       string `yaml:"cmdline"`
	QCDT          bool   `yaml:"qcdt"`
	DTBSecond     bool   `yaml:"dtb_second"`
}

func hex32(value uint32) string {
	return fmt.Sprintf("0x%08x", value)
}

func cString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}

	return string(b)
}

// kernelMagics are checked if the file is not a boot image to give a better
// hint.
var kernelMagics = []struct {
	offset int64
	magic  []byte
}{
	// ARM zImage
	{0x24, []byte{0x18, 0x28, 0x6f, 0x01}},
	// ARM64 Image
	{0x38, []byte("ARM\x64")},
	// x86 bzImage
	{0x202, []byte("HdrS")},
}

func isKernelImage(r io.ReaderAt) bool {
	for _, kernel := range kernelMagics {
		buf := make([]byte, len(kernel.magic))

		_, err := r.ReadAt(buf, kernel.offset)
		if err == nil && bytes.Equal(buf, kernel.magic) {
			return true
		}
	}

	return false
}

func pages(size, pageSize uint32) int64 {
	return int64((size + pageSize - 1) / pageSize)
}

// Read parses the boot image from r.
func Read(r io.ReaderAt) (*BootImage, error) {
	var header Header

	err := binary.Read(io.NewSectionReader(r, 0, int64(binary.Size(header))),
		binary.LittleEndian, &header)
	if err != nil || string(header.Magic[:]) != Magic {
		if isKernelImage(r) {
			return nil, ErrKernelImage
		}

		return nil, ErrNotBootImage
	}

	if header.PageSize == 0 {
		return nil, fmt.Errorf("%w: page size is 0", ErrNotBootImage)
	}

	base := header.KernelAddr - DefaultKernelOffset
	img := &BootImage{
		Base:          hex32(base),
		KernelOffset:  hex32(header.KernelAddr - base),
		RamdiskOffset: hex32(header.RamdiskAddr - base),
		SecondOffset:  hex32(header.SecondAddr - base),
		TagsOffset:    hex32(header.TagsAddr - base),
		Pagesize:      fmt.Sprint(header.PageSize),
		Cmdline:       cString(header.Cmdline[:]) + cString(header.ExtraCmdline[:]),
		// Header versions are small numbers, a QCDT size is at least one page.
		QCDT: header.HeaderVersion > 2,
	}

	if header.SecondSize >= uint32(len(dtbMagic)) {
		offset := (1 + pages(header.KernelSize, header.PageSize) +
			pages(header.RamdiskSize, header.PageSize)) * int64(header.PageSize)

		buf := make([]byte, len(dtbMagic))

		_, err := r.ReadAt(buf, offset)
		if err == nil {
			img.DTBSecond = bytes.Equal(buf, dtbMagic)
		}
	}

	return img, nil
}

// Analyze parses the boot image at the given path.
func Analyze(path string) (*BootImage, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w '%s'", ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("open boot image: %w", err)
	}
	defer file.Close()

	img, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return img, nil
}
