// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the compression format of an initramfs.
type Compression string

// Supported compression formats.
const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var magics = []struct {
	magic       []byte
	compression Compression
}{
	{[]byte{0x1f, 0x8b}, CompressionGzip},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, CompressionZstd},
	// Frame format.
	{[]byte{0x04, 0x22, 0x4d, 0x18}, CompressionLZ4},
	// Legacy format, as written by "lz4 -l" for the kernel.
	{[]byte{0x02, 0x21, 0x4c, 0x18}, CompressionLZ4},
	{[]byte("070701"), CompressionNone},
	{[]byte("070702"), CompressionNone},
}

// Detect returns the compression of the data with the given leading bytes.
func Detect(header []byte) (Compression, error) {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.magic) {
			return m.compression, nil
		}
	}

	return "", fmt.Errorf("%w: magic % x", ErrUnknownCompression, header)
}

// Decompress returns a reader of the uncompressed CPIO archive. The caller
// must close it.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	buffered := bufio.NewReader(r)

	// Short archives are detected with what is available.
	header, _ := buffered.Peek(6) //nolint:mnd

	compression, err := Detect(header)
	if err != nil {
		return nil, "", err
	}

	switch compression {
	case CompressionGzip:
		reader, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, "", fmt.Errorf("gzip: %w", err)
		}

		return reader, compression, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, "", fmt.Errorf("zstd: %w", err)
		}

		return decoder.IOReadCloser(), compression, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(buffered)), compression, nil
	default:
		return io.NopCloser(buffered), compression, nil
	}
}
