// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipe

import (
	"bufio"
	"fmt"
	"io"
)

// CopyFunc defines a function that reads the data from the given reader into
// the given writer.
//
// It may copy the data as is, like [io.Copy], or mutate or filter it as needed.
type CopyFunc func(dst io.Writer, src io.Reader) (int64, error)

var _ CopyFunc = io.Copy

var _ CopyFunc = CopyLines

// CopyLines is a [CopyFunc] that copies the data line buffered. A missing
// trailing newline of the last line is added.
//
// Line buffering keeps output of concurrently written pipes from interleaving
// in the middle of a line when they share a writer.
func CopyLines(dst io.Writer, src io.Reader) (int64, error) {
	var written int64

	reader := bufio.NewReader(src)

	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				line += "\n"
			}

			n, err := io.WriteString(dst, line)

			written += int64(n)

			if err != nil {
				return written, fmt.Errorf("write: %w", err)
			}
		}

		if readErr == io.EOF {
			return written, nil
		}

		if readErr != nil {
			return written, fmt.Errorf("read: %w", readErr)
		}
	}
}
