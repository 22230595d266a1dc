// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePath is an absolute file path. It can be used as command line flag
// value.
type FilePath string

func (f *FilePath) String() string {
	return string(*f)
}

// Set implements [pflag.Value]. The given path is made absolute.
func (f *FilePath) Set(s string) error {
	path, err := AbsoluteFilePath(s)
	if err != nil {
		return err
	}

	*f = FilePath(path)

	return nil
}

// Type implements [pflag.Value].
func (*FilePath) Type() string {
	return "path"
}

// Check returns an error if the path does not exist or is not a regular file.
func (f FilePath) Check() error {
	stat, err := os.Stat(string(f))
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if !stat.Mode().IsRegular() {
		return ErrNotRegularFile
	}

	return nil
}

// AbsoluteFilePath returns the absolute path as resolved by [filepath.Abs]
// with a leading "~/" expanded to the user's home directory.
//
// It returns [ErrEmptyFilePath] if the given path is empty.
func AbsoluteFilePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyFilePath
	}

	path = ExpandHome(path)

	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	return path, nil
}

// ExpandHome replaces a leading "~" with the home directory of the user.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return home + strings.TrimPrefix(path, "~")
}
