// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild

import (
	"fmt"
	"strings"
)

// functionBody returns the lines between "name() {" and the next line
// starting with "}".
func functionBody(path string, lines []string, name string) ([]string, error) {
	prefix := name + "() {"

	start := -1

	for idx, line := range lines {
		switch {
		case start < 0 && strings.HasPrefix(line, prefix):
			start = idx + 1
		case start >= 0 && strings.HasPrefix(line, "}"):
			return append([]string(nil), lines[start:idx]...), nil
		}
	}

	if start < 0 {
		return nil, fmt.Errorf("%w: no line starts with '%s' in %s",
			ErrFunctionNotFound, prefix, path)
	}

	return nil, &ParseError{
		Path: path,
		Line: start,
		Err:  fmt.Errorf("%w %s: no line starts with '}'", ErrFunctionEnd, name),
	}
}

// FunctionBody returns the body of the shell function with the given name in
// the APKBUILD at the given path.
func FunctionBody(path, name string) ([]string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}

	return functionBody(path, lines, name)
}

// SubpackageDescription returns the pkgdesc of the subpackage defined by the
// given function. It must be indented with a tab and double quoted.
func SubpackageDescription(path, function string) (string, error) {
	body, err := FunctionBody(path, function)
	if err != nil {
		return "", err
	}

	const prefix = "\tpkgdesc=\""

	for _, line := range body {
		if desc, found := strings.CutPrefix(line, prefix); found {
			return strings.TrimSuffix(desc, `"`), nil
		}
	}

	return "", fmt.Errorf("%w of subpackage function %s "+
		"(spaces used instead of tabs?) in %s", ErrPkgdescNotFound, function, path)
}
