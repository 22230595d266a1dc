// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pmaports

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const uiPrefix = "postmarketos-ui-"

// UI is a user interface that can be installed.
type UI struct {
	Name        string
	Description string
}

// ListUIs returns all UIs available for the given architecture. The first
// entry is always "none".
func (t *Tree) ListUIs(arch sys.Arch) ([]UI, error) {
	uis := []UI{{"none", "No graphical environment"}}

	matches, err := filepath.Glob(filepath.Join(t.Dir, "main", uiPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	for _, dir := range matches {
		parsed, err := t.Parse(filepath.Join(dir, "APKBUILD"))
		if err != nil {
			return nil, err
		}

		if !CheckArch(parsed.Arch, arch) {
			continue
		}

		uis = append(uis, UI{
			Name:        strings.TrimPrefix(filepath.Base(dir), uiPrefix),
			Description: parsed.Pkgdesc,
		})
	}

	return uis, nil
}

// UIHasExtras returns if the UI package has an "-extras" subpackage.
func (t *Tree) UIHasExtras(ui string) (bool, error) {
	parsed, err := t.Parse(filepath.Join(t.Dir, "main", uiPrefix+ui, "APKBUILD"))
	if err != nil {
		return false, err
	}

	_, exists := parsed.Subpackages[uiPrefix+ui+"-extras"]

	return exists, nil
}
