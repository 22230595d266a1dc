// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Work folder state is kept separate from the user config, because the user
// config is not tied to a specific work folder.
const (
	workdirFile        = "workdir.cfg"
	workVersionFile    = "version"
	chrootDatesSection = "chroot-init-dates"
)

func readWorkdirConfig(work string) (*INI, error) {
	ini, err := ReadINI(filepath.Join(work, workdirFile))
	if err != nil {
		return nil, fmt.Errorf("read workdir config: %w", err)
	}

	return ini, nil
}

// SaveChrootDate saves the initialization date of the chroot with the given
// suffix in the work folder state.
func SaveChrootDate(work, suffix string, now time.Time) error {
	ini, err := readWorkdirConfig(work)
	if errors.Is(err, fs.ErrNotExist) {
		ini = &INI{}
	} else if err != nil {
		return err
	}

	ini.EnsureSection(chrootDatesSection).
		Set(suffix, strconv.FormatInt(now.Unix(), 10))

	return ini.WriteFile(filepath.Join(work, workdirFile))
}

// ChrootsOutdated returns if any chroot was initialized at or before maxAge
// ago. A missing state file means no chroot is outdated.
func ChrootsOutdated(work string, now time.Time, maxAge time.Duration) (bool, error) {
	ini, err := readWorkdirConfig(work)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	dates, exists := ini.Section(chrootDatesSection)
	if !exists {
		return false, nil
	}

	outdated := now.Add(-maxAge).Unix()

	for _, suffix := range dates.Keys() {
		value, _ := dates.Get(suffix)

		date, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false, fmt.Errorf("%w: init date of %s: %q",
				ErrInvalidValue, suffix, value)
		}

		if date <= outdated {
			return true, nil
		}
	}

	return false, nil
}

// CleanWorkdir removes entries of chroots that do not exist anymore from the
// work folder state. It returns if the state file was changed.
func CleanWorkdir(work string) (bool, error) {
	ini, err := readWorkdirConfig(work)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	dates, exists := ini.Section(chrootDatesSection)
	if !exists {
		return false, nil
	}

	changed := false

	for _, suffix := range dates.Keys() {
		_, err := os.Stat(filepath.Join(work, "chroot_"+suffix))
		if err == nil {
			continue
		}

		dates.Delete(suffix)

		changed = true
	}

	if !changed {
		return false, nil
	}

	err = ini.WriteFile(filepath.Join(work, workdirFile))
	if err != nil {
		return false, err
	}

	return true, nil
}

// WriteWorkVersion writes the current [WorkVersion] into the work folder.
func WriteWorkVersion(work string) error {
	path := filepath.Join(work, workVersionFile)

	err := os.WriteFile(path, []byte(strconv.Itoa(WorkVersion)+"\n"), 0o644) //nolint:gosec,mnd
	if err != nil {
		return fmt.Errorf("write work version: %w", err)
	}

	return nil
}

// ReadWorkVersion returns the format version of the work folder.
func ReadWorkVersion(work string) (int, error) {
	data, err := os.ReadFile(filepath.Join(work, workVersionFile))
	if err != nil {
		return 0, fmt.Errorf("read work version: %w", err)
	}

	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: work version: %w", ErrInvalidValue, err)
	}

	return version, nil
}

// WorkVersionCheck returns an error if the work folder has a different format
// version than [WorkVersion]. A work folder without version file is created
// by this version.
func WorkVersionCheck(work string) error {
	version, err := ReadWorkVersion(work)
	if errors.Is(err, fs.ErrNotExist) {
		err := os.MkdirAll(work, 0o700) //nolint:mnd
		if err != nil {
			return fmt.Errorf("create work folder: %w", err)
		}

		return WriteWorkVersion(work)
	} else if err != nil {
		return err
	}

	if version != WorkVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d, "+
			"run 'pmbootstrap work_migrate' or 'pmbootstrap init'",
			ErrWorkVersion, work, version, WorkVersion)
	}

	return nil
}
