// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import "errors"

var (
	// ErrInvalidKey is returned if a config key is unknown.
	ErrInvalidKey = errors.New("invalid config key")

	// ErrInvalidValue is returned if a value can not be converted into the
	// type of the config key.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrInvalidINI is returned if an INI file has a syntax error.
	ErrInvalidINI = errors.New("invalid INI syntax")

	// ErrWorkVersion is returned if the work folder has a different format
	// version than this pmbootstrap supports.
	ErrWorkVersion = errors.New("work folder version mismatch")

	// ErrVersionTooOld is returned if a component is older than required.
	ErrVersionTooOld = errors.New("version too old")

	// ErrPmaportsNotFound is returned if the pmaports checkout or its config
	// does not exist.
	ErrPmaportsNotFound = errors.New("pmaports not found")

	// ErrUnknownChannel is returned if a channel is not defined in
	// channels.cfg.
	ErrUnknownChannel = errors.New("unknown channel")
)
