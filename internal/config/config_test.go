// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/config"
)

func TestGetSet(t *testing.T) {
	cfg := config.Defaults()

	tests := []struct {
		key         string
		value       string
		expected    string
		expectedErr error
	}{
		{key: "device", value: "samsung-i9100", expected: "samsung-i9100"},
		{key: "jobs", value: "12", expected: "12"},
		{key: "jobs", value: "many", expectedErr: config.ErrInvalidValue},
		{key: "ssh_keys", value: "True", expected: "True"},
		{key: "nonfree_firmware", value: "false", expected: "False"},
		{key: "ui_extras", value: "maybe", expectedErr: config.ErrInvalidValue},
		{
			key:      "mirrors_postmarketos",
			value:    "http://a/,http://b/",
			expected: "http://a/,http://b/",
		},
		{key: "nonexisting", value: "1", expectedErr: config.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := cfg.Set(tt.key, tt.value)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr != nil {
				return
			}

			actual, err := cfg.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestReset(t *testing.T) {
	cfg := config.Defaults()

	require.NoError(t, cfg.Set("ui", "phosh"))
	require.NoError(t, cfg.Reset("ui"))
	assert.Equal(t, "weston", cfg.UI)

	require.ErrorIs(t, cfg.Reset("invalid"), config.ErrInvalidKey)
}

func TestKeys(t *testing.T) {
	keys := config.Keys()

	assert.Contains(t, keys, "device")
	assert.Contains(t, keys, "work")
	assert.NotContains(t, keys, "log")
	assert.IsNonDecreasing(t, keys)
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "pmbootstrap.cfg")

	cfg, err := config.Load(path)
	require.NoError(t, err, "missing file")
	assert.Equal(t, config.Defaults(), cfg)

	cfg.Device = "pine64-pinephone"
	cfg.Work = "/work"
	cfg.UIExtras = true

	require.NoError(t, config.Save(path, cfg))

	content := readFile(t, path)
	assert.True(t, strings.HasPrefix(content, "[pmbootstrap]\naports = $WORK/cache_git/pmaports\n"))
	assert.Contains(t, content, "device = pine64-pinephone\n")
	assert.Contains(t, content, "ui_extras = True\n")

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, "/work/cache_git/pmaports", loaded.AportsDir())
}

func TestLoadUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmbootstrap.cfg")
	content := "[pmbootstrap]\n# comment\nalpine_version = edge\ndevice: lg-mako\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lg-mako", cfg.Device)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmbootstrap.cfg")
	require.NoError(t, os.WriteFile(path, []byte("device = x\n"), 0o600))

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidINI)
}

func TestExtraPackageList(t *testing.T) {
	cfg := config.Defaults()
	assert.Empty(t, cfg.ExtraPackageList())

	cfg.ExtraPackages = "vim,htop"
	assert.Equal(t, []string{"vim", "htop"}, cfg.ExtraPackageList())
}
