// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config provides the user configuration of pmbootstrap and the state
// files of the work folder and the pmaports checkout.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

// section is the INI section of the user config file.
const section = "pmbootstrap"

// Config holds the settings of pmbootstrap.
//
// Fields with a "cfg" tag are persisted in the config file. The others are
// set from command line flags for a single run.
type Config struct {
	Aports                 string   `cfg:"aports"`
	BootSize               int      `cfg:"boot_size"`
	BuildDefaultDeviceArch bool     `cfg:"build_default_device_arch"`
	BuildPkgsOnInstall     bool     `cfg:"build_pkgs_on_install"`
	CcacheSize             string   `cfg:"ccache_size"`
	Device                 string   `cfg:"device"`
	ExtraPackages          string   `cfg:"extra_packages"`
	Hostname               string   `cfg:"hostname"`
	IsDefaultChannel       bool     `cfg:"is_default_channel"`
	Jobs                   int      `cfg:"jobs"`
	Kernel                 string   `cfg:"kernel"`
	Keymap                 string   `cfg:"keymap"`
	Locale                 string   `cfg:"locale"`
	MirrorAlpine           string   `cfg:"mirror_alpine"`
	MirrorsPostmarketos    []string `cfg:"mirrors_postmarketos"`
	NonfreeFirmware        bool     `cfg:"nonfree_firmware"`
	NonfreeUserland        bool     `cfg:"nonfree_userland"`
	SSHKeys                bool     `cfg:"ssh_keys"`
	Timezone               string   `cfg:"timezone"`
	UI                     string   `cfg:"ui"`
	UIExtras               bool     `cfg:"ui_extras"`
	User                   string   `cfg:"user"`
	Work                   string   `cfg:"work"`

	Log             string
	Offline         bool
	AssumeYes       bool
	AsRoot          bool
	DetailsToStdout bool
	Timeout         time.Duration
	NoCcache        bool
	NoCross         bool
	PortDistccd     int
}

// Defaults returns the default configuration.
func Defaults() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Aports:              "$WORK/cache_git/pmaports",
		BootSize:            256, //nolint:mnd
		BuildPkgsOnInstall:  true,
		CcacheSize:          "5G",
		Device:              "qemu-amd64",
		ExtraPackages:       "none",
		IsDefaultChannel:    true,
		Jobs:                runtime.NumCPU() + 1,
		Kernel:              "stable",
		Locale:              "C.UTF-8",
		MirrorAlpine:        "http://dl-cdn.alpinelinux.org/alpine/",
		MirrorsPostmarketos: []string{"http://mirror.postmarketos.org/postmarketos/"},
		NonfreeFirmware:     true,
		Timezone:            "GMT",
		UI:                  "weston",
		User:                "user",
		Work:                filepath.Join(home, ".local/var/pmbootstrap"),
		Log:                 "$WORK/log.txt",
		Timeout:             900 * time.Second, //nolint:mnd
		PortDistccd:         33632,            //nolint:mnd
	}
}

// DefaultPath returns the default location of the user config file.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}

	return filepath.Join(dir, "pmbootstrap.cfg")
}

func (c *Config) expand(path string) string {
	return strings.ReplaceAll(path, "$WORK", c.Work)
}

// AportsDir returns the path of the pmaports checkout.
func (c *Config) AportsDir() string {
	return c.expand(c.Aports)
}

// LogPath returns the path of the log file.
func (c *Config) LogPath() string {
	return c.expand(c.Log)
}

// ExtraPackageList returns the configured extra packages.
func (c *Config) ExtraPackageList() []string {
	if c.ExtraPackages == "" || c.ExtraPackages == "none" {
		return nil
	}

	return strings.Split(c.ExtraPackages, ",")
}

type field struct {
	key   string
	value reflect.Value
}

func (c *Config) fields() []field {
	value := reflect.ValueOf(c).Elem()
	typ := value.Type()

	fields := make([]field, 0, typ.NumField())

	for idx := range typ.NumField() {
		key, ok := typ.Field(idx).Tag.Lookup("cfg")
		if !ok {
			continue
		}

		fields = append(fields, field{key: key, value: value.Field(idx)})
	}

	return fields
}

func (c *Config) field(key string) (reflect.Value, error) {
	for _, f := range c.fields() {
		if f.key == key {
			return f.value, nil
		}
	}

	return reflect.Value{}, fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// Keys returns all keys persisted in the config file, sorted.
func Keys() []string {
	var c Config

	fields := c.fields()
	keys := make([]string, 0, len(fields))

	for _, f := range fields {
		keys = append(keys, f.key)
	}

	slices.Sort(keys)

	return keys
}

// Get returns the string representation of the value for the given key.
func (c *Config) Get(key string) (string, error) {
	value, err := c.field(key)
	if err != nil {
		return "", err
	}

	return formatValue(value), nil
}

// Set parses the given string and sets the value for the given key.
func (c *Config) Set(key, str string) error {
	value, err := c.field(key)
	if err != nil {
		return err
	}

	err = parseValue(value, str)
	if err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidValue, key, err)
	}

	return nil
}

// Reset sets the value of the given key to its default.
func (c *Config) Reset(key string) error {
	value, err := c.field(key)
	if err != nil {
		return err
	}

	defaultValue, _ := Defaults().field(key)
	value.Set(defaultValue)

	return nil
}

func formatValue(value reflect.Value) string {
	switch value.Kind() { //nolint:exhaustive
	case reflect.Bool:
		if value.Bool() {
			return "True"
		}

		return "False"
	case reflect.Int:
		return strconv.FormatInt(value.Int(), 10)
	case reflect.Slice:
		return strings.Join(value.Interface().([]string), ",") //nolint:forcetypeassert
	default:
		return value.String()
	}
}

func parseValue(value reflect.Value, str string) error {
	switch value.Kind() { //nolint:exhaustive
	case reflect.Bool:
		b, err := parseBool(str)
		if err != nil {
			return err
		}

		value.SetBool(b)
	case reflect.Int:
		i, err := strconv.Atoi(str)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}

		value.SetInt(int64(i))
	case reflect.Slice:
		var list []string
		if str != "" {
			list = strings.Split(str, ",")
		}

		value.Set(reflect.ValueOf(list))
	default:
		value.SetString(str)
	}

	return nil
}

func parseBool(str string) (bool, error) {
	switch strings.ToLower(str) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", str)
	}
}

// Load reads the config file at the given path on top of the [Defaults]. A
// missing file is not an error.
//
// Unknown keys are ignored with a warning.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	ini, err := ReadINI(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	sec, exists := ini.Section(section)
	if !exists {
		return cfg, nil
	}

	for _, key := range sec.Keys() {
		value, _ := sec.Get(key)

		err := cfg.Set(key, value)
		if errors.Is(err, ErrInvalidKey) {
			slog.Warn("Ignoring unknown config key",
				slog.String("key", key),
				slog.String("path", path),
			)

			continue
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return cfg, nil
}

// Save writes all persisted keys of the config sorted by name to the given
// path.
func Save(path string, cfg *Config) error {
	ini := &INI{}
	sec := ini.EnsureSection(section)

	for _, key := range Keys() {
		value, _ := cfg.Get(key)
		sec.Set(key, value)
	}

	err := os.MkdirAll(filepath.Dir(path), 0o755) //nolint:mnd
	if err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	slog.Debug("Save config", slog.String("path", path))

	return ini.WriteFile(path)
}

// Exists returns if a config file exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
