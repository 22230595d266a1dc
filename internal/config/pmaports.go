// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/z3ntu/pmbootstrap/internal/version"
)

// PmaportsConfig is the content of pmaports.cfg in the root of the pmaports
// checkout.
type PmaportsConfig struct {
	Version               string
	PmbootstrapMinVersion string
	Channel               string
}

// ReadPmaportsConfig reads pmaports.cfg of the given pmaports checkout.
func ReadPmaportsConfig(aports string) (*PmaportsConfig, error) {
	path := filepath.Join(aports, "pmaports.cfg")

	ini, err := ReadINI(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: could not find %s, run 'pmbootstrap init'",
			ErrPmaportsNotFound, path)
	} else if err != nil {
		return nil, err
	}

	sec, exists := ini.Section("pmaports")
	if !exists {
		return nil, fmt.Errorf("%w: %s has no pmaports section",
			ErrPmaportsNotFound, path)
	}

	cfg := &PmaportsConfig{}
	cfg.Version, _ = sec.Get("version")
	cfg.PmbootstrapMinVersion, _ = sec.Get("pmbootstrap_min_version")
	cfg.Channel, _ = sec.Get("channel")

	if cfg.Channel == "" {
		cfg.Channel = "edge"
	}

	return cfg, nil
}

// CheckVersions returns an error if pmaports is older than
// [PmaportsMinVersion] or requires a newer pmbootstrap than [Version].
func (c *PmaportsConfig) CheckVersions() error {
	if version.Compare(c.Version, PmaportsMinVersion) < 0 {
		return fmt.Errorf("%w: pmaports has version %s, but version %s "+
			"is required, run 'pmbootstrap pull' to update your pmaports",
			ErrVersionTooOld, c.Version, PmaportsMinVersion)
	}

	if c.PmbootstrapMinVersion != "" &&
		version.Compare(Version, c.PmbootstrapMinVersion) < 0 {
		return fmt.Errorf("%w: pmbootstrap has version %s, but pmaports "+
			"requires version %s, please update pmbootstrap",
			ErrVersionTooOld, Version, c.PmbootstrapMinVersion)
	}

	return nil
}

// Channel is a release channel of postmarketOS.
type Channel struct {
	Name            string
	Description     string
	BranchPmaports  string
	BranchAports    string
	MirrordirAlpine string
}

// ChannelsConfig is the content of channels.cfg.
type ChannelsConfig struct {
	Recommended string
	Channels    []Channel
}

// Channel returns the channel with the given name.
func (c *ChannelsConfig) Channel(name string) (Channel, error) {
	for _, channel := range c.Channels {
		if channel.Name == name {
			return channel, nil
		}
	}

	return Channel{}, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
}

// Names returns the names of all channels in order.
func (c *ChannelsConfig) Names() []string {
	names := make([]string, 0, len(c.Channels))
	for _, channel := range c.Channels {
		names = append(names, channel.Name)
	}

	return names
}

// ReadChannelsConfig reads channels.cfg of the given pmaports checkout.
//
// Checkouts without channels.cfg only have the "edge" channel.
func ReadChannelsConfig(aports string) (*ChannelsConfig, error) {
	ini, err := ReadINI(filepath.Join(aports, "channels.cfg"))
	if errors.Is(err, fs.ErrNotExist) {
		return &ChannelsConfig{
			Recommended: "edge",
			Channels: []Channel{{
				Name:            "edge",
				Description:     "Rolling release channel",
				BranchPmaports:  "master",
				BranchAports:    "master",
				MirrordirAlpine: "edge",
			}},
		}, nil
	} else if err != nil {
		return nil, err
	}

	return parseChannels(ini)
}

func parseChannels(ini *INI) (*ChannelsConfig, error) {
	cfg := &ChannelsConfig{}

	for _, sec := range ini.Sections() {
		if sec.Name == "channels.cfg" {
			cfg.Recommended, _ = sec.Get("recommended")
			continue
		}

		channel := Channel{Name: sec.Name}
		channel.Description, _ = sec.Get("description")
		channel.BranchPmaports, _ = sec.Get("branch_pmaports")
		channel.BranchAports, _ = sec.Get("branch_aports")
		channel.MirrordirAlpine, _ = sec.Get("mirrordir_alpine")
		cfg.Channels = append(cfg.Channels, channel)
	}

	if cfg.Recommended == "" {
		return nil, fmt.Errorf("%w: channels.cfg has no recommended channel",
			ErrInvalidValue)
	}

	_, err := cfg.Channel(cfg.Recommended)
	if err != nil {
		return nil, fmt.Errorf("recommended channel: %w", err)
	}

	return cfg, nil
}
