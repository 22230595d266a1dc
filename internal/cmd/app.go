// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/z3ntu/pmbootstrap/internal/build"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/flasher"
	"github.com/z3ntu/pmbootstrap/internal/install"
	"github.com/z3ntu/pmbootstrap/internal/pmaports"
	"github.com/z3ntu/pmbootstrap/internal/prompt"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

// app holds the state shared by all actions of one pmbootstrap run. The
// dependencies are created on first use, so actions that only read the
// config do not need pmaports.
type app struct {
	io    IO
	flags globalFlags

	cfg      *config.Config
	runner   run.Runner
	prompter *prompt.Prompter
	logFile  *os.File
	now      func() time.Time

	manager *chroot.Manager

	// skipChecks disables the host and version checks before actions.
	skipChecks bool
}

func newApp(cfg IO) *app {
	return &app{
		io:  cfg,
		now: time.Now,
	}
}

func (a *app) configPath() string {
	return cmp.Or(a.flags.config, config.DefaultPath())
}

// setup loads the config, applies the flag overrides and starts logging.
func (a *app) setup(flags flagSet) error {
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return err
	}

	a.flags.apply(cfg, flags)
	a.cfg = cfg

	err = a.openLog()
	if err != nil {
		return err
	}

	var logWriter io.Writer
	if a.logFile != nil {
		logWriter = a.logFile
	}

	setupLogging(a.io.Stderr, a.flags.logLevel(), logWriter)

	if a.runner == nil {
		a.runner = &run.Exec{
			Log:             logWriter,
			Stdin:           a.io.Stdin,
			Stdout:          a.io.Stdout,
			Stderr:          a.io.Stderr,
			DetailsToStdout: cfg.DetailsToStdout,
			Timeout:         cfg.Timeout,
		}
	}

	if a.prompter == nil {
		a.prompter = prompt.New(logWriter, cfg.AssumeYes)
	}

	return nil
}

// openLog opens the log file, if the work folder exists.
func (a *app) openLog() error {
	path := a.cfg.LogPath()

	_, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return nil //nolint:nilerr
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:mnd
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	a.logFile = file

	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// check runs the checks of the given level before an action.
func (a *app) check(level checkLevel) error {
	if a.skipChecks || level == checkNone {
		return nil
	}

	if level >= checkConfig && !config.Exists(a.configPath()) {
		return ErrNoConfig
	}

	err := a.checkUser()
	if err != nil {
		return err
	}

	err = config.WorkVersionCheck(a.cfg.Work)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if level >= checkPmaports {
		pmaportsCfg, err := config.ReadPmaportsConfig(a.cfg.AportsDir())
		if err != nil {
			return err //nolint:wrapcheck
		}

		err = pmaportsCfg.CheckVersions()
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

// checkUser refuses to run as root and requires the host programs.
func (a *app) checkUser() error {
	if sys.IsRoot() && !a.cfg.AsRoot {
		return ErrRunningAsRoot
	}

	return sys.RequirePrograms(config.RequiredPrograms...) //nolint:wrapcheck
}

func (a *app) tree() *pmaports.Tree {
	return pmaports.New(a.cfg.AportsDir())
}

func (a *app) channel() (config.Channel, error) {
	pmaportsCfg, err := config.ReadPmaportsConfig(a.cfg.AportsDir())
	if err != nil {
		return config.Channel{}, err //nolint:wrapcheck
	}

	channels, err := config.ReadChannelsConfig(a.cfg.AportsDir())
	if err != nil {
		return config.Channel{}, err //nolint:wrapcheck
	}

	return channels.Channel(pmaportsCfg.Channel) //nolint:wrapcheck
}

func (a *app) deviceinfo() (deviceinfo.Deviceinfo, error) {
	info, err := deviceinfo.Find(a.cfg.AportsDir(), a.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("deviceinfo: %w", err)
	}

	return info, nil
}

func (a *app) chroots() (*chroot.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}

	channel, err := a.channel()
	if err != nil {
		return nil, err
	}

	info, err := a.deviceinfo()
	if err != nil {
		return nil, err
	}

	manager := chroot.New(a.cfg, a.runner, channel)
	manager.Prompter = a.prompter
	manager.DeviceArch = info.Arch()
	manager.Now = a.now

	a.manager = manager

	slog.Debug("Chroot manager ready",
		slog.String("work", a.cfg.Work),
		slog.String("channel", channel.Name),
		slog.String("device_arch", info.Arch().String()),
	)

	return manager, nil
}

// bareChroots returns a chroot manager for actions that only clean up, so
// they work without pmaports.
func (a *app) bareChroots() *chroot.Manager {
	if a.manager != nil {
		return a.manager
	}

	manager := chroot.New(a.cfg, a.runner, config.Channel{})
	manager.Prompter = a.prompter
	manager.Now = a.now

	return manager
}

func (a *app) builder() (*build.Builder, error) {
	chroots, err := a.chroots()
	if err != nil {
		return nil, err
	}

	return build.New(chroots, a.tree(), a.cfg), nil
}

func (a *app) installer() (*install.Installer, error) {
	builder, err := a.builder()
	if err != nil {
		return nil, err
	}

	info, err := a.deviceinfo()
	if err != nil {
		return nil, err
	}

	return &install.Installer{
		Chroots:    builder.Chroots,
		Builder:    builder,
		Tree:       builder.Tree,
		Config:     a.cfg,
		Deviceinfo: info,
		Prompter:   a.prompter,
	}, nil
}

func (a *app) flasher() (*flasher.Flasher, error) {
	chroots, err := a.chroots()
	if err != nil {
		return nil, err
	}

	info, err := a.deviceinfo()
	if err != nil {
		return nil, err
	}

	return &flasher.Flasher{
		Chroots:    chroots,
		Tree:       a.tree(),
		Deviceinfo: info,
		Device:     a.cfg.Device,
		User:       a.cfg.User,
	}, nil
}
