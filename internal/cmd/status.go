// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/git"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/status"
)

// summary collects the config summary of the status action. Values that
// can not be determined stay empty.
func (a *app) summary(ctx context.Context) status.Summary {
	summary := status.Summary{
		Device: a.cfg.Device,
		Kernel: a.cfg.Kernel,
		UI:     a.cfg.UI,
	}

	channel, err := a.channel()
	if err == nil {
		summary.Channel = channel.Name
	}

	repo := &git.Repository{Dir: a.cfg.AportsDir(), Runner: a.runner}

	commit, err := repo.RevParse(ctx, "HEAD", "--short")
	if err == nil {
		summary.Pmaports = commit
	}

	return summary
}

func newStatusCommand(a *app) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "quick health check for the work dir",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.Flags().BoolVar(&details, "details", false,
		"list all failing checks and print the config summary")

	cmd.RunE = a.action(checkHost, func(cmd *cobra.Command, _ []string) error {
		printer := status.NewPrinter(a.io.Stdout)

		if details {
			printer.Config(a.summary(cmd.Context()))
		}

		ok, err := printer.Check(a.cfg.Work, a.now(), details)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if !ok {
			return ErrChecksFailed
		}

		return nil
	})

	return cmd
}

func newLogCommand(a *app) *cobra.Command {
	var (
		lines    uint64 = 60
		clearLog bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "follow the pmbootstrap logfile",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.Flags().VarP(&LimitedUintValue{Value: &lines, Lower: 1}, "lines", "n",
		"count of initial output lines")
	cmd.Flags().BoolVar(&clearLog, "clear", false,
		"clear the log file first")

	cmd.RunE = a.action(checkNone, func(cmd *cobra.Command, _ []string) error {
		path := a.cfg.LogPath()

		if clearLog {
			err := os.Truncate(path, 0)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("clear log: %w", err)
			}
		}

		_, err := a.runner.Run(cmd.Context(), run.Cmd{
			Args:   []string{"tail", "-n", strconv.FormatUint(lines, 10), "-F", path},
			Output: run.OutputInteractive,
		})

		return err //nolint:wrapcheck
	})

	return cmd
}

// officialBranches returns the branches pull works on for a repository.
func officialBranches(channels *config.ChannelsConfig, name string) []string {
	var branches []string

	for _, channel := range channels.Channels {
		branch := channel.BranchPmaports
		if name != "pmaports" {
			branch = channel.BranchAports
		}

		if !slices.Contains(branches, branch) {
			branches = append(branches, branch)
		}
	}

	return branches
}

func newPullCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "update all git repositories that pmbootstrap cloned",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.RunE = a.action(checkHost, func(cmd *cobra.Command, _ []string) error {
		channels, err := config.ReadChannelsConfig(a.cfg.AportsDir())
		if err != nil {
			return err //nolint:wrapcheck
		}

		var failed []string

		for _, name := range slices.Sorted(maps.Keys(git.URLs)) {
			dir := git.Path(a.cfg.Work, a.cfg.AportsDir(), name)

			_, err := os.Stat(dir)
			if err != nil {
				slog.Debug("Not cloned, skipping pull", slog.String("repo", name))
				continue
			}

			repo := &git.Repository{Dir: dir, Runner: a.runner}

			pullStatus, err := git.Pull(cmd.Context(), repo, git.URLs[name],
				officialBranches(channels, name))
			if err != nil {
				return err //nolint:wrapcheck
			}

			if !pullStatus.OK() {
				failed = append(failed, name)
			}
		}

		if len(failed) > 0 {
			slog.Warn("Failed to update", slog.String("repos", strings.Join(failed, ", ")))
			slog.Info("Fix the issues above or update the repositories manually with git")
		}

		return nil
	})

	return cmd
}

func newWorkMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work_migrate",
		Short: "migrate work folder to new version",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.RunE = a.action(checkNone, func(cmd *cobra.Command, _ []string) error {
		return a.migrateWork(cmd.Context())
	})

	return cmd
}

// migrateWork brings the work folder to [config.WorkVersion]. Older work
// folders are zapped, as their chroots are not compatible.
func (a *app) migrateWork(ctx context.Context) error {
	version, err := config.ReadWorkVersion(a.cfg.Work)
	if errors.Is(err, fs.ErrNotExist) {
		return config.WorkVersionCheck(a.cfg.Work) //nolint:wrapcheck
	} else if err != nil {
		return err //nolint:wrapcheck
	}

	switch {
	case version == config.WorkVersion:
		slog.Info("Work folder is up to date", slog.Int("version", version))
		return nil
	case version > config.WorkVersion:
		return fmt.Errorf("%w: version %d, this pmbootstrap supports %d",
			ErrWorkVersionNewer, version, config.WorkVersion)
	}

	slog.Info(fmt.Sprintf("Migrating work folder from version %d to %d",
		version, config.WorkVersion))

	err = a.prompter.ConfirmOrAbort("All chroots will be zapped. Continue?", true)
	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = a.bareChroots().Zap(ctx, chroot.ZapOptions{})
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = config.WriteWorkVersion(a.cfg.Work)
	if err != nil {
		return err //nolint:wrapcheck
	}

	slog.Info("Done")

	return nil
}
