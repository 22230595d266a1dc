// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/z3ntu/pmbootstrap/internal/config"
)

const usageMessage = `All pmbootstrap flags can also be provided via environment variable ` +
	EnvVarArgs + `:
	` + EnvVarArgs + `="--details-to-stdout -y" pmbootstrap install`

// checkLevel selects the checks run before an action.
type checkLevel int

const (
	// checkNone runs no checks.
	checkNone checkLevel = iota
	// checkHost checks the host and the work folder.
	checkHost
	// checkConfig additionally requires an existing config file.
	checkConfig
	// checkPmaports additionally checks the pmaports version.
	checkPmaports
)

type flagSet interface {
	Changed(name string) bool
}

// globalFlags are the flags of all actions. They override the config for
// the current run.
type globalFlags struct {
	config          string
	work            string
	aports          string
	mirrorAlpine    string
	mirrorsPmOS     []string
	jobs            uint64
	timeout         float64
	assumeYes       bool
	asRoot          bool
	offline         bool
	verbose         bool
	quiet           bool
	log             string
	detailsToStdout bool
	portDistccd     uint64
	bootSize        uint64
	noCcache        bool
	noCross         bool
}

func (g *globalFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&g.config, "config", "c", "",
		"path to pmbootstrap.cfg (default "+config.DefaultPath()+")")
	flags.StringVarP(&g.work, "work", "w", "",
		"folder where all data gets stored (chroots, caches, built packages)")
	flags.StringVarP(&g.aports, "aports", "p", "",
		"postmarketOS package ports folder (pmaports)")
	flags.StringVarP(&g.mirrorAlpine, "mirror-alpine", "m", "",
		"Alpine Linux mirror")
	flags.StringSliceVar(&g.mirrorsPmOS, "mirror-pmOS", nil,
		"postmarketOS mirror, may be given more than once, "+
			"empty value disables the postmarketOS repository")
	flags.VarP(&LimitedUintValue{Value: &g.jobs, Lower: 1}, "jobs", "j",
		"parallel jobs when compiling")
	flags.Float64VarP(&g.timeout, "timeout", "t", 0,
		"seconds after which a command without output is killed")
	flags.BoolVarP(&g.assumeYes, "assume-yes", "y", false,
		"assume 'yes' to all questions")
	flags.BoolVar(&g.asRoot, "as-root", false,
		"allow running pmbootstrap as root")
	flags.BoolVarP(&g.offline, "offline", "o", false,
		"do not attempt to update the package index files")
	flags.BoolVarP(&g.verbose, "verbose", "v", false,
		"write even more to the logfiles")
	flags.BoolVarP(&g.quiet, "quiet", "q", false,
		"do not output any log messages")
	flags.StringVarP(&g.log, "log", "l", "",
		"path to log file (default $WORK/log.txt)")
	flags.BoolVar(&g.detailsToStdout, "details-to-stdout", false,
		"print details (e.g. build output) to stdout instead of the log file")
	flags.VarP(&LimitedUintValue{Value: &g.portDistccd, Lower: 1, Upper: 65535}, //nolint:mnd
		"port-distccd", "d", "port for the distccd daemon")
	flags.VarP(&LimitedUintValue{Value: &g.bootSize, Lower: 1}, "boot-size", "B",
		"size of the boot partition in MiB")
	flags.BoolVar(&g.noCcache, "no-ccache", false,
		"do not cache the compiled output")
	flags.BoolVar(&g.noCross, "no-cross", false,
		"disable cross compilation, build in QEMU instead")

	flags.SortFlags = false
}

// apply overrides the config with all flags that are set.
func (g *globalFlags) apply(cfg *config.Config, flags flagSet) {
	overrides := []struct {
		name  string
		apply func()
	}{
		{"work", func() { cfg.Work = g.work }},
		{"aports", func() { cfg.Aports = g.aports }},
		{"mirror-alpine", func() { cfg.MirrorAlpine = g.mirrorAlpine }},
		{"mirror-pmOS", func() { cfg.MirrorsPostmarketos = nonEmpty(g.mirrorsPmOS) }},
		{"jobs", func() { cfg.Jobs = int(g.jobs) }}, //nolint:gosec
		{"timeout", func() { cfg.Timeout = time.Duration(g.timeout * float64(time.Second)) }},
		{"log", func() { cfg.Log = g.log }},
		{"port-distccd", func() { cfg.PortDistccd = int(g.portDistccd) }}, //nolint:gosec
		{"boot-size", func() { cfg.BootSize = int(g.bootSize) }},         //nolint:gosec
	}

	for _, override := range overrides {
		if flags.Changed(override.name) {
			override.apply()
		}
	}

	cfg.AssumeYes = g.assumeYes
	cfg.AsRoot = g.asRoot
	cfg.Offline = g.offline
	cfg.DetailsToStdout = g.detailsToStdout
	cfg.NoCcache = g.noCcache
	cfg.NoCross = g.noCross
}

func (g *globalFlags) logLevel() slog.Level {
	switch {
	case g.quiet:
		return slog.LevelWarn
	case g.verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func nonEmpty(values []string) []string {
	var result []string

	for _, value := range values {
		if value != "" {
			result = append(result, value)
		}
	}

	return result
}

// usageArgs marks errors of the positional argument validation as usage
// errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		err := validate(cmd, args)
		if err != nil {
			return &ParseArgsError{msg: "invalid arguments", err: err}
		}

		return nil
	}
}

// action wraps the function of an action with the checks of the given
// level.
func (a *app) action(
	level checkLevel,
	run func(cmd *cobra.Command, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := a.check(level)
		if err != nil {
			return err
		}

		return run(cmd, args)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pmbootstrap",
		Short: "Bootstrap postmarketOS",
		Long: "pmbootstrap builds packages, creates and flashes postmarketOS " +
			"images and runs them in QEMU.\n\n" + usageMessage,
		Version:       config.Version,
		Args:          usageArgs(cobra.NoArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := cmd.ValidateFlagGroups()
			if err != nil {
				return &ParseArgsError{msg: "invalid flags", err: err}
			}

			return a.setup(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	a.flags.register(root.PersistentFlags())

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ParseArgsError{msg: "invalid flags", err: err}
	})

	root.SetIn(a.io.Stdin)
	root.SetOut(a.io.Stdout)
	root.SetErr(a.io.Stderr)

	root.AddCommand(
		newInitCommand(a),
		newConfigCommand(a),
		newBuildCommand(a),
		newBuildInitCommand(a),
		newChrootCommand(a),
		newInstallCommand(a),
		newFlasherCommand(a),
		newQemuCommand(a),
		newZapCommand(a),
		newStatusCommand(a),
		newShutdownCommand(a),
		newIndexCommand(a),
		newUpdateCommand(a),
		newKconfigCommand(a),
		newAPKBUILDParseCommand(a),
		newAPKINDEXParseCommand(a),
		newBootimgAnalyzeCommand(a),
		newInitfsCommand(a),
		newExportCommand(a),
		newPullCommand(a),
		newLintCommand(a),
		newLogCommand(a),
		newStatsCommand(a),
		newWorkMigrateCommand(a),
	)

	return root
}
