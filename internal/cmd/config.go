// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "config [name] [value]",
		Short: "get and set pmbootstrap options",
		Long: "Without name, all options are printed. With only a name, its " +
			"value is printed. With a value, the option is set.\n\n" +
			"Options: " + strings.Join(config.Keys(), ", "),
		Args: usageArgs(cobra.RangeArgs(0, 2)), //nolint:mnd
	}

	cmd.Flags().BoolVarP(&reset, "reset", "r", false,
		"reset the option with the given name to its default")

	cmd.RunE = a.action(checkNone, func(_ *cobra.Command, args []string) error {
		switch {
		case reset:
			if len(args) != 1 {
				return &ParseArgsError{msg: "--reset requires exactly one option name"}
			}

			err := a.cfg.Reset(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			slog.Info("Config changed to default", slog.String("key", args[0]))

			return config.Save(a.configPath(), a.cfg) //nolint:wrapcheck
		case len(args) == 2: //nolint:mnd
			err := a.cfg.Set(args[0], args[1])
			if err != nil {
				return err //nolint:wrapcheck
			}

			slog.Info("Config changed",
				slog.String("key", args[0]),
				slog.String("value", args[1]))

			return config.Save(a.configPath(), a.cfg) //nolint:wrapcheck
		case len(args) == 1:
			value, err := a.cfg.Get(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			fmt.Fprintln(a.io.Stdout, value)

			return nil
		default:
			for _, key := range config.Keys() {
				value, _ := a.cfg.Get(key)
				fmt.Fprintf(a.io.Stdout, "%s = %s\n", key, value)
			}

			return nil
		}
	})

	return cmd
}
