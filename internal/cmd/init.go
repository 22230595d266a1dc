// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/deviceinfo"
	"github.com/z3ntu/pmbootstrap/internal/git"
	"github.com/z3ntu/pmbootstrap/internal/prompt"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const (
	validUsername     = `[a-z_][a-z0-9_-]*$`
	validHostname     = `[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`
	validNumber       = `[1-9][0-9]*$`
	validCcacheSize   = `[0-9]+(\.[0-9]+)?[KMGT]?$`
	validPackageList  = `(none|[-.+\w]+(,[-.+\w]+)*)$`
	localtimePath     = "/etc/localtime"
	zoneinfoDirectory = "zoneinfo/"
)

// choicesRegex returns a validation regex that matches exactly one of the
// choices.
func choicesRegex(choices []string) string {
	quoted := make([]string, 0, len(choices))
	for _, choice := range choices {
		quoted = append(quoted, regexp.QuoteMeta(choice))
	}

	return "(" + strings.Join(quoted, "|") + ")$"
}

// hostTimezone returns the timezone the localtime link points to, or an
// empty string.
func hostTimezone(localtime string) string {
	target, err := os.Readlink(localtime)
	if err != nil {
		return ""
	}

	_, zone, found := strings.Cut(target, zoneinfoDirectory)
	if !found {
		return ""
	}

	return zone
}

// initWizard asks the questions of the init action and fills the config.
type initWizard struct {
	app      *app
	ctx      context.Context //nolint:containedctx
	cfg      *config.Config
	prompter *prompt.Prompter
	info     deviceinfo.Deviceinfo
}

func (w *initWizard) ask(text, def, validation string) (string, error) {
	return w.prompter.Ask(prompt.Question{ //nolint:wrapcheck
		Text:       text,
		Default:    def,
		Validation: validation,
	})
}

func (w *initWizard) work() error {
	answer, err := w.prompter.Ask(prompt.Question{
		Text:     "Work path",
		Default:  w.cfg.Work,
		KeepCase: true,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	work, err := sys.AbsoluteFilePath(answer)
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = config.WorkVersionCheck(work)
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = os.MkdirAll(filepath.Join(work, "cache_git"), 0o755) //nolint:mnd
	if err != nil {
		return fmt.Errorf("create cache_git: %w", err)
	}

	w.cfg.Work = work

	return nil
}

func (w *initWizard) pmaports() error {
	aports := w.cfg.AportsDir()

	_, err := os.Stat(aports)
	if err == nil {
		slog.Info("Location of the 'pmaports' dir: " + aports)
		return nil
	}

	return git.CloneRepo(w.ctx, w.app.runner, w.cfg.Work, aports, "pmaports") //nolint:wrapcheck
}

func (w *initWizard) channel() error {
	aports := w.cfg.AportsDir()

	channels, err := config.ReadChannelsConfig(aports)
	if err != nil {
		return err //nolint:wrapcheck
	}

	current, err := config.ReadPmaportsConfig(aports)
	if err != nil {
		return err //nolint:wrapcheck
	}

	for _, channel := range channels.Channels {
		slog.Info(fmt.Sprintf("* %s: %s", channel.Name, channel.Description))
	}

	name, err := w.prompter.Ask(prompt.Question{
		Text:       "Channel",
		Choices:    channels.Names(),
		Default:    current.Channel,
		Validation: choicesRegex(channels.Names()),
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	w.cfg.IsDefaultChannel = name == channels.Recommended

	if name == current.Channel {
		return nil
	}

	channel, err := channels.Channel(name)
	if err != nil {
		return err //nolint:wrapcheck
	}

	repo := &git.Repository{Dir: aports, Runner: w.app.runner}

	_, err = repo.Run(w.ctx, "checkout", channel.BranchPmaports)

	return err //nolint:wrapcheck
}

func (w *initWizard) device() error {
	tree := w.app.tree()

	vendors, err := tree.ListVendors()
	if err != nil {
		return err //nolint:wrapcheck
	}

	defVendor, defModel, _ := strings.Cut(w.cfg.Device, "-")

	slog.Info("Available vendors (" + strconv.Itoa(len(vendors)) + "): " +
		strings.Join(vendors, ", "))

	vendor, err := w.ask("Vendor", defVendor, "")
	if err != nil {
		return err
	}

	codenames, err := tree.ListCodenames(vendor)
	if err != nil {
		return err //nolint:wrapcheck
	}

	models := make([]string, 0, len(codenames))
	for _, codename := range codenames {
		models = append(models, strings.TrimPrefix(codename, vendor+"-"))
	}

	slog.Info("Available codenames (" + strconv.Itoa(len(models)) + "): " +
		strings.Join(models, ", "))

	if vendor != defVendor && len(models) > 0 {
		defModel = models[0]
	}

	model, err := w.ask("Device codename", defModel, "")
	if err != nil {
		return err
	}

	device := vendor + "-" + model
	if !slices.Contains(codenames, device) {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}

	info, err := deviceinfo.Find(w.cfg.AportsDir(), device)
	if err != nil {
		return err //nolint:wrapcheck
	}

	w.cfg.Device = device
	w.info = info

	return nil
}

func (w *initWizard) kernel() error {
	kernels, err := apkbuild.Kernels(w.cfg.AportsDir(), w.cfg.Device)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if len(kernels) == 0 {
		return nil
	}

	flavors := slices.Sorted(maps.Keys(kernels))
	for _, flavor := range flavors {
		slog.Info(fmt.Sprintf("* %s: %s", flavor, kernels[flavor]))
	}

	def := w.cfg.Kernel
	if _, exists := kernels[def]; !exists {
		def = flavors[0]
	}

	w.cfg.Kernel, err = w.prompter.Ask(prompt.Question{
		Text:       "Kernel",
		Choices:    flavors,
		Default:    def,
		Validation: choicesRegex(flavors),
	})

	return err //nolint:wrapcheck
}

func (w *initWizard) nonfree() error {
	device, err := w.app.tree().Get("device-" + w.cfg.Device)
	if err != nil {
		return err //nolint:wrapcheck
	}

	prefix := "device-" + w.cfg.Device + "-nonfree-"

	for _, nonfree := range []struct {
		kind  string
		value *bool
	}{
		{"firmware", &w.cfg.NonfreeFirmware},
		{"userland", &w.cfg.NonfreeUserland},
	} {
		sub, exists := device.Subpackages[prefix+nonfree.kind]
		if !exists {
			*nonfree.value = false
			continue
		}

		if sub != nil && sub.Pkgdesc != "" {
			slog.Info("Non-free " + nonfree.kind + ": " + sub.Pkgdesc)
		}

		*nonfree.value, err = w.prompter.Confirm("Enable non-free "+nonfree.kind+"?",
			*nonfree.value)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

func (w *initWizard) keymap() error {
	keymaps := w.info.Keymaps()
	if len(keymaps) == 0 {
		w.cfg.Keymap = ""
		return nil
	}

	def := w.cfg.Keymap
	if !slices.Contains(keymaps, def) {
		def = keymaps[0]
	}

	var err error

	w.cfg.Keymap, err = w.prompter.Ask(prompt.Question{
		Text:       "Keymap",
		Choices:    keymaps,
		Default:    def,
		Validation: choicesRegex(keymaps),
	})

	return err //nolint:wrapcheck
}

func (w *initWizard) user() error {
	var err error

	w.cfg.User, err = w.ask("Username", w.cfg.User, validUsername)

	return err
}

func (w *initWizard) ui() error {
	uis, err := w.app.tree().ListUIs(w.info.Arch())
	if err != nil {
		return err //nolint:wrapcheck
	}

	names := make([]string, 0, len(uis))

	slog.Info("Available user interfaces (" + strconv.Itoa(len(uis)-1) + "):")

	for _, ui := range uis {
		names = append(names, ui.Name)
		slog.Info(fmt.Sprintf("* %s: %s", ui.Name, ui.Description))
	}

	def := w.cfg.UI
	if !slices.Contains(names, def) {
		def = names[0]
	}

	w.cfg.UI, err = w.ask("User interface", def, choicesRegex(names))
	if err != nil {
		return err
	}

	extras, err := w.app.tree().UIHasExtras(w.cfg.UI)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if !extras {
		w.cfg.UIExtras = false
		return nil
	}

	w.cfg.UIExtras, err = w.prompter.Confirm("Enable the extras of "+w.cfg.UI+"?",
		w.cfg.UIExtras)

	return err //nolint:wrapcheck
}

func (w *initWizard) additionalOptions() error {
	slog.Info("Additional options:")
	slog.Info(fmt.Sprintf("* Boot partition size: %d MiB", w.cfg.BootSize))
	slog.Info(fmt.Sprintf("* Parallel jobs: %d", w.cfg.Jobs))
	slog.Info("* Ccache size: " + w.cfg.CcacheSize)
	slog.Info("* Build for the device arch by default: " +
		strconv.FormatBool(w.cfg.BuildDefaultDeviceArch))

	change, err := w.prompter.Confirm("Change them?", false)
	if err != nil || !change {
		return err //nolint:wrapcheck
	}

	for _, number := range []struct {
		text  string
		value *int
	}{
		{"Boot partition size in MiB", &w.cfg.BootSize},
		{"How many jobs should run parallel on this machine, when compiling?", &w.cfg.Jobs},
	} {
		answer, err := w.ask(number.text, strconv.Itoa(*number.value), validNumber)
		if err != nil {
			return err
		}

		*number.value, err = strconv.Atoi(answer)
		if err != nil {
			return fmt.Errorf("%s: %w", number.text, err)
		}
	}

	w.cfg.CcacheSize, err = w.prompter.Ask(prompt.Question{
		Text:       "Ccache size",
		Default:    w.cfg.CcacheSize,
		KeepCase:   true,
		Validation: validCcacheSize,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	w.cfg.BuildDefaultDeviceArch, err = w.prompter.Confirm(
		"Build packages for the device architecture by default?",
		w.cfg.BuildDefaultDeviceArch)

	return err //nolint:wrapcheck
}

func (w *initWizard) packages() error {
	var err error

	w.cfg.ExtraPackages, err = w.ask("Extra packages", w.cfg.ExtraPackages, validPackageList)
	if err != nil {
		return err
	}

	w.cfg.Locale, err = w.prompter.Ask(prompt.Question{
		Text:     "Locale",
		Default:  w.cfg.Locale,
		KeepCase: true,
	})

	return err //nolint:wrapcheck
}

func (w *initWizard) timezone() error {
	zone := hostTimezone(localtimePath)
	if zone == "" {
		slog.Warn("Unable to determine timezone configuration on host, using GMT")

		w.cfg.Timezone = "GMT"

		return nil
	}

	use, err := w.prompter.Confirm("Your host timezone: "+zone+
		". Use this timezone instead of GMT?", true)
	if err != nil {
		return err //nolint:wrapcheck
	}

	w.cfg.Timezone = "GMT"
	if use {
		w.cfg.Timezone = zone
	}

	return nil
}

func (w *initWizard) hostname() error {
	def := w.cfg.Hostname
	if def == "" {
		def = w.cfg.Device
	}

	hostname, err := w.ask("Device hostname (short form, e.g. 'foo')", def, validHostname)
	if err != nil {
		return err
	}

	if hostname == w.cfg.Device {
		hostname = ""
	}

	w.cfg.Hostname = hostname

	return nil
}

func (w *initWizard) confirms() error {
	for _, confirm := range []struct {
		text  string
		value *bool
	}{
		{"Would you like to copy your SSH public keys to the device?", &w.cfg.SSHKeys},
		{"Build outdated packages during 'pmbootstrap install'?", &w.cfg.BuildPkgsOnInstall},
	} {
		var err error

		*confirm.value, err = w.prompter.Confirm(confirm.text, *confirm.value)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

// zap offers to zap existing chroots, as they do not match the new config.
func (w *initWizard) zap() error {
	matches, err := filepath.Glob(filepath.Join(w.cfg.Work, "chroot_*"))
	if err != nil || len(matches) == 0 {
		return err //nolint:wrapcheck
	}

	zap, err := w.prompter.Confirm("Zap existing chroots to apply configuration?", true)
	if err != nil || !zap {
		return err //nolint:wrapcheck
	}

	_, err = w.app.bareChroots().Zap(w.ctx, chroot.ZapOptions{})

	return err //nolint:wrapcheck
}

func (w *initWizard) run() error {
	for _, step := range []func() error{
		w.work,
		w.pmaports,
		w.channel,
		w.device,
		w.kernel,
		w.nonfree,
		w.keymap,
		w.user,
		w.ui,
		w.additionalOptions,
		w.packages,
		w.timezone,
		w.hostname,
		w.confirms,
	} {
		err := step()
		if err != nil {
			return err
		}
	}

	err := config.Save(w.app.configPath(), w.cfg)
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = w.zap()
	if err != nil {
		return err
	}

	slog.Info("DONE!")

	return nil
}

func newInitCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialize config file",
		Args:  usageArgs(cobra.NoArgs),
	}

	cmd.RunE = a.action(checkNone, func(cmd *cobra.Command, _ []string) error {
		if !a.skipChecks {
			err := a.checkUser()
			if err != nil {
				return err
			}
		}

		wizard := &initWizard{
			app:      a,
			ctx:      cmd.Context(),
			cfg:      a.cfg,
			prompter: a.prompter,
		}

		return wizard.run()
	})

	return cmd
}
