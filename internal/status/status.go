// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package status prints the state of the work directory and the
// configuration.
package status

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/z3ntu/pmbootstrap/internal/config"
)

// Printer writes status output. Colors are used if the writer is a terminal
// that supports them.
type Printer struct {
	out io.Writer

	header lipgloss.Style
	ok     lipgloss.Style
	nok    lipgloss.Style
	key    lipgloss.Style
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer, opts ...termenv.OutputOption) *Printer {
	renderer := lipgloss.NewRenderer(out, opts...)

	return &Printer{
		out:    out,
		header: renderer.NewStyle().Bold(true),
		ok:     renderer.NewStyle().Foreground(lipgloss.Color("2")),
		nok:    renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		key:    renderer.NewStyle().Faint(true),
	}
}

func (p *Printer) println(text string) {
	_, _ = fmt.Fprintln(p.out, text)
}

// Header prints a section header like "*** CHECKS ***".
func (p *Printer) Header(title string) {
	p.println(p.header.Render("*** " + title + " ***"))
}

// OK prints a passed check.
func (p *Printer) OK(text string) {
	p.println(p.ok.Render("[OK ]") + " " + text)
}

// NOK prints a failed check.
func (p *Printer) NOK(text string) {
	p.println(p.nok.Render("[NOK]") + " " + text)
}

// Field prints a key value pair.
func (p *Printer) Field(key, value string) {
	padding := max(10-len(key)-1, 0)

	p.println(p.key.Render(key+":") + strings.Repeat(" ", padding+1) + value)
}

// check returns the checklist items to resolve, or nil if it passed.
type check func(p *Printer, details bool) ([]string, error)

func chrootsOutdated(work string, now time.Time) check {
	return func(p *Printer, details bool) ([]string, error) {
		outdated, err := config.ChrootsOutdated(work, now, config.ChrootOutdated)
		if err != nil {
			return nil, err
		}

		if outdated {
			p.NOK("Chroots not zapped recently")
			return []string{"Run 'pmbootstrap zap' to delete possibly outdated chroots"}, nil
		}

		if details {
			p.OK("Chroots zapped recently (or non-existing)")
		}

		return nil, nil
	}
}

// Check prints the checks of the work directory. It returns false if any
// check failed, followed by a checklist to resolve them.
func (p *Printer) Check(work string, now time.Time, details bool) (bool, error) {
	p.Header("CHECKS")

	var checklist []string

	for _, check := range []check{
		chrootsOutdated(work, now),
	} {
		items, err := check(p, details)
		if err != nil {
			return false, err
		}

		checklist = append(checklist, items...)
	}

	if len(checklist) == 0 {
		if !details {
			p.OK(`All checks passed! \o/`)
		}

		p.println("")

		return true, nil
	}

	p.println("")
	p.Header("CHECKLIST")

	for _, item := range checklist {
		p.println("- " + item)
	}

	p.println("- Run 'pmbootstrap status' to verify that all is resolved")

	return false, nil
}

// Summary is the configuration overview printed with details.
type Summary struct {
	Device   string
	Kernel   string
	UI       string
	Channel  string
	Pmaports string
}

// Config prints the configuration summary.
func (p *Printer) Config(summary Summary) {
	p.Header("CONFIG")
	p.Field("Device", summary.Device)

	if summary.Kernel != "" {
		p.Field("Kernel", summary.Kernel)
	}

	p.Field("UI", summary.UI)
	p.Field("Channel", summary.Channel)
	p.Field("pmaports", summary.Pmaports)
	p.println("")
}
