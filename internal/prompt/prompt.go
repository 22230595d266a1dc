// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package prompt asks the user questions on the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/term"
)

var (
	// ErrAborted is returned if the user declined to continue.
	ErrAborted = errors.New("aborted")

	// ErrNoTerminal is returned if a question without default value is asked
	// while stdin is not a terminal.
	ErrNoTerminal = errors.New("stdin is not a terminal, can't ask")

	// ErrEmptyPassphrase is returned if an empty passphrase was entered.
	ErrEmptyPassphrase = errors.New("empty passphrase")
)

// Prompter asks questions. The zero value is not usable, use [New].
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// Log receives each question with its answer.
	Log io.Writer
	// Interactive is false if In is not a terminal. Questions are answered
	// with their default then.
	Interactive bool
	// AssumeYes answers all confirmations with yes.
	AssumeYes bool
	Now       func() time.Time

	reader *bufio.Reader
}

// New returns a Prompter reading from stdin and writing to stdout.
func New(log io.Writer, assumeYes bool) *Prompter {
	return &Prompter{
		In:          os.Stdin,
		Out:         os.Stdout,
		Log:         log,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		AssumeYes:   assumeYes,
		Now:         time.Now,
	}
}

func (p *Prompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read answer: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) format(question string, choices []string, def string) string {
	full := "[" + p.Now().Format(time.TimeOnly) + "] " + question

	if len(choices) > 0 {
		full += " (" + strings.Join(choices, "/") + ")"
	}

	if def != "" {
		full += " [" + def + "]"
	}

	return full
}

// Question describes a question for [Prompter.Ask].
type Question struct {
	Text    string
	Choices []string
	Default string
	// KeepCase disables lowercasing of the answer.
	KeepCase bool
	// Validation is a regular expression the answer must match at its
	// start. The question is repeated until it does.
	Validation string
}

// Ask asks the question until a valid answer is given. An empty answer
// selects the default.
func (p *Prompter) Ask(q Question) (string, error) {
	var validation *regexp.Regexp

	if q.Validation != "" {
		var err error

		validation, err = regexp.Compile("^(?:" + q.Validation + ")")
		if err != nil {
			return "", fmt.Errorf("validation regex: %w", err)
		}
	}

	for {
		full := p.format(q.Text, q.Choices, q.Default)

		var answer string

		if p.Interactive {
			_, _ = fmt.Fprint(p.Out, full+": ")

			line, err := p.readLine()
			if err != nil {
				return "", err
			}

			answer = line
		} else if q.Default == "" {
			return "", fmt.Errorf("%w: %s", ErrNoTerminal, q.Text)
		}

		if !q.KeepCase {
			answer = strings.ToLower(answer)
		}

		if answer == "" {
			answer = q.Default
		}

		if p.Log != nil {
			_, _ = fmt.Fprintln(p.Log, full+" "+answer)
		}

		if validation == nil || validation.MatchString(answer) {
			return answer, nil
		}

		slog.Error("ERROR: Input did not pass validation (regex: " +
			q.Validation + "). Please try again.")

		if !p.Interactive {
			return "", fmt.Errorf("%w: default %q of %q is invalid",
				ErrNoTerminal, q.Default, q.Text)
		}
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	defStr := "n"
	if def {
		defStr = "y"
	}

	if p.AssumeYes {
		slog.Info(question + " (y/n) [" + defStr + "]: y")
		return true, nil
	}

	answer, err := p.Ask(Question{
		Text:       question,
		Choices:    []string{"y", "n"},
		Default:    defStr,
		Validation: "(y|n)",
	})
	if err != nil {
		return false, err
	}

	return answer == "y", nil
}

// ConfirmOrAbort returns [ErrAborted] if the question is not confirmed.
func (p *Prompter) ConfirmOrAbort(question string, def bool) error {
	ok, err := p.Confirm(question, def)
	if err != nil {
		return err
	}

	if !ok {
		return ErrAborted
	}

	return nil
}

// Passphrase reads a passphrase without echo. It must be entered twice.
func (p *Prompter) Passphrase(question string) (string, error) {
	file, ok := p.In.(*os.File)
	if !ok || !p.Interactive {
		return "", fmt.Errorf("%w: %s", ErrNoTerminal, question)
	}

	read := func(text string) (string, error) {
		_, _ = fmt.Fprint(p.Out, text+": ")

		passphrase, err := term.ReadPassword(int(file.Fd()))

		_, _ = fmt.Fprintln(p.Out)

		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}

		return string(passphrase), nil
	}

	for {
		first, err := read(question)
		if err != nil {
			return "", err
		}

		if first == "" {
			return "", ErrEmptyPassphrase
		}

		second, err := read("Repeat")
		if err != nil {
			return "", err
		}

		if first == second {
			return first, nil
		}

		slog.Error("ERROR: Passphrases do not match. Please try again.")
	}
}
