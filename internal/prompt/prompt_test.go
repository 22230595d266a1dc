// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package prompt_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/prompt"
)

func newPrompter(input string, interactive bool) (*prompt.Prompter, *bytes.Buffer, *bytes.Buffer) {
	var out, log bytes.Buffer

	return &prompt.Prompter{
		In:          strings.NewReader(input),
		Out:         &out,
		Log:         &log,
		Interactive: interactive,
		Now: func() time.Time {
			return time.Date(2020, 1, 1, 13, 37, 42, 0, time.UTC)
		},
	}, &out, &log
}

func TestAsk(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		interactive bool
		question    prompt.Question
		expected    string
		expectedOut string
		expectedErr error
	}{
		{
			name:        "answer",
			input:       "Weston\n",
			interactive: true,
			question:    prompt.Question{Text: "User interface", Default: "none"},
			expected:    "weston",
			expectedOut: "[13:37:42] User interface [none]: ",
		},
		{
			name:        "keep case",
			input:       "Weston\n",
			interactive: true,
			question:    prompt.Question{Text: "UI", KeepCase: true},
			expected:    "Weston",
			expectedOut: "[13:37:42] UI: ",
		},
		{
			name:        "default",
			input:       "\n",
			interactive: true,
			question: prompt.Question{
				Text:    "Continue?",
				Choices: []string{"y", "n"},
				Default: "n",
			},
			expected:    "n",
			expectedOut: "[13:37:42] Continue? (y/n) [n]: ",
		},
		{
			name:        "validation repeats",
			input:       "-bad\ngood\n",
			interactive: true,
			question: prompt.Question{
				Text:       "Username",
				Default:    "user",
				Validation: "[a-z_][a-z0-9_-]*$",
			},
			expected: "good",
			expectedOut: "[13:37:42] Username [user]: " +
				"[13:37:42] Username [user]: ",
		},
		{
			name:     "non-interactive default",
			question: prompt.Question{Text: "Hostname", Default: "pmos"},
			expected: "pmos",
		},
		{
			name:        "non-interactive without default",
			question:    prompt.Question{Text: "Hostname"},
			expectedErr: prompt.ErrNoTerminal,
		},
		{
			name:        "eof",
			interactive: true,
			question:    prompt.Question{Text: "Hostname"},
			expectedOut: "[13:37:42] Hostname: ",
			expectedErr: io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompter, out, _ := newPrompter(tt.input, tt.interactive)

			answer, err := prompter.Ask(tt.question)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, answer)
			assert.Equal(t, tt.expectedOut, out.String())
		})
	}
}

func TestAskLog(t *testing.T) {
	prompter, _, log := newPrompter("y\n", true)

	ok, err := prompter.Confirm("Zap?", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[13:37:42] Zap? (y/n) [n] y\n", log.String())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		def       bool
		assumeYes bool
		expected  bool
	}{
		{"yes", "y\n", false, false, true},
		{"no", "n\n", true, false, false},
		{"default yes", "\n", true, false, true},
		{"default no", "\n", false, false, false},
		{"invalid then yes", "maybe\nY\n", false, false, true},
		{"assume yes", "", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompter, _, _ := newPrompter(tt.input, true)
			prompter.AssumeYes = tt.assumeYes

			ok, err := prompter.Confirm("Continue?", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestConfirmOrAbort(t *testing.T) {
	prompter, _, _ := newPrompter("n\n", true)

	err := prompter.ConfirmOrAbort("Continue?", true)
	require.ErrorIs(t, err, prompt.ErrAborted)
}

func TestPassphraseNoTerminal(t *testing.T) {
	prompter, _, _ := newPrompter("secret\n", true)

	_, err := prompter.Passphrase("Passphrase")
	require.ErrorIs(t, err, prompt.ErrNoTerminal)
}
