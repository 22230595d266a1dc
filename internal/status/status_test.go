// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package status_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/status"
)

func TestCheck(t *testing.T) {
	now := time.Unix(1_000_000, 0)

	tests := []struct {
		name        string
		workdirCfg  string
		details     bool
		expected    bool
		expectedOut string
	}{
		{
			name:     "no chroots",
			expected: true,
			expectedOut: "*** CHECKS ***\n" +
				"[OK ] All checks passed! \\o/\n" +
				"\n",
		},
		{
			name:     "no chroots details",
			details:  true,
			expected: true,
			expectedOut: "*** CHECKS ***\n" +
				"[OK ] Chroots zapped recently (or non-existing)\n" +
				"\n",
		},
		{
			name:       "outdated",
			workdirCfg: "[chroot-init-dates]\nnative = 1\n\n",
			expectedOut: "*** CHECKS ***\n" +
				"[NOK] Chroots not zapped recently\n" +
				"\n" +
				"*** CHECKLIST ***\n" +
				"- Run 'pmbootstrap zap' to delete possibly outdated chroots\n" +
				"- Run 'pmbootstrap status' to verify that all is resolved\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			if tt.workdirCfg != "" {
				path := filepath.Join(work, "workdir.cfg")
				require.NoError(t, os.WriteFile(path, []byte(tt.workdirCfg), 0o600))
			}

			var out bytes.Buffer

			printer := status.NewPrinter(&out, termenv.WithProfile(termenv.Ascii))

			ok, err := printer.Check(work, now, tt.details)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			assert.Equal(t, tt.expectedOut, out.String())
		})
	}
}

func TestConfig(t *testing.T) {
	var out bytes.Buffer

	printer := status.NewPrinter(&out, termenv.WithProfile(termenv.Ascii))
	printer.Config(status.Summary{
		Device:   "qemu-amd64",
		UI:       "weston",
		Channel:  "edge",
		Pmaports: "master (abc123)",
	})

	expected := "*** CONFIG ***\n" +
		"Device:    qemu-amd64\n" +
		"UI:        weston\n" +
		"Channel:   edge\n" +
		"pmaports:  master (abc123)\n" +
		"\n"
	assert.Equal(t, expected, out.String())
}
