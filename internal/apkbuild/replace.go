// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild

import (
	"log/slog"
	"regexp"
	"strings"
)

// Shell variable references, applied in this order.
var (
	// ${foo}
	varBraces = regexp.MustCompile(`\${([a-zA-Z_]+[a-zA-Z0-9_]*)}`)
	// $foo
	varPlain = regexp.MustCompile(`\$([a-zA-Z_]+[a-zA-Z0-9_]*)`)
	// ${foo/search/replace}, ${foo/search/}, ${foo/search}
	varReplace = regexp.MustCompile(`\${([a-zA-Z_]+[a-zA-Z0-9_]*)/([^/]+)(?:/([^/]*?))?}`)
	// ${foo#prefix}
	varTrimPrefix = regexp.MustCompile(`\${([a-zA-Z_]+[a-zA-Z0-9_]*)#(.*)}`)
)

type replaceFunc func(value string, match []string) string

// ReplaceVariables resolves the shell variable references in the value with
// the given variables. Each reference found is replaced once. References to
// unknown variables stay as they are.
func ReplaceVariables(value string, vars map[string]string) string {
	passes := []struct {
		re      *regexp.Regexp
		replace replaceFunc
	}{
		{varBraces, func(v string, _ []string) string { return v }},
		{varPlain, func(v string, _ []string) string { return v }},
		{varReplace, func(v string, match []string) string {
			return strings.Replace(v, match[2], match[3], 1)
		}},
		{varTrimPrefix, func(v string, match []string) string {
			return strings.TrimPrefix(v, match[2])
		}},
	}

	for _, pass := range passes {
		for _, match := range pass.re.FindAllStringSubmatch(value, -1) {
			varValue, exists := vars[match[1]]
			if !exists {
				slog.Debug("Variable for replacement not found, ignoring",
					slog.String("pkgname", vars["pkgname"]),
					slog.String("key", match[1]),
					slog.String("reference", match[0]),
				)

				continue
			}

			value = strings.Replace(value, match[0], pass.replace(varValue, match), 1)
		}
	}

	return value
}
