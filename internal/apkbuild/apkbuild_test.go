// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3ntu/pmbootstrap/internal/apkbuild"
)

func testdata(name string) string {
	return filepath.Join("testdata", "apkbuild", "APKBUILD."+name)
}

func writeAPKBUILD(t *testing.T, pkgname, content string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), pkgname)
	require.NoError(t, os.Mkdir(dir, 0o755))

	path := filepath.Join(dir, "APKBUILD")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParseAttribute(t *testing.T) {
	tests := []struct {
		name          string
		attr          string
		input         string
		expectedFound bool
		expectedValue string
		expectedLine  int
		expectedErr   error
	}{
		{
			name:  "other attribute",
			attr:  "depends",
			input: "pkgname='test'",
		},
		{
			name:          "double quotes",
			attr:          "pkgname",
			input:         `pkgname="test"`,
			expectedFound: true,
			expectedValue: "test",
		},
		{
			name:          "single quotes",
			attr:          "pkgname",
			input:         "pkgname='test'",
			expectedFound: true,
			expectedValue: "test",
		},
		{
			name:          "no quotes",
			attr:          "pkgname",
			input:         "pkgname=test",
			expectedFound: true,
			expectedValue: "test",
		},
		{
			name:          "closing quote on next line",
			attr:          "pkgname",
			input:         "pkgname=\"test\n\"",
			expectedFound: true,
			expectedValue: "test",
			expectedLine:  1,
		},
		{
			name:          "value on own line",
			attr:          "pkgname",
			input:         "pkgname=\"\ntest\n\"",
			expectedFound: true,
			expectedValue: "test",
			expectedLine:  2,
		},
		{
			name:          "trailing comment",
			attr:          "pkgname",
			input:         `pkgname="test" # random comment`,
			expectedFound: true,
			expectedValue: "test",
		},
		{
			name:          "multi line with comment",
			attr:          "depends",
			input:         "depends='\nfirst\nsecond\nthird\n'#",
			expectedFound: true,
			expectedValue: "first second third",
			expectedLine:  4,
		},
		{
			name:          "multi line with tabs",
			attr:          "depends",
			input:         "depends=\"\nfirst\n\tsecond third\"",
			expectedFound: true,
			expectedValue: "first second third",
			expectedLine:  2,
		},
		{
			name:          "empty",
			attr:          "depends",
			input:         "depends=",
			expectedFound: true,
		},
		{
			name:        "missing closing quote",
			attr:        "depends",
			input:       "depends=\"\nmissing\n",
			expectedErr: apkbuild.ErrMissingClosingQuote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Split(tt.input, "\n")

			found, value, line, err := apkbuild.ParseAttribute(tt.attr, lines, 0, "APKBUILD")
			require.ErrorIs(t, err, tt.expectedErr)

			assert.Equal(t, tt.expectedFound, found, "found")
			assert.Equal(t, tt.expectedValue, value, "value")
			assert.Equal(t, tt.expectedLine, line, "line")
		})
	}
}

func TestParseSubpackages(t *testing.T) {
	path := testdata("subpackages")

	pkg, err := apkbuild.Parse(path, apkbuild.Options{SkipPkgnameCheck: true})
	require.NoError(t, err)

	assert.Equal(t, "subpackages", pkg.Pkgname)
	assert.Equal(t, "1.0.0-r2", pkg.VersionString())
	assert.Equal(t, []string{"all"}, pkg.Arch)
	assert.Equal(t, []string{
		"subpackages-simple",
		"subpackages-custom",
		"subpackages-dev",
	}, pkg.SubpackageNames)

	expected := map[string]*apkbuild.Subpackage{
		"subpackages-simple": {
			Name:    "subpackages-simple",
			Pkgdesc: "simple",
			Depends: []string{"postmarketos-base"},
		},
		"subpackages-custom": {
			Name:     "subpackages-custom",
			Pkgdesc:  "custom",
			Depends:  []string{"postmarketos-base", "glibc"},
			Provides: []string{"subpackages-custom-provided"},
		},
		"subpackages-dev": nil,
	}
	assert.Equal(t, expected, pkg.Subpackages)
	assert.Equal(t, []string{
		"subpackages",
		"subpackages-simple",
		"subpackages-custom",
		"subpackages-dev",
	}, pkg.AllSubpackageNames())
}

func TestParseVariableReplacements(t *testing.T) {
	path := testdata("variable-replacements")

	pkg, err := apkbuild.Parse(path, apkbuild.Options{SkipPkgnameCheck: true})
	require.NoError(t, err)

	assert.Equal(t, "variable-replacements test", pkg.Pkgdesc)
	assert.Equal(t, "replacements variable string-replacements", pkg.URL)
	assert.Equal(t, "variable-replacements-1.0.0", pkg.Var("_flavor"))
	assert.Equal(t, []string{"replacements", "test"}, pkg.SubpackageNames)
	assert.Equal(t, []string{
		"https://example.org/variable-replacements-1.0.0.tar.gz",
		"config-variable-replacements-1.0.0.armhf",
	}, pkg.Source)
}

func TestParseVariableForwardReference(t *testing.T) {
	path := testdata("forward-reference")

	pkg, err := apkbuild.Parse(path, apkbuild.Options{SkipPkgnameCheck: true})
	require.NoError(t, err)

	assert.Equal(t, "${pkgname} $_unknownvar $pkgver", pkg.Pkgdesc)
	assert.Equal(t, "https://example.org/forward-reference", pkg.URL)
	assert.Empty(t, pkg.Var("depends"))
}

func TestParseDependsInDepends(t *testing.T) {
	path := testdata("depends-in-depends")

	pkg, err := apkbuild.Parse(path, apkbuild.Options{SkipPkgnameCheck: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, pkg.Depends)
}

func TestParseMultiLineArray(t *testing.T) {
	path := testdata("lint")

	pkg, err := apkbuild.Parse(path, apkbuild.Options{SkipPkgnameCheck: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"gcc", "make"}, pkg.Makedepends)
	assert.Equal(t, []string{"!check"}, pkg.Options)
	assert.Empty(t, pkg.Subpackages)
}

func TestParseErrors(t *testing.T) {
	valid := "pkgname=test\npkgver=1.0.0\npkgrel=0\narch=\"all\"\n"

	tests := []struct {
		name        string
		pkgname     string
		content     string
		opts        apkbuild.Options
		expectedErr error
	}{
		{
			name:    "valid",
			pkgname: "test",
			content: valid,
		},
		{
			name:        "pkgname mismatch",
			pkgname:     "other",
			content:     valid,
			expectedErr: apkbuild.ErrPkgnameMismatch,
		},
		{
			name:    "pkgname mismatch skipped",
			pkgname: "other",
			content: valid,
			opts:    apkbuild.Options{SkipPkgnameCheck: true},
		},
		{
			name:        "crlf",
			pkgname:     "test",
			content:     strings.ReplaceAll(valid, "\n", "\r\n"),
			expectedErr: apkbuild.ErrCRLF,
		},
		{
			name:        "empty arch",
			pkgname:     "test",
			content:     "pkgname=test\npkgver=1.0.0\npkgrel=0\n",
			expectedErr: apkbuild.ErrEmptyArch,
		},
		{
			name:        "pkgver with pkgrel",
			pkgname:     "test",
			content:     "pkgname=test\npkgver=1.0.0-r1\npkgrel=0\narch=all\n",
			expectedErr: apkbuild.ErrInvalidPkgver,
		},
		{
			name:        "invalid pkgver",
			pkgname:     "test",
			content:     "pkgname=test\npkgver=1.0.0_invalid\npkgrel=0\narch=all\n",
			expectedErr: apkbuild.ErrInvalidPkgver,
		},
		{
			name:    "invalid pkgver skipped",
			pkgname: "test",
			content: "pkgname=test\npkgver=1.0.0_invalid\npkgrel=0\narch=all\n",
			opts:    apkbuild.Options{SkipPkgverCheck: true},
		},
		{
			name:        "missing closing quote",
			pkgname:     "test",
			content:     valid + "depends=\"first\nsecond\n",
			expectedErr: apkbuild.ErrMissingClosingQuote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAPKBUILD(t, tt.pkgname, tt.content)

			_, err := apkbuild.Parse(path, tt.opts)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, &apkbuild.ParseError{})
			}
		})
	}
}

func TestParseMissingFunctionEnd(t *testing.T) {
	_, err := apkbuild.Parse(testdata("missing-function-end"),
		apkbuild.Options{SkipPkgnameCheck: true})
	require.ErrorIs(t, err, apkbuild.ErrFunctionEnd)
}

func TestSubpackageDescription(t *testing.T) {
	desc, err := apkbuild.SubpackageDescription(testdata("subpackages"), "custom_function")
	require.NoError(t, err)
	assert.Equal(t, "custom", desc)

	path := testdata("missing-pkgdesc-in-subpackage")

	_, err = apkbuild.SubpackageDescription(path, "subpackage")
	require.ErrorIs(t, err, apkbuild.ErrPkgdescNotFound)

	_, err = apkbuild.SubpackageDescription(path, "does_not_exist")
	require.ErrorIs(t, err, apkbuild.ErrFunctionNotFound)
}

func TestFunctionBody(t *testing.T) {
	body, err := apkbuild.FunctionBody(testdata("subpackages"), "simple")
	require.NoError(t, err)
	assert.Equal(t, []string{"\tpkgdesc=\"simple\"", "\tmkdir \"$subpkgdir\""}, body)
}

func TestCache(t *testing.T) {
	var cache apkbuild.Cache

	opts := apkbuild.Options{SkipPkgnameCheck: true}

	first, err := cache.Get(testdata("subpackages"), opts)
	require.NoError(t, err)

	second, err := cache.Get(testdata("subpackages"), opts)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.Get(testdata("subpackages"), apkbuild.Options{})
	require.ErrorIs(t, err, apkbuild.ErrPkgnameMismatch)
	assert.Equal(t, 1, cache.Len())
}
