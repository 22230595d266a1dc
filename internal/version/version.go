// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version implements the version comparison of the Alpine package
// manager apk.
//
// Versions consist of dot separated numbers, an optional letter, any number
// of suffixes like "_rc2" or "_git20200101" and an optional revision "-r3".
package version

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// ErrInvalidRule is returned if a check rule has no known operator.
var ErrInvalidRule = errors.New("invalid version rule")

type tokenType int

// The order matters for the validation of transitions between tokens and for
// comparison of versions of different length.
const (
	tokenInvalid tokenType = iota - 1
	tokenDigitOrZero
	tokenDigit
	tokenLetter
	tokenSuffix
	tokenSuffixNoSign
	tokenRevisionNoSign
	tokenEnd
)

var (
	preSuffixes  = []string{"alpha", "beta", "pre", "rc"}
	postSuffixes = []string{"cvs", "svn", "git", "hg", "p"}
)

type tokenizer struct {
	rest string
	typ  tokenType
}

func newTokenizer(version string) *tokenizer {
	return &tokenizer{rest: version, typ: tokenDigit}
}

func (t *tokenizer) done() bool {
	return t.typ == tokenEnd || t.typ == tokenInvalid
}

// next consumes the token of the current type and returns its value. The type
// is advanced to the type of the following token.
func (t *tokenizer) next() int {
	if len(t.rest) == 0 {
		t.typ = tokenEnd
		return 0
	}

	var (
		value    int
		consumed int
		nextType = tokenInvalid
	)

	switch t.typ {
	case tokenDigitOrZero, tokenDigit, tokenSuffixNoSign, tokenRevisionNoSign:
		if t.typ == tokenDigitOrZero && t.rest[0] == '0' {
			for consumed < len(t.rest) && t.rest[consumed] == '0' {
				consumed++
			}

			value = -consumed

			// A digit following the zeros continues the same component.
			t.typ = tokenDigit
			if consumed < len(t.rest) && isDigit(t.rest[consumed]) {
				nextType = tokenDigit
			}

			break
		}

		for consumed < len(t.rest) && isDigit(t.rest[consumed]) {
			value = value*10 + int(t.rest[consumed]-'0')
			consumed++
		}
	case tokenLetter:
		value = int(t.rest[0])
		consumed = 1
	case tokenSuffix:
		var ok bool

		value, consumed, ok = parseSuffix(t.rest)
		if !ok {
			t.typ = tokenInvalid
			return -1
		}

		nextType = tokenSuffixNoSign
	default:
		t.typ = tokenInvalid
		return -1
	}

	t.rest = t.rest[consumed:]

	switch {
	case len(t.rest) == 0:
		t.typ = tokenEnd
	case nextType != tokenInvalid:
		t.typ = nextType
	default:
		t.advance()
	}

	return value
}

// advance determines the type of the next token from the separator or the
// character class of the rest.
func (t *tokenizer) advance() {
	next := tokenInvalid
	char := t.rest[0]

	switch {
	case (t.typ == tokenDigit || t.typ == tokenDigitOrZero) &&
		unicode.IsLower(rune(char)):
		next = tokenLetter
	case t.typ == tokenLetter && isDigit(char):
		next = tokenDigit
	case t.typ == tokenSuffixNoSign && isDigit(char):
		next = tokenDigit
	default:
		switch char {
		case '.':
			next = tokenDigitOrZero
		case '_':
			next = tokenSuffix
		case '-':
			if strings.HasPrefix(t.rest, "-r") {
				next = tokenRevisionNoSign
				t.rest = t.rest[1:]
			}
		}

		t.rest = t.rest[1:]
	}

	if next < t.typ && !allowedBackwards(t.typ, next) {
		next = tokenInvalid
	}

	t.typ = next
}

func allowedBackwards(from, to tokenType) bool {
	return (to == tokenDigitOrZero && from == tokenDigit) ||
		(to == tokenSuffix && from == tokenSuffixNoSign) ||
		(to == tokenDigit && from == tokenLetter)
}

// parseSuffix returns the value of the suffix the string starts with and its
// length. Pre-release suffixes have negative values.
func parseSuffix(s string) (int, int, bool) {
	for idx, suffix := range preSuffixes {
		if strings.HasPrefix(s, suffix) {
			return idx - len(preSuffixes), len(suffix), true
		}
	}

	for idx, suffix := range postSuffixes {
		if strings.HasPrefix(s, suffix) {
			return idx, len(suffix), true
		}
	}

	return 0, 0, false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Validate returns if the given string is a valid version.
func Validate(version string) bool {
	if version == "" {
		return false
	}

	tokens := newTokenizer(version)
	for !tokens.done() {
		tokens.next()
	}

	return tokens.typ == tokenEnd
}

// Compare compares two versions. The result is -1 if a is lower than b, 1 if
// a is greater than b and 0 if they are equal.
func Compare(a, b string) int {
	aTokens := newTokenizer(a)
	bTokens := newTokenizer(b)

	var aValue, bValue int

	for aTokens.typ == bTokens.typ && !aTokens.done() && aValue == bValue {
		aValue = aTokens.next()
		bValue = bTokens.next()
	}

	switch {
	case aValue < bValue:
		return -1
	case aValue > bValue:
		return 1
	case aTokens.typ == bTokens.typ:
		return 0
	}

	// All common components are equal. The longer version is greater, unless
	// it continues with a pre-release suffix.
	if aTokens.typ == tokenSuffix && aTokens.next() < 0 {
		return -1
	}

	if bTokens.typ == tokenSuffix && bTokens.next() < 0 {
		return 1
	}

	switch {
	case aTokens.typ > bTokens.typ:
		return -1
	case aTokens.typ < bTokens.typ:
		return 1
	default:
		return 0
	}
}

// operatorResults maps the rule operators to the accepted results of
// [Compare].
var operatorResults = []struct {
	operator string
	results  []int
}{
	{">=", []int{1, 0}},
	{"<", []int{-1}},
}

var preReleaseSuffix = regexp.MustCompile(`_(alpha|beta|pre|rc)[0-9]*`)

// CheckString returns if the version matches the rule, like ">=4.0.0" or
// "<5.2.0".
//
// Pre-release suffixes of the version are ignored, so a release candidate
// of a kernel satisfies the same rules as its release.
func CheckString(version, rule string) (bool, error) {
	version = preReleaseSuffix.ReplaceAllString(version, "")

	for _, op := range operatorResults {
		other, found := strings.CutPrefix(rule, op.operator)
		if !found || other == "" {
			continue
		}

		return slices.Contains(op.results, Compare(version, other)), nil
	}

	return false, fmt.Errorf("%w: %s", ErrInvalidRule, rule)
}
