// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// INI is an INI file with ordered sections and keys.
//
// The text format is compatible with the one of Python's configparser, that
// was used to write the existing files: "key = value" lines and an empty line
// after each section.
type INI struct {
	sections []*Section
}

// Section is a named section of an [INI] file.
type Section struct {
	Name   string
	keys   []string
	values map[string]string
}

// Keys returns the keys of the section in order.
func (s *Section) Keys() []string {
	return slices.Clone(s.keys)
}

// Get returns the value of the key and if it exists.
func (s *Section) Get(key string) (string, bool) {
	value, exists := s.values[key]
	return value, exists
}

// Set sets the value of a key. New keys are appended.
func (s *Section) Set(key, value string) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}

	s.values[key] = value
}

// Delete removes the key.
func (s *Section) Delete(key string) {
	if _, exists := s.values[key]; !exists {
		return
	}

	delete(s.values, key)
	s.keys = slices.DeleteFunc(s.keys, func(k string) bool {
		return k == key
	})
}

// Section returns the section with the given name, if it exists.
func (f *INI) Section(name string) (*Section, bool) {
	for _, section := range f.sections {
		if section.Name == name {
			return section, true
		}
	}

	return nil, false
}

// Sections returns all sections in order.
func (f *INI) Sections() []*Section {
	return slices.Clone(f.sections)
}

// EnsureSection returns the section with the given name. It is created if it
// does not exist.
func (f *INI) EnsureSection(name string) *Section {
	section, exists := f.Section(name)
	if !exists {
		section = &Section{Name: name, values: map[string]string{}}
		f.sections = append(f.sections, section)
	}

	return section
}

// ParseINI reads an INI file.
//
// Lines starting with "#" or ";" are comments. Keys are lower cased.
func ParseINI(r io.Reader) (*INI, error) {
	file := &INI{}

	var (
		current *Section
		lineNum int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "", line[0] == '#', line[0] == ';':
			continue
		case line[0] == '[':
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("%w: line %d: unclosed section header",
					ErrInvalidINI, lineNum)
			}

			current = file.EnsureSection(strings.TrimSpace(line[1 : len(line)-1]))
		default:
			if current == nil {
				return nil, fmt.Errorf("%w: line %d: key outside of section",
					ErrInvalidINI, lineNum)
			}

			idx := strings.IndexAny(line, "=:")
			if idx < 1 {
				return nil, fmt.Errorf("%w: line %d: missing delimiter",
					ErrInvalidINI, lineNum)
			}

			key := strings.ToLower(strings.TrimSpace(line[:idx]))
			current.Set(key, strings.TrimSpace(line[idx+1:]))
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read ini: %w", err)
	}

	return file, nil
}

// ReadINI reads the INI file at the given path.
func ReadINI(path string) (*INI, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	ini, err := ParseINI(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return ini, nil
}

// WriteTo writes the file in INI format.
func (f *INI) WriteTo(w io.Writer) (int64, error) {
	var builder strings.Builder

	for _, section := range f.sections {
		builder.WriteString("[" + section.Name + "]\n")

		for _, key := range section.keys {
			builder.WriteString(key + " = " + section.values[key] + "\n")
		}

		builder.WriteString("\n")
	}

	n, err := io.WriteString(w, builder.String())
	if err != nil {
		return int64(n), fmt.Errorf("write ini: %w", err)
	}

	return int64(n), nil
}

// WriteFile writes the INI file to the given path.
func (f *INI) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	_, err = f.WriteTo(file)
	if err != nil {
		_ = file.Close()
		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}
