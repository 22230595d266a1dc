// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package apkbuild

import (
	"sync"
)

type cacheKey struct {
	path string
	opts Options
}

// Cache holds parsed APKBUILDs, so each file is only parsed once per
// invocation. It is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	items map[cacheKey]*APKBUILD
}

// Get returns the parsed APKBUILD for the given path. It is parsed on first
// access.
func (c *Cache) Get(path string, opts Options) (*APKBUILD, error) {
	key := cacheKey{path, opts}

	c.mu.Lock()
	defer c.mu.Unlock()

	if apkbuild, exists := c.items[key]; exists {
		return apkbuild, nil
	}

	apkbuild, err := Parse(path, opts)
	if err != nil {
		return nil, err
	}

	if c.items == nil {
		c.items = make(map[cacheKey]*APKBUILD)
	}

	c.items[key] = apkbuild

	return apkbuild, nil
}

// Len returns the number of cached APKBUILDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}
