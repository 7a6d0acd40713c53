// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epochs

import "sync"

// InfoCache holds the metadata of the most recently opened recording. It is
// refilled whenever a different path is requested and always hands out
// copies, so callers may mutate what they get. The zero value is ready to use.
type InfoCache struct {
	mu   sync.Mutex
	path string
	info *Info
}

// Get returns a copy of the metadata for path, calling load on a miss.
func (c *InfoCache) Get(path string, load func() (*Info, error)) (*Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info == nil || c.path != path {
		c.path, c.info = "", nil

		info, err := load()
		if err != nil {
			return nil, err
		}
		c.path, c.info = path, info.Clone()
	}

	return c.info.Clone(), nil
}

// Path returns the path of the cached metadata, or "" when empty.
func (c *InfoCache) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Invalidate drops the cached metadata.
func (c *InfoCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path, c.info = "", nil
}
