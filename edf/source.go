// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"fmt"
	"os"

	"github.com/OpenPSG/epochs"
)

// File is an EDF recording opened from disk.
type File struct {
	*Reader
	f *os.File
}

// OpenFile opens the EDF file at path.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", epochs.ErrSourceUnavailable, err)
	}

	r, err := Open(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %v", epochs.ErrSourceUnavailable, path, err)
	}

	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// Opener opens EDF recordings for an epochs.Pipeline.
func Opener(path string) (epochs.Source, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
