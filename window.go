// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epochs

import (
	"fmt"
	"math"
)

// Window is the epoch extent around an event, in seconds.
type Window struct {
	TMin float64
	TMax float64
}

// Validate checks that the window is well formed.
func (w Window) Validate() error {
	if math.IsNaN(w.TMin) || math.IsNaN(w.TMax) || math.IsInf(w.TMin, 0) || math.IsInf(w.TMax, 0) {
		return fmt.Errorf("invalid epoch window [%v, %v]", w.TMin, w.TMax)
	}
	if w.TMin > w.TMax {
		return fmt.Errorf("epoch window start %v is after end %v", w.TMin, w.TMax)
	}
	return nil
}

// Offsets returns the first and last sample of the window relative to the
// event. The start is rounded, the end is rounded half up.
func (w Window) Offsets(fs float64) (int, int) {
	return int(math.Round(w.TMin * fs)), int(math.Floor(w.TMax*fs + 0.5))
}

// Bounds returns the inclusive sample range of the window around eventSample.
func (w Window) Bounds(eventSample int, fs float64) (from, to int) {
	start, end := w.Offsets(fs)
	return eventSample + start, eventSample + end
}

// Len returns the number of samples in every epoch cut with this window.
func (w Window) Len(fs float64) int {
	start, end := w.Offsets(fs)
	return end - start + 1
}
