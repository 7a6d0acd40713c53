// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epochs_test

import (
	"fmt"

	"github.com/OpenPSG/epochs"
	"gonum.org/v1/gonum/mat"
)

// memSource is an in-memory recording where channel k holds k*1000 + sample.
type memSource struct {
	info  *epochs.Info
	nsamp int
	fail  func(from, to int) bool
	reads [][]int // picks of every read
}

func newMemSource(info *epochs.Info, nsamp int) *memSource {
	return &memSource{info: info, nsamp: nsamp}
}

func (s *memSource) Info() (*epochs.Info, error) {
	return s.info, nil
}

func (s *memSource) ReadSegment(from, to int, picks []int) (*mat.Dense, error) {
	s.reads = append(s.reads, append([]int(nil), picks...))
	if s.fail != nil && s.fail(from, to) {
		return nil, fmt.Errorf("device error")
	}
	if from < 0 || to >= s.nsamp || from > to {
		return nil, fmt.Errorf("%w: [%d, %d] out of bounds", epochs.ErrSegmentRead, from, to)
	}

	out := mat.NewDense(len(picks), to-from+1, nil)
	for i, k := range picks {
		for j := from; j <= to; j++ {
			out.Set(i, j-from, sampleValue(k, j))
		}
	}
	return out, nil
}

func sampleValue(channel, sample int) float64 {
	return float64(channel*1000 + sample)
}

func megInfo(fs float64, names ...string) *epochs.Info {
	info := &epochs.Info{SamplingRate: fs}
	for _, name := range names {
		info.Channels = append(info.Channels, epochs.Channel{Name: name, Kind: epochs.KindMEG})
	}
	return info
}
