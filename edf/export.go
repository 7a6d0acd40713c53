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
	"io"
	"math"
	"time"

	"github.com/OpenPSG/epochs"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// EpochHeader describes an epoch export.
type EpochHeader struct {
	PatientID    string
	StartTime    time.Time
	SamplingRate float64
	Channels     []string // Names of the rows of each epoch
}

// WriteEpochs writes a collection as an EDF file with one data record per
// epoch. The physical range of each channel spans all epochs.
func WriteEpochs(w io.WriteSeeker, eh EpochHeader, coll *epochs.Collection) error {
	if coll.Len() == 0 {
		return fmt.Errorf("no epochs to write")
	}
	if !(eh.SamplingRate > 0) {
		return fmt.Errorf("invalid sampling rate: %v", eh.SamplingRate)
	}

	nchan, nsamp := coll.Epochs[0].Data.Dims()
	if len(eh.Channels) != nchan {
		return fmt.Errorf("expected %d channel names, got %d", nchan, len(eh.Channels))
	}

	pmin := make([]float64, nchan)
	pmax := make([]float64, nchan)
	for i := range pmin {
		pmin[i], pmax[i] = math.Inf(1), math.Inf(-1)
	}
	for _, ep := range coll.Epochs {
		if r, c := ep.Data.Dims(); r != nchan || c != nsamp {
			return fmt.Errorf("epoch at sample %d is %dx%d, expected %dx%d", ep.Sample, r, c, nchan, nsamp)
		}
		for i := 0; i < nchan; i++ {
			row := ep.Data.RawRowView(i)
			pmin[i] = math.Min(pmin[i], floats.Min(row))
			pmax[i] = math.Max(pmax[i], floats.Max(row))
		}
	}

	hdr := Header{
		Version:            Version0,
		PatientID:          eh.PatientID,
		RecordingID:        fmt.Sprintf("Epochs event=%d n=%d", coll.Epochs[0].Event, coll.Len()),
		StartTime:          eh.StartTime,
		DataRecordDuration: time.Duration(float64(nsamp) / eh.SamplingRate * float64(time.Second)),
		SignalCount:        nchan,
	}
	for i, name := range eh.Channels {
		lo, hi := pmin[i], pmax[i]
		if lo == hi {
			d := math.Abs(lo)
			if d == 0 {
				d = 1
			}
			lo, hi = lo-d, hi+d
		}
		lo, hi = physicalBound(lo, false), physicalBound(hi, true)
		hdr.Signals = append(hdr.Signals, Signal{
			Label:            name,
			PhysicalMin:      lo,
			PhysicalMax:      hi,
			DigitalMin:       math.MinInt16,
			DigitalMax:       math.MaxInt16,
			SamplesPerRecord: nsamp,
		})
	}

	ew, err := Create(w, hdr)
	if err != nil {
		return err
	}
	for _, ep := range coll.Epochs {
		if err := ew.WriteRecord(rows(ep.Data)); err != nil {
			return fmt.Errorf("error writing epoch at sample %d: %w", ep.Sample, err)
		}
	}
	return ew.Close()
}

// physicalBound returns the closest value to v that survives the 8 character
// header field without cutting into the data: at or above v when up is set,
// at or below it otherwise.
func physicalBound(v float64, up bool) float64 {
	step := math.Abs(v) * 1e-9
	x := v
	for i := 0; i < 64; i++ {
		b := parseFloat(formatNumber(x))
		if (up && b >= v) || (!up && b <= v) {
			return b
		}
		if up {
			x = v + step
		} else {
			x = v - step
		}
		step *= 2
	}
	return v
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
