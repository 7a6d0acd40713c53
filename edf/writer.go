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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.SignalCount != len(hdr.Signals) {
		return nil, fmt.Errorf("signal count %d does not match %d signals", hdr.SignalCount, len(hdr.Signals))
	}
	hdr.DataRecords = -1 // Unknown number of data records (at this time).

	// Samples are encoded against the physical range as it reads back from
	// the header, not the in-memory value.
	hdr.Signals = append([]Signal(nil), hdr.Signals...)
	for i := range hdr.Signals {
		hdr.Signals[i].PhysicalMin = parseFloat(formatNumber(hdr.Signals[i].PhysicalMin))
		hdr.Signals[i].PhysicalMax = parseFloat(formatNumber(hdr.Signals[i].PhysicalMax))
	}

	ew := &Writer{w: w, hdr: &hdr}

	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record, one sample slice per signal.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}
	for i, signal := range signals {
		if len(signal) != ew.hdr.Signals[i].SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, ew.hdr.Signals[i].SamplesPerRecord, len(signal))
		}
	}

	// Records are appended after whatever was written last, the header
	// rewrite in Close seeks back to the start.
	pos := int64(ew.hdr.HeaderBytes) + int64(ew.dataRecords)*int64(ew.recordSize())
	if _, err := ew.w.Seek(pos, io.SeekStart); err != nil {
		return err
	}

	writer := bufio.NewWriter(ew.w)
	for i, signal := range signals {
		sig := ew.hdr.Signals[i]
		for _, sample := range signal {
			digital := convertPhysicalToDigital(sample, sig.PhysicalMin, sig.PhysicalMax, sig.DigitalMin, sig.DigitalMax)
			if err := binary.Write(writer, binary.LittleEndian, digital); err != nil {
				return err
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

func (ew *Writer) recordSize() int {
	size := 0
	for _, sig := range ew.hdr.Signals {
		size += sig.SamplesPerRecord * 2
	}
	return size
}

// writeHeader (re)writes the header at the start of the file.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	ew.hdr.HeaderBytes = 256 + (ew.hdr.SignalCount * 256)

	writer := bufio.NewWriter(ew.w)
	put := func(width int, v string) {
		writer.WriteString(field(width, v))
	}

	put(8, string(ew.hdr.Version))
	put(80, ew.hdr.PatientID)
	put(80, ew.hdr.RecordingID)
	put(8, ew.hdr.StartTime.Format("02.01.06"))
	put(8, ew.hdr.StartTime.Format("15.04.05"))
	put(8, strconv.Itoa(ew.hdr.HeaderBytes))
	put(44, "")
	put(8, strconv.Itoa(ew.hdr.DataRecords))
	put(8, formatNumber(ew.hdr.DataRecordDuration.Seconds()))
	put(4, strconv.Itoa(ew.hdr.SignalCount))

	signalFields := []struct {
		width int
		get   func(sig Signal) string
	}{
		{16, func(sig Signal) string { return sig.Label }},
		{80, func(sig Signal) string { return sig.TransducerType }},
		{8, func(sig Signal) string { return sig.PhysicalDimension }},
		{8, func(sig Signal) string { return formatNumber(sig.PhysicalMin) }},
		{8, func(sig Signal) string { return formatNumber(sig.PhysicalMax) }},
		{8, func(sig Signal) string { return strconv.Itoa(sig.DigitalMin) }},
		{8, func(sig Signal) string { return strconv.Itoa(sig.DigitalMax) }},
		{80, func(sig Signal) string { return sig.Prefiltering }},
		{8, func(sig Signal) string { return strconv.Itoa(sig.SamplesPerRecord) }},
		{32, func(sig Signal) string { return "" }},
	}
	for _, f := range signalFields {
		for _, sig := range ew.hdr.Signals {
			put(f.width, f.get(sig))
		}
	}

	return writer.Flush()
}

// field left-aligns v in a space padded field, truncating if needed.
func field(width int, v string) string {
	if len(v) > width {
		v = v[:width]
	}
	return fmt.Sprintf("%-*s", width, v)
}

// formatNumber renders a value in at most 8 characters, picking whichever of
// fixed or exponent notation reads back closest to val.
func formatNumber(val float64) string {
	best, bestErr := "", math.Inf(1)
	try := func(s string) {
		if len(s) > 8 {
			return
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return
		}
		if e := math.Abs(f - val); e < bestErr {
			best, bestErr = s, e
		}
	}

	for prec := 6; prec >= 0; prec-- {
		try(trimZeros(strconv.FormatFloat(val, 'f', prec, 64)))
	}
	for prec := 6; prec >= 1; prec-- {
		try(strconv.FormatFloat(val, 'g', prec, 64))
		try(strconv.FormatFloat(val, 'e', prec-1, 64))
	}

	if best == "" {
		return strconv.FormatFloat(val, 'g', -1, 64)
	}
	return best
}

func trimZeros(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			for len(s) > 0 && s[len(s)-1] == '0' {
				s = s[:len(s)-1]
			}
			if s[len(s)-1] == '.' {
				s = s[:len(s)-1]
			}
			break
		}
	}
	return s
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round(((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin))
	digital = math.Max(float64(dmin), math.Min(float64(dmax), digital))
	return int16(digital)
}
