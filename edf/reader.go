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
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/epochs"
	"gonum.org/v1/gonum/mat"
)

// Reader gives random access to the samples of an EDF/EDF+ file.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	hdr := &Header{}
	hdr.Version = Version(strings.TrimSpace(string(b[0:8])))
	hdr.PatientID = strings.TrimSpace(string(b[8:88]))
	hdr.RecordingID = strings.TrimSpace(string(b[88:168]))
	dateStr := strings.TrimSpace(string(b[168:176]))
	timeStr := strings.TrimSpace(string(b[176:184]))

	startDate, err := time.Parse("02.01.06", dateStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", timeStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(strings.TrimSpace(string(b[184:192]))); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(strings.TrimSpace(string(b[236:244]))); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	hdr.DataRecordDuration, err = time.ParseDuration(strings.TrimSpace(string(b[244:252])) + "s")
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	if hdr.SignalCount, err = strconv.Atoi(strings.TrimSpace(string(b[252:256]))); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	// Signal headers are stored field by field, each field repeated for every signal.
	hdr.Signals = make([]Signal, hdr.SignalCount)
	fields := []struct {
		width int
		set   func(sig *Signal, v string)
	}{
		{16, func(sig *Signal, v string) { sig.Label = v }},
		{80, func(sig *Signal, v string) { sig.TransducerType = v }},
		{8, func(sig *Signal, v string) { sig.PhysicalDimension = v }},
		{8, func(sig *Signal, v string) { sig.PhysicalMin = parseFloat(v) }},
		{8, func(sig *Signal, v string) { sig.PhysicalMax = parseFloat(v) }},
		{8, func(sig *Signal, v string) { sig.DigitalMin = parseInt(v) }},
		{8, func(sig *Signal, v string) { sig.DigitalMax = parseInt(v) }},
		{80, func(sig *Signal, v string) { sig.Prefiltering = v }},
		{8, func(sig *Signal, v string) { sig.SamplesPerRecord = parseInt(v) }},
		{32, func(sig *Signal, v string) { sig.Reserved = v }},
	}
	for _, field := range fields {
		b := make([]byte, field.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, b); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			field.set(&hdr.Signals[i], strings.TrimSpace(string(b)))
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// Info returns the recording metadata.
func (er *Reader) Info() (*epochs.Info, error) {
	return er.hdr.Info()
}

// NumSamples returns the number of samples per signal in the file.
func (er *Reader) NumSamples() (int, error) {
	spr, err := er.hdr.SamplesPerRecord()
	if err != nil {
		return 0, err
	}
	return er.hdr.DataRecords * spr, nil
}

// ReadSegment returns the physical values of samples from..to (inclusive) of
// the picked signals.
func (er *Reader) ReadSegment(from, to int, picks []int) (*mat.Dense, error) {
	total, err := er.NumSamples()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", epochs.ErrSegmentRead, err)
	}
	if from < 0 || to >= total || from > to {
		return nil, fmt.Errorf("%w: samples [%d, %d] outside [0, %d)", epochs.ErrSegmentRead, from, to, total)
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: no signals picked", epochs.ErrSegmentRead)
	}

	// Byte offset of each signal within a record
	offsets := make([]int, len(er.hdr.Signals))
	recordSize := 0
	for i, sig := range er.hdr.Signals {
		offsets[i] = recordSize
		recordSize += sig.SamplesPerRecord * 2
	}
	for _, k := range picks {
		if k < 0 || k >= len(er.hdr.Signals) {
			return nil, fmt.Errorf("%w: signal index %d out of range", epochs.ErrSegmentRead, k)
		}
	}

	spr := er.hdr.Signals[0].SamplesPerRecord
	data := mat.NewDense(len(picks), to-from+1, nil)
	buf := make([]byte, recordSize)

	for rec := from / spr; rec <= to/spr; rec++ {
		pos := int64(er.hdr.HeaderBytes) + int64(rec)*int64(recordSize)
		if _, err := er.r.Seek(pos, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: error seeking to position: %v", epochs.ErrSegmentRead, err)
		}
		if _, err := io.ReadFull(er.r, buf); err != nil {
			return nil, fmt.Errorf("%w: error reading data record %d: %v", epochs.ErrSegmentRead, rec, err)
		}

		first, last := max(from, rec*spr), min(to, (rec+1)*spr-1)
		for i, k := range picks {
			sig := er.hdr.Signals[k]
			for s := first; s <= last; s++ {
				off := offsets[k] + (s-rec*spr)*2
				digital := int16(binary.LittleEndian.Uint16(buf[off:]))
				data.Set(i, s-from, convertDigitalToPhysical(digital, sig.DigitalMin, sig.DigitalMax, sig.PhysicalMin, sig.PhysicalMax))
			}
		}
	}

	return data, nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
