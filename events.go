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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const (
	eventMagic     = "EVE1"
	maxEventCount  = 1 << 24
	eventPrealloc  = 4096
	eventSuffix    = "-eve"
	textSniffBytes = 64
)

// Raw file suffixes an event file name can be derived from.
var rawSuffixes = []string{".fif", ".edf"}

// Suffixes of text event lists.
var textEventSuffixes = []string{".txt", ".eve", ".lst", ".csv"}

// Event is a transition on the trigger channel.
type Event struct {
	Sample int // Sample index of the transition
	Before int // Trigger value before the transition
	Code   int // Trigger value after the transition
}

// SelectEvents returns, in file order, the events that move from a zero
// trigger value to code.
func SelectEvents(events []Event, code int) []Event {
	selected := []Event{}
	for _, ev := range events {
		if ev.Before == 0 && ev.Code == code {
			selected = append(selected, ev)
		}
	}
	return selected
}

// EventFileName derives the event file name from a raw data file name,
// e.g. sample_raw.fif becomes sample_raw-eve.fif.
func EventFileName(rawPath string) (string, error) {
	lower := strings.ToLower(rawPath)
	for _, ext := range rawSuffixes {
		if len(rawPath) > len(ext) && strings.HasSuffix(lower, ext) {
			base := rawPath[:len(rawPath)-len(ext)]
			return base + eventSuffix + rawPath[len(base):], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEventFileName, rawPath)
}

// ReadEventsFile reads a binary event file.
func ReadEventsFile(path string) ([]Event, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, textExt := range textEventSuffixes {
		if ext == textExt {
			return nil, fmt.Errorf("%w: text event file %s is not supported", ErrUnsupportedFormat, path)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	events, err := ReadEvents(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// ReadEvents decodes a binary event list.
func ReadEvents(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)

	head, peekErr := br.Peek(textSniffBytes)
	if len(head) < len(eventMagic) || string(head[:len(eventMagic)]) != eventMagic {
		if len(head) > 0 && looksLikeText(head) {
			return nil, fmt.Errorf("%w: text event files are not supported", ErrUnsupportedFormat)
		}
		if len(head) < len(eventMagic) && peekErr != nil {
			return nil, fmt.Errorf("%w: error reading event header: %v", ErrSourceUnavailable, peekErr)
		}
		return nil, fmt.Errorf("%w: not a binary event file", ErrUnsupportedFormat)
	}
	if len(head) > len(eventMagic) && looksLikeText(head) {
		return nil, fmt.Errorf("%w: text event files are not supported", ErrUnsupportedFormat)
	}
	if _, err := br.Discard(len(eventMagic)); err != nil {
		return nil, fmt.Errorf("%w: error reading event header: %v", ErrSourceUnavailable, err)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: error reading event count: %v", ErrSourceUnavailable, err)
	}
	if count > maxEventCount {
		return nil, fmt.Errorf("%w: implausible event count %d", ErrSourceUnavailable, count)
	}

	// The count is only trusted as far as records actually arrive.
	events := make([]Event, 0, min(int(count), eventPrealloc))
	for i := 0; i < int(count); i++ {
		var rec [3]int32
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: error reading event %d of %d: %v", ErrSourceUnavailable, i, count, err)
		}
		if rec[0] < 0 {
			return nil, fmt.Errorf("event %d: negative sample index %d", i, rec[0])
		}
		events = append(events, Event{Sample: int(rec[0]), Before: int(rec[1]), Code: int(rec[2])})
	}

	return events, nil
}

// WriteEvents encodes events in the binary event list format.
func WriteEvents(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(eventMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(events))); err != nil {
		return err
	}
	for i, ev := range events {
		if ev.Sample < 0 || ev.Sample > math.MaxInt32 {
			return fmt.Errorf("event %d: sample index %d out of range", i, ev.Sample)
		}
		if !fitsInt32(ev.Before) || !fitsInt32(ev.Code) {
			return fmt.Errorf("event %d: trigger values %d -> %d out of range", i, ev.Before, ev.Code)
		}
		rec := [3]int32{int32(ev.Sample), int32(ev.Before), int32(ev.Code)}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func fitsInt32(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func looksLikeText(b []byte) bool {
	for _, c := range b {
		switch {
		case c == '\n' || c == '\r' || c == '\t':
		case c >= 0x20 && c < 0x7f:
		default:
			return false
		}
	}
	return true
}
