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
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/epochs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectEvents(t *testing.T) {
	events := []epochs.Event{
		{Sample: 100, Before: 0, Code: 1},
		{Sample: 150, Before: 1, Code: 1},
		{Sample: 200, Before: 0, Code: 1},
	}

	selected := epochs.SelectEvents(events, 1)
	assert.Equal(t, []epochs.Event{
		{Sample: 100, Before: 0, Code: 1},
		{Sample: 200, Before: 0, Code: 1},
	}, selected)
}

func TestSelectEventsKeepsFileOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	events := make([]epochs.Event, 500)
	for i := range events {
		events[i] = epochs.Event{
			Sample: rng.Intn(100000),
			Before: rng.Intn(3),
			Code:   rng.Intn(4),
		}
	}

	selected := epochs.SelectEvents(events, 2)
	require.NotEmpty(t, selected)

	next := 0
	for _, ev := range selected {
		assert.Equal(t, 0, ev.Before)
		assert.Equal(t, 2, ev.Code)

		// Each selected event appears in the input after the previous one.
		for next < len(events) && events[next] != ev {
			next++
		}
		require.Less(t, next, len(events))
		next++
	}
}

func TestSelectEventsNoMatch(t *testing.T) {
	selected := epochs.SelectEvents([]epochs.Event{{Sample: 10, Before: 2, Code: 5}}, 5)
	assert.Empty(t, selected)
}

func TestEventFileName(t *testing.T) {
	name, err := epochs.EventFileName("MEG/sample/sample_audvis_raw.fif")
	require.NoError(t, err)
	assert.Equal(t, "MEG/sample/sample_audvis_raw-eve.fif", name)

	name, err = epochs.EventFileName("night1.EDF")
	require.NoError(t, err)
	assert.Equal(t, "night1-eve.EDF", name)

	for _, raw := range []string{"recording.dat", ".fif", "noext"} {
		_, err := epochs.EventFileName(raw)
		assert.ErrorIs(t, err, epochs.ErrEventFileName, raw)
	}
}

func TestWriteReadEvents(t *testing.T) {
	events := []epochs.Event{
		{Sample: 27977, Before: 0, Code: 2},
		{Sample: 28345, Before: 0, Code: 3},
		{Sample: 28771, Before: 3, Code: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, epochs.WriteEvents(&buf, events))

	got, err := epochs.ReadEvents(&buf)
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestReadEventsText(t *testing.T) {
	_, err := epochs.ReadEvents(bytes.NewBufferString("27977 46.6 0 2\n28345 47.2 0 3\n"))
	require.ErrorIs(t, err, epochs.ErrUnsupportedFormat)
}

func TestReadEventsTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, epochs.WriteEvents(&buf, []epochs.Event{{Sample: 1, Code: 1}, {Sample: 2, Code: 1}}))

	_, err := epochs.ReadEvents(bytes.NewReader(buf.Bytes()[:buf.Len()-4]))
	require.ErrorIs(t, err, epochs.ErrSourceUnavailable)
}

func TestReadEventsTextWithMagic(t *testing.T) {
	_, err := epochs.ReadEvents(bytes.NewBufferString("EVE1 list\n27977 0 2\n28345 0 3\n"))
	require.ErrorIs(t, err, epochs.ErrUnsupportedFormat)
}

func TestReadEventsOversizedCount(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("EVE1")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1<<24)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, [3]int32{100, 0, 1}))

	_, err := epochs.ReadEvents(&buf)
	require.ErrorIs(t, err, epochs.ErrSourceUnavailable)
}

func TestWriteEventsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		event epochs.Event
	}{
		{"sample too large", epochs.Event{Sample: math.MaxInt32 + 1, Code: 1}},
		{"negative sample", epochs.Event{Sample: -1, Code: 1}},
		{"code too large", epochs.Event{Sample: 1, Code: math.MaxInt32 + 1}},
		{"before too small", epochs.Event{Sample: 1, Before: math.MinInt32 - 1, Code: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := epochs.WriteEvents(&buf, []epochs.Event{{Sample: 10, Code: 1}, tt.event})
			require.Error(t, err)
		})
	}

	var buf bytes.Buffer
	require.NoError(t, epochs.WriteEvents(&buf, []epochs.Event{{Sample: math.MaxInt32, Code: 1}}))
	got, err := epochs.ReadEvents(&buf)
	require.NoError(t, err)
	assert.Equal(t, []epochs.Event{{Sample: math.MaxInt32, Code: 1}}, got)
}

func TestReadEventsFile(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "events.txt")
	require.NoError(t, os.WriteFile(txt, []byte("100 0 1\n"), 0o644))
	_, err := epochs.ReadEventsFile(txt)
	require.ErrorIs(t, err, epochs.ErrUnsupportedFormat)

	_, err = epochs.ReadEventsFile(filepath.Join(dir, "missing-eve.fif"))
	require.ErrorIs(t, err, epochs.ErrSourceUnavailable)

	path := filepath.Join(dir, "rec-eve.fif")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, epochs.WriteEvents(f, []epochs.Event{{Sample: 100, Code: 1}}))
	require.NoError(t, f.Close())

	events, err := epochs.ReadEventsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []epochs.Event{{Sample: 100, Code: 1}}, events)
}
