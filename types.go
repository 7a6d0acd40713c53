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

	"gonum.org/v1/gonum/mat"
)

// Kind is the modality of a channel.
type Kind int

const (
	KindMisc   Kind = iota // Anything not covered below
	KindMEG                // MEG sensor (magnetometer or gradiometer)
	KindRefMEG             // MEG reference sensor used for compensation
	KindEEG                // EEG electrode
	KindStim               // Stimulus/trigger channel
	KindEOG                // Electro-oculogram
	KindECG                // Electrocardiogram
)

func (k Kind) String() string {
	switch k {
	case KindMEG:
		return "MEG"
	case KindRefMEG:
		return "REF_MEG"
	case KindEEG:
		return "EEG"
	case KindStim:
		return "STIM"
	case KindEOG:
		return "EOG"
	case KindECG:
		return "ECG"
	default:
		return "MISC"
	}
}

// Channel describes a single recorded channel.
type Channel struct {
	Name      string // Channel name (e.g., MEG 0113, EEG 001, STI 014)
	Kind      Kind   // Modality of the channel
	Bad       bool   // Marked as a bad channel
	CompGrade int    // Compensation grade the channel data is recorded in
}

// Info is the measurement metadata of a continuous recording.
type Info struct {
	Channels      []Channel      // Channel descriptors, in recording order
	SamplingRate  float64        // Sampling rate in Hz
	FirstSample   int            // Sample index of the first sample in the recording
	Projections   []Projection   // SSP projection items
	Compensations []Compensation // Compensation matrices, one per grade
}

// NumChannels returns the number of channels in the recording.
func (info *Info) NumChannels() int {
	return len(info.Channels)
}

// ChannelNames returns the channel names in recording order.
func (info *Info) ChannelNames() []string {
	names := make([]string, len(info.Channels))
	for i, ch := range info.Channels {
		names[i] = ch.Name
	}
	return names
}

// Bads returns the names of the channels marked as bad.
func (info *Info) Bads() []string {
	var bads []string
	for _, ch := range info.Channels {
		if ch.Bad {
			bads = append(bads, ch.Name)
		}
	}
	return bads
}

// MarkBad flags the named channels as bad. Unknown names are ignored.
func (info *Info) MarkBad(names ...string) {
	idx := info.channelIndex()
	for _, name := range names {
		if i, ok := idx[name]; ok {
			info.Channels[i].Bad = true
		}
	}
}

// Validate checks the invariants the pipeline relies on.
func (info *Info) Validate() error {
	if !(info.SamplingRate > 0) {
		return fmt.Errorf("invalid sampling rate: %v", info.SamplingRate)
	}
	if len(info.Channels) == 0 {
		return fmt.Errorf("no channels")
	}
	seen := make(map[string]struct{}, len(info.Channels))
	for _, ch := range info.Channels {
		if _, ok := seen[ch.Name]; ok {
			return fmt.Errorf("duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the metadata. Concurrent runs must each work
// on their own copy.
func (info *Info) Clone() *Info {
	c := &Info{
		Channels:     append([]Channel(nil), info.Channels...),
		SamplingRate: info.SamplingRate,
		FirstSample:  info.FirstSample,
	}
	for _, p := range info.Projections {
		c.Projections = append(c.Projections, p.clone())
	}
	for _, comp := range info.Compensations {
		c.Compensations = append(c.Compensations, comp.clone())
	}
	return c
}

func (info *Info) channelIndex() map[string]int {
	idx := make(map[string]int, len(info.Channels))
	for i, ch := range info.Channels {
		idx[ch.Name] = i
	}
	return idx
}

// Epoch is a fixed-length multichannel window extracted around one event.
type Epoch struct {
	Data   *mat.Dense // Samples, picks x window length
	TMin   float64    // Start time relative to the first sample of the recording
	TMax   float64    // End time relative to the first sample of the recording
	Event  int        // Event code the epoch was matched on
	Sample int        // Sample index of the event
}

// Collection holds the epochs of one extraction run in event order.
type Collection struct {
	Epochs  []*Epoch
	Times   []float64 // Time axis relative to the event, shared by all epochs
	Skipped int       // Epochs dropped by SkipOnFailure
}

// Len returns the number of epochs.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Epochs)
}

// SamplesPerEpoch returns the window length in samples, 0 for an empty collection.
func (c *Collection) SamplesPerEpoch() int {
	return len(c.Times)
}
