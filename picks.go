// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package epochs

// Picks is an ordered set of channel indices.
type Picks []int

// Names returns the channel names of the picks.
func (p Picks) Names(info *Info) []string {
	names := make([]string, len(p))
	for i, k := range p {
		names[i] = info.Channels[k].Name
	}
	return names
}

// PickOptions selects channels by modality and name.
type PickOptions struct {
	MEG     bool     // Include MEG sensors
	EEG     bool     // Include EEG electrodes
	Stim    bool     // Include stimulus channels
	EOG     bool     // Include EOG channels
	ECG     bool     // Include ECG channels
	Include []string // Channels to include regardless of modality
	Exclude []string // Channels to drop, typically the bad channels
}

// ChannelSelection is either all channels or a filtered subset.
type ChannelSelection struct {
	All     bool
	Options PickOptions
}

// SelectChannels resolves the working channel subset. A filtered selection
// may legitimately be empty; Pipeline.Run and Extractor.Extract reject an
// empty subset with ErrNoChannels since an epoch needs at least one row.
func SelectChannels(info *Info, sel ChannelSelection) Picks {
	if sel.All {
		return PickAll(info)
	}
	return PickTypes(info, sel.Options)
}

// PickAll returns every channel index in ascending order.
func PickAll(info *Info) Picks {
	picks := make(Picks, info.NumChannels())
	for k := range picks {
		picks[k] = k
	}
	return picks
}

// PickTypes returns the channels matching a requested modality or named in
// Include, minus the channels named in Exclude.
func PickTypes(info *Info, opts PickOptions) Picks {
	include := toSet(opts.Include)
	exclude := toSet(opts.Exclude)

	picks := Picks{}
	for k, ch := range info.Channels {
		if _, ok := exclude[ch.Name]; ok {
			continue
		}
		_, named := include[ch.Name]
		if named || opts.wants(ch.Kind) {
			picks = append(picks, k)
		}
	}
	return picks
}

func (opts PickOptions) wants(kind Kind) bool {
	switch kind {
	case KindMEG:
		return opts.MEG
	case KindEEG:
		return opts.EEG
	case KindStim:
		return opts.Stim
	case KindEOG:
		return opts.EOG
	case KindECG:
		return opts.ECG
	}
	return false
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
