// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes continuous recordings in the EDF format and
// serves them as epoch sources.
package edf

import (
	"fmt"
	"strings"
	"time"

	"github.com/OpenPSG/epochs"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record in seconds
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SamplesPerRecord returns the number of samples each signal contributes to a
// data record. Epoching needs a single sampling rate, so all signals must agree.
func (hdr *Header) SamplesPerRecord() (int, error) {
	if len(hdr.Signals) == 0 {
		return 0, fmt.Errorf("no signals")
	}
	spr := hdr.Signals[0].SamplesPerRecord
	for _, sig := range hdr.Signals[1:] {
		if sig.SamplesPerRecord != spr {
			return 0, fmt.Errorf("mixed sampling rates are not supported: %s has %d samples per record, expected %d",
				sig.Label, sig.SamplesPerRecord, spr)
		}
	}
	if spr <= 0 {
		return 0, fmt.Errorf("invalid samples per record: %d", spr)
	}
	return spr, nil
}

// SamplingRate returns the common sampling rate of the signals in Hz.
func (hdr *Header) SamplingRate() (float64, error) {
	spr, err := hdr.SamplesPerRecord()
	if err != nil {
		return 0, err
	}
	if hdr.DataRecordDuration <= 0 {
		return 0, fmt.Errorf("invalid data record duration: %s", hdr.DataRecordDuration)
	}
	return float64(spr) / hdr.DataRecordDuration.Seconds(), nil
}

// Info converts the header into epoch extraction metadata.
func (hdr *Header) Info() (*epochs.Info, error) {
	fs, err := hdr.SamplingRate()
	if err != nil {
		return nil, err
	}

	info := &epochs.Info{SamplingRate: fs}
	for _, sig := range hdr.Signals {
		info.Channels = append(info.Channels, epochs.Channel{
			Name: sig.Label,
			Kind: kindOf(sig),
		})
	}
	return info, nil
}

// kindOf guesses the modality of a signal from its label.
func kindOf(sig Signal) epochs.Kind {
	label := strings.ToUpper(sig.Label)
	switch {
	case strings.HasPrefix(label, "MEG"):
		return epochs.KindMEG
	case strings.HasPrefix(label, "REF"):
		return epochs.KindRefMEG
	case strings.HasPrefix(label, "EEG"):
		return epochs.KindEEG
	case strings.HasPrefix(label, "EOG"):
		return epochs.KindEOG
	case strings.HasPrefix(label, "ECG"), strings.HasPrefix(label, "EKG"):
		return epochs.KindECG
	case strings.HasPrefix(label, "STI"), strings.HasPrefix(label, "TRIG"), label == "STATUS":
		return epochs.KindStim
	}
	return epochs.KindMisc
}
