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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// SegmentReader gives random access to a continuous recording.
type SegmentReader interface {
	// ReadSegment returns samples from..to (inclusive) of the picked channels
	// as a len(picks) x (to-from+1) block.
	ReadSegment(from, to int, picks []int) (*mat.Dense, error)
}

// FailurePolicy decides what a failed segment read does to a run.
type FailurePolicy int

const (
	// AbortOnFailure discards every epoch read so far and fails the run.
	AbortOnFailure FailurePolicy = iota
	// SkipOnFailure drops the failing epoch and carries on.
	SkipOnFailure
)

func (p FailurePolicy) String() string {
	if p == SkipOnFailure {
		return "skip"
	}
	return "abort"
}

// ParseFailurePolicy parses "abort" or "skip".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnFailure, nil
	case "skip":
		return SkipOnFailure, nil
	}
	return AbortOnFailure, fmt.Errorf("unknown segment failure policy %q", s)
}

// Extractor cuts epochs out of a continuous recording.
type Extractor struct {
	Info   *Info  // Recording metadata
	Picks  Picks  // Channels every epoch carries
	Window Window // Epoch extent around each event
	// Operator, when set, is an nchan x nchan matrix (projector times
	// compensator) applied to all channels before the picks are taken.
	Operator *mat.Dense
	Policy   FailurePolicy
	Logger   *slog.Logger
}

// Extract reads one epoch per event, in order, each tagged with code.
func (e *Extractor) Extract(ctx context.Context, src SegmentReader, events []Event, code int) (*Collection, error) {
	logger := orDiscard(e.Logger)

	if len(e.Picks) == 0 {
		return nil, stageError(StageChannels, ErrNoChannels)
	}
	if err := e.Window.Validate(); err != nil {
		return nil, err
	}

	fs := e.Info.SamplingRate
	readPicks, sel := e.plan()

	coll := &Collection{}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from, to := e.Window.Bounds(ev.Sample, fs)

		data, err := readBlock(src, from, to, readPicks, sel)
		if err != nil {
			if !errors.Is(err, ErrSegmentRead) {
				err = fmt.Errorf("%w: %v", ErrSegmentRead, err)
			}
			err = fmt.Errorf("event at sample %d [%d, %d]: %w", ev.Sample, from, to, err)

			if e.Policy == SkipOnFailure {
				logger.Warn("Skipping epoch", "error", err)
				coll.Skipped++
				continue
			}
			return nil, stageError(StageSegment, err)
		}

		if coll.Times == nil {
			coll.Times = make([]float64, to-from+1)
			for i := range coll.Times {
				coll.Times[i] = float64(from-ev.Sample+i) / fs
			}
		}

		coll.Epochs = append(coll.Epochs, &Epoch{
			Data:   data,
			TMin:   float64(from-e.Info.FirstSample) / fs,
			TMax:   float64(to-e.Info.FirstSample) / fs,
			Event:  code,
			Sample: ev.Sample,
		})
	}

	if coll.Len() > 0 {
		logger.Info("Read epochs", "count", coll.Len(), "samples", coll.SamplesPerEpoch())
	}

	return coll, nil
}

// plan returns the channels to read and, when an operator is set, the rows of
// the operator that produce the picks.
func (e *Extractor) plan() ([]int, *mat.Dense) {
	if e.Operator == nil {
		return e.Picks, nil
	}

	nchan := e.Info.NumChannels()
	sel := mat.NewDense(len(e.Picks), nchan, nil)
	for i, k := range e.Picks {
		for j := 0; j < nchan; j++ {
			sel.Set(i, j, e.Operator.At(k, j))
		}
	}
	return PickAll(e.Info), sel
}

func readBlock(src SegmentReader, from, to int, picks []int, sel *mat.Dense) (*mat.Dense, error) {
	data, err := src.ReadSegment(from, to, picks)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("no data returned")
	}
	if r, c := data.Dims(); r != len(picks) || c != to-from+1 {
		return nil, fmt.Errorf("expected %dx%d block, got %dx%d", len(picks), to-from+1, r, c)
	}

	if sel == nil {
		return data, nil
	}
	var out mat.Dense
	out.Mul(sel, data)
	return &out, nil
}
