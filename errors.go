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
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSegmentRead       = errors.New("segment read failure")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCompensation      = errors.New("could not make the compensator")
	ErrEventFileName     = errors.New("raw file name does not end properly")
	ErrNoChannels        = errors.New("no channels selected")
)

// Stage identifies the pipeline stage a run failed in.
type Stage string

const (
	StageConfig       Stage = "config"
	StageOpen         Stage = "open"
	StageChannels     Stage = "channels"
	StageProjection   Stage = "projection"
	StageCompensation Stage = "compensation"
	StageEvents       Stage = "events"
	StageSegment      Stage = "segment"
)

// Error is a fatal run failure tagged with the stage that produced it.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of a run failure, or "" if err did not come from a run.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

func stageError(stage Stage, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Stage: stage, Err: err}
}
