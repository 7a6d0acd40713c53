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
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// Compensation is the noise-cancellation matrix of one compensation grade.
// Rows are the compensated channels, columns the reference channels.
type Compensation struct {
	Grade    int
	RowNames []string
	ColNames []string
	Data     [][]float64 // len(RowNames) x len(ColNames)
}

func (c Compensation) clone() Compensation {
	out := c
	out.RowNames = append([]string(nil), c.RowNames...)
	out.ColNames = append([]string(nil), c.ColNames...)
	out.Data = make([][]float64, len(c.Data))
	for i, row := range c.Data {
		out.Data[i] = append([]float64(nil), row...)
	}
	return out
}

// Compensator converts data between two compensation grades. The zero value
// is the identity.
type Compensator struct {
	From, To int
	op       *mat.Dense
}

// Matrix returns the nchan x nchan operator, or nil for the identity.
func (c *Compensator) Matrix() *mat.Dense {
	if c == nil {
		return nil
	}
	return c.op
}

// Apply compensates a full-channel sample block.
func (c *Compensator) Apply(data *mat.Dense) *mat.Dense {
	if c.Matrix() == nil {
		return data
	}
	var out mat.Dense
	out.Mul(c.op, data)
	return &out
}

// CurrentGrade returns the compensation grade of the MEG channels. Recordings
// without MEG channels are at grade 0.
func CurrentGrade(info *Info) (int, error) {
	grade, found := 0, false
	for _, ch := range info.Channels {
		if ch.Kind != KindMEG {
			continue
		}
		if found && ch.CompGrade != grade {
			return 0, fmt.Errorf("compensation is not consistent: %s is at grade %d, expected %d",
				ch.Name, ch.CompGrade, grade)
		}
		grade, found = ch.CompGrade, true
	}
	return grade, nil
}

// SetCurrentGrade returns a copy of chs with the MEG channels tagged with grade.
func SetCurrentGrade(chs []Channel, grade int) []Channel {
	out := append([]Channel(nil), chs...)
	for i := range out {
		if out[i].Kind == KindMEG {
			out[i].CompGrade = grade
		}
	}
	return out
}

// MakeCompensator builds the operator taking data from grade from to grade to:
// (I - C_to) * inv(I - C_from), with the grade 0 factors left out.
func MakeCompensator(info *Info, from, to int) (*Compensator, error) {
	if from == to {
		return &Compensator{From: from, To: to}, nil
	}

	nchan := info.NumChannels()
	eye := identity(nchan)

	var fromZero, zeroTo *mat.Dense
	if from != 0 {
		c, err := gradeMatrix(info, from)
		if err != nil {
			return nil, err
		}
		var m mat.Dense
		m.Sub(eye, c)
		var inv mat.Dense
		if err := inv.Inverse(&m); err != nil {
			return nil, fmt.Errorf("inverting grade %d compensation: %w", from, err)
		}
		fromZero = &inv
	}
	if to != 0 {
		c, err := gradeMatrix(info, to)
		if err != nil {
			return nil, err
		}
		var m mat.Dense
		m.Sub(eye, c)
		zeroTo = &m
	}

	var op *mat.Dense
	switch {
	case fromZero != nil && zeroTo != nil:
		op = new(mat.Dense)
		op.Mul(zeroTo, fromZero)
	case fromZero != nil:
		op = fromZero
	default:
		op = zeroTo
	}

	return &Compensator{From: from, To: to, op: op}, nil
}

// Reconcile bridges the current compensation grade and the destination grade.
// With keepCurrent the destination is the current grade. On success the MEG
// channels of info are retagged with the destination grade.
func Reconcile(info *Info, current, dest int, keepCurrent bool, logger *slog.Logger) (*Compensator, error) {
	logger = orDiscard(logger)

	if current > 0 {
		logger.Info("Current compensation grade", "grade", current)
	}
	if keepCurrent {
		dest = current
	}
	if current == dest {
		return &Compensator{From: current, To: dest}, nil
	}

	comp, err := MakeCompensator(info, current, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: grade %d to %d: %v", ErrCompensation, current, dest, err)
	}
	info.Channels = SetCurrentGrade(info.Channels, dest)
	logger.Info("Appropriate compensator added", "grade", dest)

	return comp, nil
}

// gradeMatrix maps the compensation matrix of grade onto the full channel space.
func gradeMatrix(info *Info, grade int) (*mat.Dense, error) {
	for _, comp := range info.Compensations {
		if comp.Grade != grade {
			continue
		}

		if len(comp.Data) != len(comp.RowNames) {
			return nil, fmt.Errorf("grade %d compensation: expected %d rows, got %d",
				grade, len(comp.RowNames), len(comp.Data))
		}

		idx := info.channelIndex()
		nchan := info.NumChannels()
		c := mat.NewDense(nchan, nchan, nil)
		for r, rowName := range comp.RowNames {
			i, ok := idx[rowName]
			if !ok {
				return nil, fmt.Errorf("grade %d compensation channel %q not found", grade, rowName)
			}
			if len(comp.Data[r]) != len(comp.ColNames) {
				return nil, fmt.Errorf("grade %d compensation row %d: expected %d values, got %d",
					grade, r, len(comp.ColNames), len(comp.Data[r]))
			}
			for k, colName := range comp.ColNames {
				j, ok := idx[colName]
				if !ok {
					return nil, fmt.Errorf("grade %d compensation channel %q not found", grade, colName)
				}
				c.Set(i, j, comp.Data[r][k])
			}
		}
		return c, nil
	}
	return nil, fmt.Errorf("desired compensation matrix (grade = %d) not found", grade)
}

func identity(n int) *mat.Dense {
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}
