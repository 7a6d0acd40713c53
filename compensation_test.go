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
	"testing"

	"github.com/OpenPSG/epochs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func ctfInfo(grade int) *epochs.Info {
	return &epochs.Info{
		SamplingRate: 1200,
		Channels: []epochs.Channel{
			{Name: "MEG 1", Kind: epochs.KindMEG, CompGrade: grade},
			{Name: "MEG 2", Kind: epochs.KindMEG, CompGrade: grade},
			{Name: "REF 1", Kind: epochs.KindRefMEG},
		},
		Compensations: []epochs.Compensation{
			{
				Grade:    1,
				RowNames: []string{"MEG 1", "MEG 2"},
				ColNames: []string{"REF 1"},
				Data:     [][]float64{{0.5}, {0.25}},
			},
		},
	}
}

func TestReconcileEqualGradesIsIdentity(t *testing.T) {
	for grade := 0; grade < 5; grade++ {
		info := ctfInfo(grade)

		comp, err := epochs.Reconcile(info, grade, grade, false, nil)
		require.NoError(t, err)
		assert.Nil(t, comp.Matrix())
		assert.Equal(t, grade, comp.To)
	}
}

func TestReconcileKeepCurrent(t *testing.T) {
	for _, dest := range []int{0, 1, 3, 7} {
		info := ctfInfo(2)

		comp, err := epochs.Reconcile(info, 2, dest, true, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, comp.To)
		assert.Nil(t, comp.Matrix())
	}
}

func TestReconcileChangesGrade(t *testing.T) {
	info := ctfInfo(0)

	comp, err := epochs.Reconcile(info, 0, 1, false, nil)
	require.NoError(t, err)
	require.NotNil(t, comp.Matrix())

	out := comp.Apply(mat.NewDense(3, 1, []float64{2, 4, 2}))
	assert.InDelta(t, 1, out.At(0, 0), 1e-12)
	assert.InDelta(t, 3.5, out.At(1, 0), 1e-12)
	assert.InDelta(t, 2, out.At(2, 0), 1e-12)

	grade, err := epochs.CurrentGrade(info)
	require.NoError(t, err)
	assert.Equal(t, 1, grade)
	assert.Equal(t, 0, info.Channels[2].CompGrade)
}

func TestMakeCompensatorRoundTrip(t *testing.T) {
	info := ctfInfo(0)

	to, err := epochs.MakeCompensator(info, 0, 1)
	require.NoError(t, err)
	back, err := epochs.MakeCompensator(info, 1, 0)
	require.NoError(t, err)

	data := mat.NewDense(3, 2, []float64{2, -1, 4, 3, 2, 8})
	out := back.Apply(to.Apply(data))
	assert.True(t, mat.EqualApprox(data, out, 1e-12))
}

func TestReconcileMissingGrade(t *testing.T) {
	info := ctfInfo(2)

	_, err := epochs.Reconcile(info, 2, 0, false, nil)
	require.ErrorIs(t, err, epochs.ErrCompensation)

	for _, ch := range info.Channels[:2] {
		assert.Equal(t, 2, ch.CompGrade)
	}
}

func TestCurrentGradeInconsistent(t *testing.T) {
	info := ctfInfo(1)
	info.Channels[1].CompGrade = 3

	_, err := epochs.CurrentGrade(info)
	require.Error(t, err)
}

func TestCurrentGradeNoMEG(t *testing.T) {
	info := &epochs.Info{
		SamplingRate: 250,
		Channels:     []epochs.Channel{{Name: "EEG 001", Kind: epochs.KindEEG, CompGrade: 4}},
	}

	grade, err := epochs.CurrentGrade(info)
	require.NoError(t, err)
	assert.Equal(t, 0, grade)
}
