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
	"errors"
	"testing"

	"github.com/OpenPSG/epochs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCache(t *testing.T) {
	var cache epochs.InfoCache
	loads := 0
	load := func() (*epochs.Info, error) {
		loads++
		return megInfo(100, "MEG 1", "MEG 2"), nil
	}

	info, err := cache.Get("a.fif", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, "a.fif", cache.Path())

	// Callers get copies.
	info.Channels[0].Name = "changed"
	info, err = cache.Get("a.fif", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, "MEG 1", info.Channels[0].Name)

	_, err = cache.Get("b.fif", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, "b.fif", cache.Path())

	cache.Invalidate()
	assert.Empty(t, cache.Path())
	_, err = cache.Get("b.fif", load)
	require.NoError(t, err)
	assert.Equal(t, 3, loads)
}

func TestInfoCacheLoadError(t *testing.T) {
	var cache epochs.InfoCache

	_, err := cache.Get("a.fif", func() (*epochs.Info, error) {
		return megInfo(100, "MEG 1"), nil
	})
	require.NoError(t, err)

	_, err = cache.Get("broken.fif", func() (*epochs.Info, error) {
		return nil, errors.New("corrupt")
	})
	require.Error(t, err)
	assert.Empty(t, cache.Path())
}

func TestInfoCloneIsDeep(t *testing.T) {
	info := ctfInfo(1)
	info.Projections = []epochs.Projection{
		{Channels: []string{"MEG 1"}, Vectors: [][]float64{{1}}},
	}

	c := info.Clone()
	c.Channels[0].CompGrade = 0
	c.Projections[0].Active = true
	c.Projections[0].Vectors[0][0] = 5
	c.Compensations[0].Data[0][0] = 9

	assert.Equal(t, 1, info.Channels[0].CompGrade)
	assert.False(t, info.Projections[0].Active)
	assert.Equal(t, 1.0, info.Projections[0].Vectors[0][0])
	assert.Equal(t, 0.5, info.Compensations[0].Data[0][0])
}
