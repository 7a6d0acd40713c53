// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/epochs"
	"github.com/OpenPSG/epochs/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
raw = "MEG/sample/sample_audvis_raw.fif"
event = 3
tmin = -0.2
tmax = 0.5
dest_comp = 1
pick_all = false
on_segment_failure = "skip"
bads = ["MEG 2443", "EEG 053"]

[picks]
meg = true
include = ["STI 014"]

[[projection]]
description = "PCA-v1"
channels = ["MEG 0113", "MEG 0112"]
vectors = [[0.1, -0.2]]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "epochs.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	run, err := cfg.RunConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, run.Event)
	assert.Equal(t, epochs.Window{TMin: -1.5, TMax: 1.5}, run.Window)
	assert.True(t, run.Channels.All)
	assert.False(t, run.KeepComp)
	assert.Equal(t, 0, run.DestComp)
	assert.Equal(t, epochs.AbortOnFailure, run.Policy)
}

func TestLoadFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	run, err := cfg.RunConfig()
	require.NoError(t, err)

	assert.Equal(t, "MEG/sample/sample_audvis_raw.fif", run.RawPath)
	assert.Empty(t, run.EventPath)
	assert.Equal(t, 3, run.Event)
	assert.Equal(t, epochs.Window{TMin: -0.2, TMax: 0.5}, run.Window)
	assert.Equal(t, 1, run.DestComp)
	assert.Equal(t, epochs.SkipOnFailure, run.Policy)
	assert.Equal(t, []string{"MEG 2443", "EEG 053"}, run.Bads)
	assert.Equal(t, epochs.ChannelSelection{
		Options: epochs.PickOptions{MEG: true, Include: []string{"STI 014"}},
	}, run.Channels)
	require.Len(t, run.Projections, 1)
	assert.Equal(t, "PCA-v1", run.Projections[0].Description)
	assert.Equal(t, [][]float64{{0.1, -0.2}}, run.Projections[0].Vectors)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EPOCHS_RAW", "other_raw.fif")
	t.Setenv("EPOCHS_EVENTS", "other-eve.fif")
	t.Setenv("EPOCHS_EVENT", "5")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "other_raw.fif", cfg.Raw)
	assert.Equal(t, "other-eve.fif", cfg.Events)
	assert.Equal(t, 5, cfg.Event)

	t.Setenv("EPOCHS_EVENT", "five")
	_, err = config.Load("")
	require.Error(t, err)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := config.Load(writeConfig(t, "tmni = -0.2\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestRunConfigBadPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.OnSegmentFailure = "retry"

	_, err := cfg.RunConfig()
	require.Error(t, err)
}
