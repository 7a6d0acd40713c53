// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads extraction run settings from TOML files and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/OpenPSG/epochs"
)

// Defaults.
const (
	DefaultEvent = 1
	DefaultTMin  = -1.5
	DefaultTMax  = 1.5
)

// Config is the run configuration as written in a config file.
type Config struct {
	Raw              string       `toml:"raw"`
	Events           string       `toml:"events"`
	Event            int          `toml:"event"`
	TMin             float64      `toml:"tmin"`
	TMax             float64      `toml:"tmax"`
	KeepComp         bool         `toml:"keep_comp"`
	DestComp         int          `toml:"dest_comp"`
	PickAll          bool         `toml:"pick_all"`
	OnSegmentFailure string       `toml:"on_segment_failure"`
	Bads             []string     `toml:"bads"`
	Picks            Picks        `toml:"picks"`
	Projections      []Projection `toml:"projection"`
}

// Picks is the filtered channel selection used when pick_all is false.
type Picks struct {
	MEG     bool     `toml:"meg"`
	EEG     bool     `toml:"eeg"`
	Stim    bool     `toml:"stim"`
	EOG     bool     `toml:"eog"`
	ECG     bool     `toml:"ecg"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// Projection is an extra SSP item.
type Projection struct {
	Description string      `toml:"description"`
	Channels    []string    `toml:"channels"`
	Vectors     [][]float64 `toml:"vectors"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Event:            DefaultEvent,
		TMin:             DefaultTMin,
		TMax:             DefaultTMax,
		PickAll:          true,
		OnSegmentFailure: epochs.AbortOnFailure.String(),
	}
}

// Load reads the config file at path on top of the defaults and applies the
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("EPOCHS_RAW"); v != "" {
		cfg.Raw = v
	}
	if v := os.Getenv("EPOCHS_EVENTS"); v != "" {
		cfg.Events = v
	}
	if v := os.Getenv("EPOCHS_EVENT"); v != "" {
		event, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid EPOCHS_EVENT %q: %w", v, err)
		}
		cfg.Event = event
	}
	return nil
}

// RunConfig converts the file configuration into an extraction run.
func (cfg *Config) RunConfig() (epochs.Config, error) {
	policy, err := epochs.ParseFailurePolicy(cfg.OnSegmentFailure)
	if err != nil {
		return epochs.Config{}, err
	}

	run := epochs.Config{
		RawPath:   cfg.Raw,
		EventPath: cfg.Events,
		Event:     cfg.Event,
		Window:    epochs.Window{TMin: cfg.TMin, TMax: cfg.TMax},
		KeepComp:  cfg.KeepComp,
		DestComp:  cfg.DestComp,
		Channels: epochs.ChannelSelection{
			All: cfg.PickAll,
			Options: epochs.PickOptions{
				MEG:     cfg.Picks.MEG,
				EEG:     cfg.Picks.EEG,
				Stim:    cfg.Picks.Stim,
				EOG:     cfg.Picks.EOG,
				ECG:     cfg.Picks.ECG,
				Include: cfg.Picks.Include,
				Exclude: cfg.Picks.Exclude,
			},
		},
		Bads:   cfg.Bads,
		Policy: policy,
	}
	for _, p := range cfg.Projections {
		run.Projections = append(run.Projections, epochs.Projection{
			Description: p.Description,
			Channels:    p.Channels,
			Vectors:     p.Vectors,
		})
	}

	return run, nil
}
