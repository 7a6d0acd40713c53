// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenPSG/epochs"
	"github.com/OpenPSG/epochs/config"
	"github.com/OpenPSG/epochs/edf"
)

type extractOptions struct {
	raw       string
	events    string
	event     int
	tmin      float64
	tmax      float64
	keepComp  bool
	destComp  int
	onFailure string
	out       string
	pickMEG   bool
	pickEEG   bool
	pickStim  bool
	pickEOG   bool
	pickECG   bool
	include   []string
	exclude   []string
	bads      []string
}

func NewExtractCmd(global *globalOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [raw.edf...]",
		Short: "Extract epochs around matching events",
		Long: "Extract epochs around matching events. Several recordings are processed\n" +
			"concurrently; with more than one, --out names a directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(global.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			opts.apply(cmd, cfg)

			raws := args
			if len(raws) == 0 {
				raws = []string{cfg.Raw}
			}
			if len(raws) > 1 && cfg.Events != "" {
				return fmt.Errorf("an event file can only be given for a single recording")
			}

			var runs []epochs.Config
			for _, raw := range raws {
				cfg.Raw = raw
				run, err := cfg.RunConfig()
				if err != nil {
					return err
				}
				runs = append(runs, run)
			}

			logger := newLogger(cmd.ErrOrStderr(), global.verbose)
			p := &epochs.Pipeline{
				Open:   edf.Opener,
				Logger: logger,
			}

			results, err := p.RunAll(cmd.Context(), runs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, res := range results {
				if len(results) > 1 {
					fmt.Fprintf(out, "Recording:       %s\n", runs[i].RawPath)
				}
				fmt.Fprintf(out, "Run:             %s\n", res.ID)
				fmt.Fprintf(out, "Channels:        %d\n", len(res.Picks))
				fmt.Fprintf(out, "Projector rank:  %d\n", res.ProjectorRank)
				fmt.Fprintf(out, "Compensation:    grade %d\n", res.CompGrade)
				fmt.Fprintf(out, "Matching events: %d\n", res.MatchedEvents)
				fmt.Fprintf(out, "Epochs:          %d (%d samples each)\n", res.Epochs.Len(), res.Epochs.SamplesPerEpoch())
				if res.Epochs.Skipped > 0 {
					fmt.Fprintf(out, "Skipped:         %d\n", res.Epochs.Skipped)
				}

				if opts.out == "" || res.Epochs.Len() == 0 {
					continue
				}
				path := opts.out
				if len(results) > 1 {
					if err := os.MkdirAll(opts.out, 0o755); err != nil {
						return err
					}
					path = epochFileName(opts.out, runs[i].RawPath)
				}
				if err := writeEpochs(path, runs[i], res); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.raw, "raw", "", "continuous recording (EDF)")
	cmd.Flags().StringVar(&opts.events, "events", "", "binary event file (default: derived from the raw file name)")
	cmd.Flags().IntVar(&opts.event, "event", config.DefaultEvent, "event code to epoch on")
	cmd.Flags().Float64Var(&opts.tmin, "tmin", config.DefaultTMin, "epoch start relative to the event, in seconds")
	cmd.Flags().Float64Var(&opts.tmax, "tmax", config.DefaultTMax, "epoch end relative to the event, in seconds")
	cmd.Flags().BoolVar(&opts.keepComp, "keep-comp", false, "keep the current compensation grade")
	cmd.Flags().IntVar(&opts.destComp, "dest-comp", 0, "compensation grade to convert to")
	cmd.Flags().StringVar(&opts.onFailure, "on-failure", "abort", "segment read failure policy: abort or skip")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the epochs to this EDF file (directory for several recordings)")
	cmd.Flags().BoolVar(&opts.pickMEG, "pick-meg", false, "pick MEG channels")
	cmd.Flags().BoolVar(&opts.pickEEG, "pick-eeg", false, "pick EEG channels")
	cmd.Flags().BoolVar(&opts.pickStim, "pick-stim", false, "pick stimulus channels")
	cmd.Flags().BoolVar(&opts.pickEOG, "pick-eog", false, "pick EOG channels")
	cmd.Flags().BoolVar(&opts.pickECG, "pick-ecg", false, "pick ECG channels")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "always pick these channels")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "never pick these channels")
	cmd.Flags().StringSliceVar(&opts.bads, "bads", nil, "additional bad channels")

	return cmd
}

// apply overrides the file configuration with the flags set on the command line.
func (opts *extractOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("raw") {
		cfg.Raw = opts.raw
	}
	if flags.Changed("events") {
		cfg.Events = opts.events
	}
	if flags.Changed("event") {
		cfg.Event = opts.event
	}
	if flags.Changed("tmin") {
		cfg.TMin = opts.tmin
	}
	if flags.Changed("tmax") {
		cfg.TMax = opts.tmax
	}
	if flags.Changed("keep-comp") {
		cfg.KeepComp = opts.keepComp
	}
	if flags.Changed("dest-comp") {
		cfg.DestComp = opts.destComp
	}
	if flags.Changed("on-failure") {
		cfg.OnSegmentFailure = opts.onFailure
	}
	if flags.Changed("bads") {
		cfg.Bads = append(cfg.Bads, opts.bads...)
	}

	// Any pick flag switches to a filtered selection built from the flags.
	pickFlags := []string{"pick-meg", "pick-eeg", "pick-stim", "pick-eog", "pick-ecg", "include", "exclude"}
	for _, name := range pickFlags {
		if flags.Changed(name) {
			cfg.PickAll = false
			cfg.Picks = config.Picks{
				MEG:     opts.pickMEG,
				EEG:     opts.pickEEG,
				Stim:    opts.pickStim,
				EOG:     opts.pickEOG,
				ECG:     opts.pickECG,
				Include: opts.include,
				Exclude: opts.exclude,
			}
			break
		}
	}
}

// epochFileName names the epoch export of raw inside dir.
func epochFileName(dir, raw string) string {
	base := strings.TrimSuffix(filepath.Base(raw), filepath.Ext(raw))
	return filepath.Join(dir, base+"-epo.edf")
}

func writeEpochs(path string, run epochs.Config, res *epochs.Result) error {
	src, err := edf.OpenFile(run.RawPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Info()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	eh := edf.EpochHeader{
		PatientID:    src.Header().PatientID,
		StartTime:    src.Header().StartTime.Add(time.Duration(res.Epochs.Epochs[0].TMin * float64(time.Second))),
		SamplingRate: info.SamplingRate,
		Channels:     res.ChannelNames,
	}
	if err := edf.WriteEpochs(f, eh, res.Epochs); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
