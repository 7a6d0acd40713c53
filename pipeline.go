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
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Source is an opened continuous recording.
type Source interface {
	SegmentReader
	// Info returns the measurement metadata of the recording.
	Info() (*Info, error)
}

// Opener opens the recording at path.
type Opener func(path string) (Source, error)

// Config describes a single extraction run.
type Config struct {
	RawPath     string           // Continuous recording
	EventPath   string           // Binary event file, derived from RawPath when empty
	Event       int              // Event code to epoch on
	Window      Window           // Epoch extent around each event
	KeepComp    bool             // Keep the current compensation grade
	DestComp    int              // Compensation grade to convert to
	Channels    ChannelSelection // Channels to carry in each epoch
	Bads        []string         // Additional channels to mark as bad
	Projections []Projection     // Additional SSP items
	Policy      FailurePolicy    // What a failed segment read does
}

// Result is the outcome of a successful run.
type Result struct {
	ID            uuid.UUID
	Epochs        *Collection
	Picks         Picks
	ChannelNames  []string // Names of the picks
	ProjectorRank int      // 0 when no projection took place
	CompGrade     int      // Compensation grade of the epochs
	MatchedEvents int
}

// Pipeline runs epoch extractions against recordings opened with Open.
type Pipeline struct {
	Open Opener
	// ReadEvents reads an event file, ReadEventsFile when nil.
	ReadEvents func(path string) ([]Event, error)
	// Cache keeps metadata between runs; each run gets its own copy.
	Cache  *InfoCache
	Logger *slog.Logger
}

// Run performs one extraction. Any failure aborts the whole run and is
// returned as an *Error naming the failed stage.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*Result, error) {
	res := &Result{ID: uuid.New()}
	logger := orDiscard(p.Logger).With("run", res.ID.String())

	if cfg.RawPath == "" {
		return nil, stageError(StageConfig, fmt.Errorf("no raw data file"))
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, stageError(StageConfig, err)
	}

	src, err := p.Open(cfg.RawPath)
	if err != nil {
		return nil, stageError(StageOpen, sourceUnavailable(err))
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	cache := p.Cache
	if cache == nil {
		cache = &InfoCache{}
	}
	info, err := cache.Get(cfg.RawPath, src.Info)
	if err != nil {
		return nil, stageError(StageOpen, sourceUnavailable(err))
	}
	if err := info.Validate(); err != nil {
		return nil, stageError(StageOpen, sourceUnavailable(err))
	}
	info.MarkBad(cfg.Bads...)
	for _, proj := range cfg.Projections {
		info.Projections = append(info.Projections, proj.clone())
	}

	sel := cfg.Channels
	if !sel.All {
		sel.Options.Exclude = append(append([]string(nil), sel.Options.Exclude...), info.Bads()...)
	}
	res.Picks = SelectChannels(info, sel)
	if len(res.Picks) == 0 {
		return nil, stageError(StageChannels, ErrNoChannels)
	}
	res.ChannelNames = res.Picks.Names(info)

	proj, err := BuildProjector(info, logger)
	if err != nil {
		return nil, stageError(StageProjection, err)
	}
	res.ProjectorRank = proj.Rank()

	current, err := CurrentGrade(info)
	if err != nil {
		return nil, stageError(StageCompensation, fmt.Errorf("%w: %v", ErrCompensation, err))
	}
	comp, err := Reconcile(info, current, cfg.DestComp, cfg.KeepComp, logger)
	if err != nil {
		logger.Error("Could not make the compensator", "error", err)
		return nil, stageError(StageCompensation, err)
	}
	res.CompGrade = comp.To

	eventPath := cfg.EventPath
	if eventPath == "" {
		if eventPath, err = EventFileName(cfg.RawPath); err != nil {
			return nil, stageError(StageEvents, err)
		}
	}
	readEvents := p.ReadEvents
	if readEvents == nil {
		readEvents = ReadEventsFile
	}
	events, err := readEvents(eventPath)
	if err != nil {
		return nil, stageError(StageEvents, err)
	}
	logger.Info("Events read", "path", eventPath, "count", len(events))

	selected := SelectEvents(events, cfg.Event)
	res.MatchedEvents = len(selected)
	if len(selected) == 0 {
		logger.Info("No desired events found", "event", cfg.Event)
		res.Epochs = &Collection{}
		return res, nil
	}
	logger.Info("Matching events found", "count", len(selected))

	ext := &Extractor{
		Info:     info,
		Picks:    res.Picks,
		Window:   cfg.Window,
		Operator: compose(proj.Matrix(), comp.Matrix()),
		Policy:   cfg.Policy,
		Logger:   logger,
	}
	res.Epochs, err = ext.Extract(ctx, src, selected, cfg.Event)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Error("Can't read the event data segments", "error", err)
		return nil, stageError(StageSegment, err)
	}

	return res, nil
}

// RunAll performs independent runs concurrently. Results are in the order of
// cfgs; the first failure cancels the remaining runs.
func (p *Pipeline) RunAll(ctx context.Context, cfgs []Config) ([]*Result, error) {
	results := make([]*Result, len(cfgs))

	g, ctx := errgroup.WithContext(ctx)
	for i := range cfgs {
		i := i
		g.Go(func() error {
			res, err := p.Run(ctx, cfgs[i])
			if err != nil {
				return fmt.Errorf("%s: %w", cfgs[i].RawPath, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// compose returns proj * comp, treating nil as the identity.
func compose(proj, comp *mat.Dense) *mat.Dense {
	switch {
	case proj == nil:
		return comp
	case comp == nil:
		return proj
	}
	var op mat.Dense
	op.Mul(proj, comp)
	return &op
}

func sourceUnavailable(err error) error {
	if errors.Is(err, ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}
