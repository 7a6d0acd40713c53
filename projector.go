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
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Singular values below this fraction of the largest one do not add to the
// projector rank.
const projectorRankTolerance = 1e-2

// Projection is a signal-space projection (SSP) item.
type Projection struct {
	Description string      // Free-form description (e.g., PCA-v1)
	Active      bool        // Whether the item takes part in the projector
	Channels    []string    // Channel names the vectors are defined over
	Vectors     [][]float64 // Row vectors, each len(Channels) long
}

func (p Projection) clone() Projection {
	c := p
	c.Channels = append([]string(nil), p.Channels...)
	c.Vectors = make([][]float64, len(p.Vectors))
	for i, v := range p.Vectors {
		c.Vectors[i] = append([]float64(nil), v...)
	}
	return c
}

// Projector removes the subspace spanned by the active projection vectors.
// The zero value is the identity.
type Projector struct {
	op   *mat.Dense
	rank int
}

// Rank returns the dimension of the projected-out subspace.
func (p *Projector) Rank() int {
	if p == nil {
		return 0
	}
	return p.rank
}

// Matrix returns the nchan x nchan operator, or nil for the identity.
func (p *Projector) Matrix() *mat.Dense {
	if p == nil {
		return nil
	}
	return p.op
}

// Apply projects a full-channel sample block. The identity projector returns
// data as is.
func (p *Projector) Apply(data *mat.Dense) *mat.Dense {
	if p.Matrix() == nil {
		return data
	}
	var out mat.Dense
	out.Mul(p.op, data)
	return &out
}

// MakeProjector composes the active projection items over the given channel
// space. Vector entries for unknown channels are dropped and each vector is
// normalized before the rank is taken from its singular values.
func MakeProjector(projs []Projection, names []string) (*Projector, error) {
	nchan := len(names)
	idx := make(map[string]int, nchan)
	for i, name := range names {
		idx[name] = i
	}

	var vecs [][]float64
	for _, p := range projs {
		if !p.Active {
			continue
		}
		for j, v := range p.Vectors {
			if len(v) != len(p.Channels) {
				return nil, fmt.Errorf("projection %q vector %d: expected %d values, got %d",
					p.Description, j, len(p.Channels), len(v))
			}

			full := make([]float64, nchan)
			for c, name := range p.Channels {
				if i, ok := idx[name]; ok {
					full[i] = v[c]
				}
			}
			size := floats.Norm(full, 2)
			if size == 0 || math.IsNaN(size) {
				continue
			}
			floats.Scale(1/size, full)
			vecs = append(vecs, full)
		}
	}

	if len(vecs) == 0 {
		return &Projector{}, nil
	}

	a := mat.NewDense(nchan, len(vecs), nil)
	for j, v := range vecs {
		a.SetCol(j, v)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("projection vectors: SVD did not converge")
	}
	s := svd.Values(nil)

	rank := 0
	for _, v := range s {
		if v/s[0] > projectorRankTolerance {
			rank++
		}
	}
	if rank == 0 {
		return &Projector{}, nil
	}

	var u mat.Dense
	svd.UTo(&u)
	basis := u.Slice(0, nchan, 0, rank)

	op := mat.NewDense(nchan, nchan, nil)
	op.Mul(basis, basis.T())
	op.Scale(-1, op)
	for i := 0; i < nchan; i++ {
		op.Set(i, i, 1+op.At(i, i))
	}

	return &Projector{op: op, rank: rank}, nil
}

// BuildProjector activates every projection item of info and compiles them
// into a projector over all channels. A rank 0 result is reported, not an
// error.
func BuildProjector(info *Info, logger *slog.Logger) (*Projector, error) {
	logger = orDiscard(logger)

	if len(info.Projections) == 0 {
		logger.Info("No projector specified for these data")
		return &Projector{}, nil
	}

	for i := range info.Projections {
		info.Projections[i].Active = true
	}
	logger.Info("Projection items activated", "count", len(info.Projections))

	proj, err := MakeProjector(info.Projections, info.ChannelNames())
	if err != nil {
		return nil, err
	}

	if proj.Rank() == 0 {
		logger.Info("The projection vectors do not apply to these channels")
	} else {
		logger.Info("Created an SSP operator", "dimension", proj.Rank())
	}

	return proj, nil
}
