// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package align

import (
	"context"

	"github.com/mlnoga/burstalign/internal/frame"
)

// Corrects upsampling artifacts at motion boundaries. Each tile chooses the
// cheapest of its own vector, the vector of its horizontal neighbour in the
// adjacent coarse tile, and that of its vertical neighbour. Costs are full
// tile costs at prevFactor times the candidate. On ties the own vector wins
// over the horizontal neighbour, which wins over the vertical one.
// The result stores the chosen unscaled vectors. With prevFactor 0, at the
// coarsest level, all candidates are zero and the field is returned as is.
func CorrectBoundaries(ctx context.Context, d Dispatcher, ref, comp *frame.Image, field *Field,
	prevFactor int, geom TileGeometry, p CostParams) (*Field, error) {
	if prevFactor == 0 {
		return field, nil
	}
	if err := checkEvalArgs(ref, comp, field, geom); err != nil {
		return nil, err
	}
	r, c := planeOf(ref), planeOf(comp)
	res := NewField(field.NX, field.NY)
	err := d.Dispatch(ctx, geom.NX, geom.NY, func(worker, tx, ty int) {
		x0, y0 := geom.Origin(tx, ty)
		cands := [3]Vec{
			field.At(tx, ty),
			field.At(neighborIndex(tx, geom.NX), ty),
			field.At(tx, neighborIndex(ty, geom.NY)),
		}
		var costs [3]float32
		for i, v := range cands {
			s := v.Mul(prevFactor)
			costs[i] = tileCost(r, c, x0, y0, geom.TileSize, int(s.X), int(s.Y), &p)
		}
		best := 0
		if costs[1] < costs[best] {
			best = 1
		}
		if costs[2] < costs[best] {
			best = 2
		}
		res.Set(tx, ty, cands[best])
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Index of the neighbouring tile which came from a different coarse tile:
// t-1 for even t, t+1 for odd t, clamped to [0,n)
func neighborIndex(t, n int) int {
	if t%2 == 0 {
		t--
	} else {
		t++
	}
	return clampInt(t, 0, n-1)
}
