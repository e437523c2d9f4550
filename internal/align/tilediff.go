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

// Costs of all candidate displacements of all tiles of a level.
// Candidates of tile (tx,ty) are stored contiguously in raster order.
type DiffVolume struct {
	NX, NY int
	C      int // Candidates per tile
	Cost   []float32
}

func NewDiffVolume(nx, ny, c int) *DiffVolume {
	return &DiffVolume{NX: nx, NY: ny, C: c, Cost: make([]float32, nx*ny*c)}
}

// Returns the candidate costs of the given tile, sharing the backing array
func (v *DiffVolume) Tile(tx, ty int) []float32 {
	i := (ty*v.NX + tx) * v.C
	return v.Cost[i : i+v.C]
}

// Computes the difference volume of a level: for every tile and every
// candidate (dx,dy) within the search distance, the cost of the comparison
// tile displaced by prevFactor*field(tx,ty)+(dx,dy).
type Evaluator interface {
	Evaluate(ctx context.Context, d Dispatcher, ref, comp *frame.Image, field *Field,
		prevFactor int, geom TileGeometry, p CostParams) (*DiffVolume, error)
	Name() string
	evaluator()
}

// Evaluates every candidate independently. Works for any search distance
type GenericEvaluator struct{}

func (GenericEvaluator) Name() string { return "generic" }
func (GenericEvaluator) evaluator()    {}

func (GenericEvaluator) Evaluate(ctx context.Context, d Dispatcher, ref, comp *frame.Image, field *Field,
	prevFactor int, geom TileGeometry, p CostParams) (*DiffVolume, error) {
	if err := checkEvalArgs(ref, comp, field, geom); err != nil {
		return nil, err
	}
	r, c := planeOf(ref), planeOf(comp)
	vol := NewDiffVolume(geom.NX, geom.NY, geom.Candidates())
	err := d.Dispatch(ctx, geom.NX, geom.NY, func(worker, tx, ty int) {
		x0, y0 := geom.Origin(tx, ty)
		base := field.At(tx, ty).Mul(prevFactor)
		costs := vol.Tile(tx, ty)
		for ci := range costs {
			dx, dy := geom.Offset(ci)
			costs[ci] = tileCost(r, c, x0, y0, geom.TileSize, int(base.X)+dx, int(base.Y)+dy, &p)
		}
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

func checkEvalArgs(ref, comp *frame.Image, field *Field, geom TileGeometry) error {
	if !frame.SameDims(ref, comp) {
		return configErrorf("dimensions", "comparison level %s differs from reference level %s",
			comp.DimensionsToString(), ref.DimensionsToString())
	}
	if field.NX != geom.NX || field.NY != geom.NY {
		return configErrorf("field", "field is %dx%d tiles, level has %dx%d", field.NX, field.NY, geom.NX, geom.NY)
	}
	if geom.NX < 1 || geom.NY < 1 {
		return configErrorf("tileSize", "level %dx%d holds no tile of size %d", ref.Width, ref.Height, geom.TileSize)
	}
	return nil
}
