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
	"github.com/mlnoga/burstalign/internal/stats"
)

// Integer displacement of a tile, in pixels of the level it belongs to
type Vec struct {
	X, Y int32
}

// Scales the vector by the given factor
func (v Vec) Mul(f int) Vec {
	return Vec{v.X * int32(f), v.Y * int32(f)}
}

func (v Vec) Add(dx, dy int) Vec {
	return Vec{v.X + int32(dx), v.Y + int32(dy)}
}

// Alignment field: one displacement vector per tile, row major
type Field struct {
	NX, NY int
	V      []Vec
}

// Creates an all-zero field
func NewField(nx, ny int) *Field {
	return &Field{NX: nx, NY: ny, V: make([]Vec, nx*ny)}
}

func (f *Field) At(tx, ty int) Vec {
	return f.V[ty*f.NX+tx]
}

func (f *Field) Set(tx, ty int, v Vec) {
	f.V[ty*f.NX+tx] = v
}

// Checks whether all vectors are zero
func (f *Field) IsZero() bool {
	for _, v := range f.V {
		if v.X != 0 || v.Y != 0 {
			return false
		}
	}
	return true
}

// Nearest neighbour upsampling to a finer tile grid. Each output tile takes
// the vector of the input tile whose center is closest to its own center.
// Vectors are not rescaled.
func (f *Field) Upsample(nx, ny int) *Field {
	res := NewField(nx, ny)
	for ty := 0; ty < ny; ty++ {
		sy := upsampleIndex(ty, f.NY, ny)
		for tx := 0; tx < nx; tx++ {
			sx := upsampleIndex(tx, f.NX, nx)
			res.V[ty*nx+tx] = f.V[sy*f.NX+sx]
		}
	}
	return res
}

func upsampleIndex(t, inN, outN int) int {
	s := (2*t + 1) * inN / (2 * outN)
	if s >= inN {
		s = inN - 1
	}
	return s
}

// Summarizes the displacement vectors, scaled by the given factor
func (f *Field) Summary(factor int) stats.VectorSummary {
	xs, ys := make([]float64, len(f.V)), make([]float64, len(f.V))
	for i, v := range f.V {
		xs[i], ys[i] = float64(v.X)*float64(factor), float64(v.Y)*float64(factor)
	}
	return stats.NewVectorSummary(xs, ys)
}
