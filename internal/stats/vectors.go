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


package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary of a set of 2D displacement vectors
type VectorSummary struct {
	N          int
	MeanX      float64
	MeanY      float64
	MeanMag    float64
	StdDevMag  float64
	MaxMag     float64
	NumNonZero int
}

// Summarizes the given displacement components, which must have equal length
func NewVectorSummary(xs, ys []float64) VectorSummary {
	vs := VectorSummary{N: len(xs)}
	if len(xs) == 0 {
		return vs
	}
	mags := make([]float64, len(xs))
	for i := range xs {
		mags[i] = math.Hypot(xs[i], ys[i])
		if mags[i] != 0 {
			vs.NumNonZero++
		}
	}
	vs.MeanX = stat.Mean(xs, nil)
	vs.MeanY = stat.Mean(ys, nil)
	vs.MeanMag, vs.StdDevMag = stat.MeanStdDev(mags, nil)
	if len(mags) < 2 {
		vs.StdDevMag = 0
	}
	vs.MaxMag = floats.Max(mags)
	return vs
}

func (vs VectorSummary) String() string {
	return fmt.Sprintf("%d tiles, %d moved, mean (%+.2f,%+.2f), |v| mean %.2f stddev %.2f max %.2f",
		vs.N, vs.NumNonZero, vs.MeanX, vs.MeanY, vs.MeanMag, vs.StdDevMag, vs.MaxMag)
}
