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

import "github.com/mlnoga/burstalign/internal/frame"

// Default cost added for each comparison pixel outside the image, the largest finite float16 value
const DefaultOOBPenalty = 65504

// Exposure ratio bounds
const (
	minRatio = 0.9
	maxRatio = 1.1
)

// Parameters of the per-pixel tile cost (1-w)|d| + w*d^2, with d = ref - ratio*comp
type CostParams struct {
	L2Weight float32 // w, 0 for pure L1 and 1 for pure L2
	Uniform  bool    // Exposure known to be uniform, ratio fixed at 1
	Penalty  float32 // Added once per out-of-bounds comparison pixel
}

// Cost of a single pixel difference. Products are explicitly rounded so that
// every evaluator gets bit-identical results regardless of instruction fusion.
func (p *CostParams) term(diff float32) float32 {
	a := diff
	if a < 0 {
		a = -a
	}
	return float32((1-p.L2Weight)*a) + float32(p.L2Weight*float32(diff*diff))
}

// Difference of a reference and comparison pixel after exposure compensation
func compensated(ref, comp, ratio float32) float32 {
	return ref - float32(ratio*comp)
}

// Exposure ratio from tile sums over in-bounds pixels, clamped to [0.9,1.1].
// Degenerate sums yield 1.
func exposureRatio(sumRef, sumComp float32) float32 {
	if !(sumComp > 0) || !(sumRef > 0) {
		return 1
	}
	r := sumRef / sumComp
	if r < minRatio {
		return minRatio
	}
	if r > maxRatio {
		return maxRatio
	}
	return r
}

// Single channel 32 bit pixel plane, the working view of a pyramid level
type plane struct {
	w, h int
	px   []float32
}

func planeOf(img *frame.Image) plane {
	return plane{w: img.Width, h: img.Height, px: img.Float32()}
}

// Sums of reference and in-bounds comparison pixels for the tile at (x0,y0)
// displaced by (dx,dy), in row major order
func tileSums(ref, comp plane, x0, y0, ts, dx, dy int) (sumRef, sumComp float32) {
	for y := 0; y < ts; y++ {
		cy := y0 + y + dy
		if cy < 0 || cy >= comp.h {
			continue
		}
		refRow := ref.px[(y0+y)*ref.w+x0 : (y0+y)*ref.w+x0+ts]
		for x := 0; x < ts; x++ {
			cx := x0 + x + dx
			if cx < 0 || cx >= comp.w {
				continue
			}
			sumRef += refRow[x]
			sumComp += comp.px[cy*comp.w+cx]
		}
	}
	return sumRef, sumComp
}

// Full per-pixel cost of the tile at (x0,y0) against the comparison displaced by (dx,dy)
func tileCost(ref, comp plane, x0, y0, ts, dx, dy int, p *CostParams) float32 {
	ratio := float32(1)
	if !p.Uniform {
		ratio = exposureRatio(tileSums(ref, comp, x0, y0, ts, dx, dy))
	}
	cost := float32(0)
	for y := 0; y < ts; y++ {
		cy := y0 + y + dy
		refRow := ref.px[(y0+y)*ref.w+x0 : (y0+y)*ref.w+x0+ts]
		for x := 0; x < ts; x++ {
			cx := x0 + x + dx
			if cy < 0 || cy >= comp.h || cx < 0 || cx >= comp.w {
				cost += p.Penalty
				continue
			}
			cost += p.term(compensated(refRow[x], comp.px[cy*comp.w+cx], ratio))
		}
	}
	return cost
}
