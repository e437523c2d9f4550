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
	"github.com/mlnoga/burstalign/internal/pool"
)

// The only search distance supported by the sliding window evaluator
const slidingDist = 2

const (
	slidingRows       = 2*slidingDist + 1
	slidingCandidates = slidingRows * slidingRows
)

// Evaluates all 25 candidates of search distance 2 together. For each
// reference row it keeps a ring of 5 comparison rows, each tileSize+4 wide,
// so every comparison pixel is loaded once per tile instead of once per
// candidate. Produces the same costs as GenericEvaluator, bit for bit.
type SlidingEvaluator struct{}

func (SlidingEvaluator) Name() string { return "sliding" }
func (SlidingEvaluator) evaluator()    {}

// Number of scratch bytes per worker for the given tile size
func slidingWindowBytes(tileSize int) int {
	return slidingRows * (tileSize + 2*slidingDist) * (4 + 1)
}

func (SlidingEvaluator) Evaluate(ctx context.Context, d Dispatcher, ref, comp *frame.Image, field *Field,
	prevFactor int, geom TileGeometry, p CostParams) (*DiffVolume, error) {
	if geom.SearchDist != slidingDist {
		return nil, configErrorf("searchDist", "sliding evaluator supports search distance %d only, got %d", slidingDist, geom.SearchDist)
	}
	if err := checkEvalArgs(ref, comp, field, geom); err != nil {
		return nil, err
	}
	r, c := planeOf(ref), planeOf(comp)
	ts := geom.TileSize
	winW := ts + 2*slidingDist
	vals := pool.NewArena(pool.Float32, d.Workers(), slidingRows*winW)
	valid := pool.NewArena(pool.Bool, d.Workers(), slidingRows*winW)
	defer vals.Release()
	defer valid.Release()

	vol := NewDiffVolume(geom.NX, geom.NY, geom.Candidates())
	err := d.Dispatch(ctx, geom.NX, geom.NY, func(worker, tx, ty int) {
		w := slidingWindow{
			ref: r, comp: c, ts: ts, width: winW,
			vals: vals.For(worker), valid: valid.For(worker),
		}
		w.x0, w.y0 = geom.Origin(tx, ty)
		base := field.At(tx, ty).Mul(prevFactor)
		w.bx, w.by = int(base.X), int(base.Y)

		var ratios [slidingCandidates]float32
		if p.Uniform {
			for i := range ratios {
				ratios[i] = 1
			}
		} else {
			w.ratios(&ratios)
		}
		w.costs(&ratios, &p, vol.Tile(tx, ty))
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

// Per-tile state of the sliding evaluator
type slidingWindow struct {
	ref, comp plane
	ts        int
	x0, y0    int // Tile origin
	bx, by    int // Base displacement, scaled from the previous level
	width     int // Window width, tile size plus twice the search distance
	vals      []float32
	valid     []bool
}

// Loads window row r, which covers comparison row y0+by-2+r, into its ring slot
func (w *slidingWindow) load(r int) {
	slot := r % slidingRows
	vals := w.vals[slot*w.width : (slot+1)*w.width]
	valid := w.valid[slot*w.width : (slot+1)*w.width]
	cy := w.y0 + w.by - slidingDist + r
	cx0 := w.x0 + w.bx - slidingDist
	if cy < 0 || cy >= w.comp.h {
		for i := range vals {
			vals[i], valid[i] = 0, false
		}
		return
	}
	row := w.comp.px[cy*w.comp.w : (cy+1)*w.comp.w]
	for i := range vals {
		cx := cx0 + i
		if cx < 0 || cx >= w.comp.w {
			vals[i], valid[i] = 0, false
			continue
		}
		vals[i], valid[i] = row[cx], true
	}
}

// Fills the ring for reference row 0
func (w *slidingWindow) prime() {
	for r := 0; r < slidingRows; r++ {
		w.load(r)
	}
}

// Computes the exposure ratio of each candidate from in-bounds pixel sums
func (w *slidingWindow) ratios(ratios *[slidingCandidates]float32) {
	var sumRef, sumComp [slidingCandidates]float32
	w.prime()
	for y := 0; y < w.ts; y++ {
		if y > 0 {
			w.load(y + slidingRows - 1)
		}
		refRow := w.ref.px[(w.y0+y)*w.ref.w+w.x0 : (w.y0+y)*w.ref.w+w.x0+w.ts]
		for j := 0; j < slidingRows; j++ {
			slot := (y + j) % slidingRows
			vals := w.vals[slot*w.width : (slot+1)*w.width]
			valid := w.valid[slot*w.width : (slot+1)*w.width]
			for i := 0; i < slidingRows; i++ {
				ci := j*slidingRows + i
				sr, sc := sumRef[ci], sumComp[ci]
				for x, rv := range refRow {
					if valid[x+i] {
						sr += rv
						sc += vals[x+i]
					}
				}
				sumRef[ci], sumComp[ci] = sr, sc
			}
		}
	}
	for ci := range ratios {
		ratios[ci] = exposureRatio(sumRef[ci], sumComp[ci])
	}
}

// Computes the cost of each candidate into out
func (w *slidingWindow) costs(ratios *[slidingCandidates]float32, p *CostParams, out []float32) {
	var costs [slidingCandidates]float32
	w.prime()
	for y := 0; y < w.ts; y++ {
		if y > 0 {
			w.load(y + slidingRows - 1)
		}
		refRow := w.ref.px[(w.y0+y)*w.ref.w+w.x0 : (w.y0+y)*w.ref.w+w.x0+w.ts]
		for j := 0; j < slidingRows; j++ {
			slot := (y + j) % slidingRows
			vals := w.vals[slot*w.width : (slot+1)*w.width]
			valid := w.valid[slot*w.width : (slot+1)*w.width]
			for i := 0; i < slidingRows; i++ {
				ci := j*slidingRows + i
				ratio, cost := ratios[ci], costs[ci]
				for x, rv := range refRow {
					if !valid[x+i] {
						cost += p.Penalty
						continue
					}
					cost += p.term(compensated(rv, vals[x+i], ratio))
				}
				costs[ci] = cost
			}
		}
	}
	copy(out, costs[:])
}
