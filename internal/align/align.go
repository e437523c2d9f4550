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


// Package align aligns the frames of a burst to a reference frame, using
// hierarchical tile-based block matching on an image pyramid.
package align

import (
	"context"

	"github.com/mlnoga/burstalign/internal/frame"
)

// Parameters of an alignment
type Params struct {
	Levels       []Level         // Pyramid levels, finest first
	BlackLevel   float32         // Subtracted from every input sample before matching
	ColorFactors [3]float32      // White balance factors for R, G, B. Normalization applies if the first is positive
	Layout       SensorLayout    // Sensor layout, chooses the warping strategy
	CFA          CFAPattern      // Bayer pattern, for normalization
	Precision    frame.Precision // Storage precision of the pyramids
	Evaluator    EvaluatorKind   // Tile difference evaluator choice
	OOBPenalty   float32         // Cost of each out-of-bounds comparison pixel, positive
	MemoryBudget int64           // Limit on intermediate buffer bytes per aligned frame, 0 for none
}

// Returns parameters with defaults for everything but the levels
func DefaultParams(levels []Level) Params {
	return Params{
		Levels:     levels,
		Layout:     LayoutBayer,
		CFA:        CFARGGB,
		Precision:  frame.PrecFloat32,
		Evaluator:  EvaluatorAuto,
		OOBPenalty: DefaultOOBPenalty,
	}
}

// Returns the white balance normalization for the finest level, or nil if none applies
func (p *Params) normalization() (*Normalization, error) {
	if p.Layout != LayoutBayer || !(p.ColorFactors[0] > 0) {
		return nil, nil
	}
	n := &Normalization{Factors: p.ColorFactors, CFA: p.CFA}
	if _, err := n.gains(); err != nil {
		return nil, err
	}
	if p.Levels[0].Factor != 2 {
		return nil, configErrorf("factor", "normalized downsampling needs factor 2 on level 0, got %d", p.Levels[0].Factor)
	}
	return n, nil
}

// Result of aligning one comparison frame
type Result struct {
	Aligned  *frame.Image // Comparison frame warped onto the reference
	Field    *Field       // Finest alignment field, in pixels of level 0
	Geometry TileGeometry // Tile grid of level 0
	Factor   int          // Downscale factor of level 0 relative to the frame
}

// Aligns comparison frames to a fixed reference frame. The reference pyramid
// is built once and reused. Safe for concurrent use by multiple goroutines.
type Aligner struct {
	// Optional observer of the field produced on each level, called from Align
	Trace func(level int, geom TileGeometry, field *Field)

	params Params
	d      Dispatcher
	width  int
	height int
	dims   [][2]int
	norm   *Normalization
	evals  []Evaluator
	warper Warper
	refPyr Pyramid
}

// Validates the parameters and builds the reference pyramid
func NewAligner(ctx context.Context, ref *frame.Image, params Params, d Dispatcher) (*Aligner, error) {
	dims, err := validateLevels(params.Levels, ref.Width, ref.Height)
	if err != nil {
		return nil, err
	}
	if !(params.OOBPenalty > 0) {
		return nil, configErrorf("penalty", "out-of-bounds penalty %g, must be positive", params.OOBPenalty)
	}
	if params.Precision != frame.PrecFloat32 && params.Precision != frame.PrecFloat16 {
		return nil, configErrorf("precision", "unknown precision %d", int(params.Precision))
	}
	if params.Layout != LayoutBayer && params.Layout != LayoutNonUniform {
		return nil, configErrorf("layout", "unknown sensor layout %d", int(params.Layout))
	}
	norm, err := params.normalization()
	if err != nil {
		return nil, err
	}
	evals := make([]Evaluator, len(params.Levels))
	for i, l := range params.Levels {
		if evals[i], err = evaluatorFor(params.Evaluator, l); err != nil {
			return nil, err
		}
	}
	if d == nil {
		d = CPUDispatcher{}
	}

	a := &Aligner{
		params: params,
		d:      d,
		width:  ref.Width,
		height: ref.Height,
		dims:   dims,
		norm:   norm,
		evals:  evals,
		warper: WarperFor(params.Layout),
	}
	needed := estimateBytes(ref.Width, ref.Height, params.Levels, dims, params.Precision)
	if err := checkBudget("alignment", needed, params.MemoryBudget); err != nil {
		return nil, err
	}
	if a.refPyr, err = BuildPyramid(ctx, d, ref, params.Levels, params.BlackLevel, norm, params.Precision); err != nil {
		return nil, err
	}
	return a, nil
}

// Names of the evaluators chosen per level, finest first
func (a *Aligner) EvaluatorNames() []string {
	names := make([]string, len(a.evals))
	for i, e := range a.evals {
		names[i] = e.Name()
	}
	return names
}

func (a *Aligner) Warper() Warper { return a.warper }

// Estimated intermediate buffer bytes of one Align call
func (a *Aligner) EstimatedBytes() int64 {
	return estimateBytes(a.width, a.height, a.params.Levels, a.dims, a.params.Precision)
}

// State threaded through the levels from coarsest to finest
type foldState struct {
	field      *Field
	prevFactor int // Downscale factor of the previous, coarser level. 0 before the coarsest
}

// Aligns the comparison frame to the reference. With uniformExposure false,
// every tile and candidate is compared after exposure compensation.
// Returns no partial output on error.
func (a *Aligner) Align(ctx context.Context, comp *frame.Image, uniformExposure bool) (*Result, error) {
	if comp.Width != a.width || comp.Height != a.height {
		return nil, configErrorf("dimensions", "comparison frame %s differs from reference %dx%d",
			comp.DimensionsToString(), a.width, a.height)
	}
	if err := checkBudget("alignment", a.EstimatedBytes(), a.params.MemoryBudget); err != nil {
		return nil, err
	}
	compPyr, err := BuildPyramid(ctx, a.d, comp, a.params.Levels, a.params.BlackLevel, a.norm, a.params.Precision)
	if err != nil {
		return nil, err
	}

	st := foldState{field: NewField(1, 1)}
	for i := len(a.params.Levels) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if st, err = a.step(ctx, i, st, compPyr[i], uniformExposure); err != nil {
			return nil, err
		}
	}

	l0 := a.params.Levels[0]
	geom := a.geometry(0)
	aligned, err := a.warper.Warp(ctx, a.d, comp, st.field, geom, l0.Factor)
	if err != nil {
		return nil, err
	}
	return &Result{Aligned: aligned, Field: st.field, Geometry: geom, Factor: l0.Factor}, nil
}

func (a *Aligner) geometry(level int) TileGeometry {
	l := a.params.Levels[level]
	return NewTileGeometry(a.dims[level][0], a.dims[level][1], l.TileSize, l.SearchDist)
}

// Aligns one level: upsample the previous field to this level's tile grid,
// correct boundary artifacts, evaluate all candidates and pick the best
func (a *Aligner) step(ctx context.Context, level int, st foldState, comp *frame.Image, uniform bool) (foldState, error) {
	l := a.params.Levels[level]
	geom := a.geometry(level)
	// 32 bit working planes, converted once per level
	ref := a.refPyr[level].ToPrecision(frame.PrecFloat32)
	comp = comp.ToPrecision(frame.PrecFloat32)
	p := CostParams{L2Weight: l.L2Weight, Uniform: uniform, Penalty: a.params.OOBPenalty}

	field := st.field.Upsample(geom.NX, geom.NY)
	field, err := CorrectBoundaries(ctx, a.d, ref, comp, field, st.prevFactor, geom, p)
	if err != nil {
		return st, err
	}
	vol, err := a.evals[level].Evaluate(ctx, a.d, ref, comp, field, st.prevFactor, geom, p)
	if err != nil {
		return st, err
	}
	field = SelectBest(vol, field, st.prevFactor, geom)
	if a.Trace != nil {
		a.Trace(level, geom, field)
	}
	return foldState{field: field, prevFactor: l.Factor}, nil
}

// Aligns a single comparison frame to a reference with the given per-level
// downscale factors, tile sizes and search distances, finest level first.
func Align(ctx context.Context, ref, comp *frame.Image, factors, tileSizes, searchDists []int,
	uniformExposure bool, blackLevel float32, colorFactors [3]float32, layout SensorLayout) (*frame.Image, error) {
	levels, err := LevelsFromArrays(factors, tileSizes, searchDists)
	if err != nil {
		return nil, err
	}
	params := DefaultParams(levels)
	params.BlackLevel = blackLevel
	params.ColorFactors = colorFactors
	params.Layout = layout
	a, err := NewAligner(ctx, ref, params, CPUDispatcher{})
	if err != nil {
		return nil, err
	}
	res, err := a.Align(ctx, comp, uniformExposure)
	if err != nil {
		return nil, err
	}
	return res.Aligned, nil
}
