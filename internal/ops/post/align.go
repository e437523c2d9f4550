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


package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/mlnoga/burstalign/internal/align"
	"github.com/mlnoga/burstalign/internal/fieldviz"
	"github.com/mlnoga/burstalign/internal/frame"
	"github.com/mlnoga/burstalign/internal/ops"
)

// Exposure handling when matching tiles
type ExposureMode int

const (
	EMAuto     ExposureMode = iota // Uniform if the frame location is within 1% of the reference location
	EMUniform                      // Compare raw values
	EMVarying                      // Compensate per tile and candidate with the exposure ratio
)

var exposureModeNames = []string{"auto", "uniform", "varying"}

func (m ExposureMode) String() string {
	if m < 0 || int(m) >= len(exposureModeNames) {
		return fmt.Sprintf("ExposureMode(%d)", int(m))
	}
	return exposureModeNames[m]
}

func ParseExposureMode(s string) (ExposureMode, error) {
	for i, n := range exposureModeNames {
		if s == n {
			return ExposureMode(i), nil
		}
	}
	return EMAuto, fmt.Errorf("unknown exposure mode '%s'", s)
}

// Relative location difference below which auto mode treats exposure as uniform
const autoExposureTolerance = 0.01

// Serializable alignment settings. Enumerations are kept as strings so
// configuration files stay readable
type AlignConfig struct {
	Levels       []align.Level `json:"levels"       yaml:"levels"`       // Explicit levels, finest first. Empty for defaults
	TileSize     int           `json:"tileSize"     yaml:"tileSize"`     // Finest tile size for default levels
	SearchDist   int           `json:"searchDist"   yaml:"searchDist"`   // Overall search distance for default levels
	MosaicWidth  int           `json:"mosaicWidth"  yaml:"mosaicWidth"`  // Mosaic pattern width, level 0 factor of default levels
	Exposure     string        `json:"exposure"     yaml:"exposure"`     // auto, uniform or varying
	BlackLevel   float32       `json:"blackLevel"   yaml:"blackLevel"`   // Subtracted before matching
	ColorFactors [3]float32    `json:"colorFactors" yaml:"colorFactors"` // White balance for Bayer normalization, zero for none
	Layout       string        `json:"layout"       yaml:"layout"`       // bayer or xtrans
	CFA          string        `json:"cfa"          yaml:"cfa"`          // RGGB, GRBG, GBRG or BGGR
	Precision    string        `json:"precision"    yaml:"precision"`    // float32 or float16
	Evaluator    string        `json:"evaluator"    yaml:"evaluator"`    // auto, generic or sliding
	OOBPenalty   float32       `json:"oobPenalty"   yaml:"oobPenalty"`   // Cost per out-of-bounds pixel
	FieldViz     string        `json:"fieldViz"     yaml:"fieldViz"`     // PNG file pattern for field visualization, %d expands to the frame ID
	Verbose      bool          `json:"verbose"      yaml:"verbose"`      // Log the field of every level
}

func DefaultAlignConfig() AlignConfig {
	return AlignConfig{
		TileSize:    16,
		SearchDist:  64,
		MosaicWidth: 2,
		Exposure:    EMAuto.String(),
		Layout:      align.LayoutBayer.String(),
		CFA:         string(align.CFARGGB),
		Precision:   frame.PrecFloat32.String(),
		Evaluator:   align.EvaluatorAuto.String(),
		OOBPenalty:  align.DefaultOOBPenalty,
	}
}

// Converts the settings into alignment parameters for a reference frame of the given size
func (ac *AlignConfig) Params(width, height int) (params align.Params, mode ExposureMode, err error) {
	levels := ac.Levels
	if len(levels) == 0 {
		levels = align.DefaultLevels(width, height, ac.MosaicWidth, ac.TileSize, ac.SearchDist)
	}
	params = align.DefaultParams(levels)
	params.BlackLevel = ac.BlackLevel
	params.ColorFactors = ac.ColorFactors
	params.CFA = align.CFAPattern(strings.ToUpper(ac.CFA))
	params.OOBPenalty = ac.OOBPenalty
	if params.Layout, err = align.ParseSensorLayout(ac.Layout); err != nil {
		return params, mode, err
	}
	if params.Precision, err = frame.ParsePrecision(ac.Precision); err != nil {
		return params, mode, err
	}
	if params.Evaluator, err = align.ParseEvaluatorKind(ac.Evaluator); err != nil {
		return params, mode, err
	}
	mode, err = ParseExposureMode(ac.Exposure)
	return params, mode, err
}

// Aligns frames to the reference frame in the context
type OpAlign struct {
	ops.OpUnaryBase
	AlignConfig
	aligner *align.Aligner `json:"-"`
	mode    ExposureMode   `json:"-"`
	mutex   sync.Mutex     `json:"-"`
}

var _ ops.Operator = (*OpAlign)(nil) // this type is an Operator

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAlignDefault() }) } // register the operator for JSON decoding

func NewOpAlignDefault() *OpAlign { return NewOpAlign(DefaultAlignConfig()) }

func NewOpAlign(config AlignConfig) *OpAlign {
	op := OpAlign{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "align", Active: true}},
		AlignConfig: config,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpAlign) UnmarshalJSON(data []byte) error {
	type defaults OpAlign
	def := defaults(*NewOpAlignDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	op.OpUnaryBase = def.OpUnaryBase
	op.AlignConfig = def.AlignConfig
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpAlign) Apply(f *frame.Image, c *ops.Context) (result *frame.Image, err error) {
	if !op.Active {
		return f, nil
	}
	if err = op.init(c); err != nil { // initialize the aligner
		return nil, err
	}
	if f == c.RefFrame {
		f.MeanShift = 0
		fmt.Fprintf(c.Log, "%d: Reference frame, passing through\n", f.ID)
		return f, nil
	}

	uniform := op.uniformExposure(f, c.RefFrame)
	res, err := op.aligner.Align(c.Context(), f, uniform)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	summary := res.Field.Summary(res.Factor)
	exposure := "varying"
	if uniform {
		exposure = "uniform"
	}
	fmt.Fprintf(c.Log, "%d: Aligned to %d with %s exposure: %v\n", f.ID, c.RefFrame.ID, exposure, summary)

	if op.FieldViz != "" {
		fileName := ops.ExpandPattern(op.FieldViz, f.ID)
		if !ops.IsPathAllowed(fileName) {
			return nil, fmt.Errorf("%d: filename %s outside current directory tree, aborting", f.ID, fileName)
		}
		fmt.Fprintf(c.Log, "%d: Writing %dx%d tile field visualization to %s\n", f.ID, res.Field.NX, res.Field.NY, fileName)
		if err := fieldviz.WriteFile(fileName, res.Field, res.Factor, 8, 0); err != nil {
			return nil, fmt.Errorf("%d: error writing to file %s: %w", f.ID, fileName, err)
		}
	}

	out := res.Aligned
	out.ID, out.FileName = f.ID, f.FileName
	out.Stats = nil
	out.Sharpness = f.Sharpness
	out.MeanShift = float32(summary.MeanMag)
	return out, nil
}

func (op *OpAlign) uniformExposure(f, ref *frame.Image) bool {
	switch op.mode {
	case EMUniform:
		return true
	case EMVarying:
		return false
	}
	fl, rl := f.CalcStats().Location, ref.CalcStats().Location
	diff := fl - rl
	if diff < 0 {
		diff = -diff
	}
	if rl < 0 {
		rl = -rl
	}
	return diff <= autoExposureTolerance*rl
}

func (op *OpAlign) init(c *ops.Context) error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.aligner != nil {
		return nil
	}
	if c.RefFrame == nil {
		return errors.New("unable to align without reference frame")
	}
	ref := c.RefFrame
	ref.CalcStats() // read concurrently by auto exposure mode

	params, mode, err := op.Params(ref.Width, ref.Height)
	if err != nil {
		return err
	}
	params.MemoryBudget = c.FrameBudget()
	aligner, err := align.NewAligner(c.Context(), ref, params, align.CPUDispatcher{Threads: alignThreads(c.MaxThreads)})
	if err != nil {
		return err
	}
	if op.Verbose {
		levels := params.Levels
		aligner.Trace = func(level int, geom align.TileGeometry, field *align.Field) {
			fmt.Fprintf(c.Log, "Level %d: %dx%d tiles of %d, %v\n", level, geom.NX, geom.NY, geom.TileSize,
				field.Summary(cumulativeFactor(levels, level)))
		}
	}
	for i, l := range params.Levels {
		fmt.Fprintf(c.Log, "Level %d: factor %d tile %d search %d l2 %g evaluator %s\n",
			i, l.Factor, l.TileSize, l.SearchDist, l.L2Weight, aligner.EvaluatorNames()[i])
	}
	fmt.Fprintf(c.Log, "Aligning to reference %d with %s warper, estimated %d MB per frame\n",
		ref.ID, aligner.Warper().Name(), (aligner.EstimatedBytes()+1024*1024-1)/(1024*1024))
	op.aligner, op.mode = aligner, mode
	return nil
}

// Threads per alignment. Frames are already aligned MaxThreads at a time
func alignThreads(maxThreads int) int {
	if maxThreads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return max(1, runtime.GOMAXPROCS(0)/maxThreads)
}

// Full resolution pixels per pixel of the given level
func cumulativeFactor(levels []align.Level, level int) int {
	factor := 1
	for _, l := range levels[:level+1] {
		factor *= l.Factor
	}
	return factor
}
