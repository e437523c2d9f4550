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


package ref

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/mlnoga/burstalign/internal/frame"
	"github.com/mlnoga/burstalign/internal/ops"
	"github.com/mlnoga/burstalign/internal/qsort"
)

// Reference frame selection mode
type RefSelMode int

const (
	RFMSharpest  RefSelMode = iota // Pick frame with highest gradient energy, i.e. least motion blur
	RFMMedianLoc                   // Pick frame with median location, i.e. typical exposure
	RFMFileName                    // Load from given filename
	RFMFileID                      // Use the frame with given ID
)

var refSelModeNames = []string{"sharpest", "medianLoc", "fileName", "fileID"}

func (m RefSelMode) String() string {
	if m < 0 || int(m) >= len(refSelModeNames) {
		return fmt.Sprintf("RefSelMode(%d)", int(m))
	}
	return refSelModeNames[m]
}

// Parses a reference selection mode name as given on the command line
func ParseRefSelMode(s string) (RefSelMode, error) {
	for i, n := range refSelModeNames {
		if s == n {
			return RefSelMode(i), nil
		}
	}
	return RFMSharpest, fmt.Errorf("unknown reference selection mode '%s'", s)
}

type OpSelectReference struct {
	ops.OpBase
	Mode         RefSelMode     `json:"mode"`
	FileName     string         `json:"fileName"`
	FileID       int            `json:"fileID"`
	mutex        sync.Mutex     `json:"-"`
	materialized []*frame.Image `json:"-"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpSelectReferenceDefault() }) } // register the operator for JSON decoding

func NewOpSelectReferenceDefault() *OpSelectReference { return NewOpSelectReference(RFMSharpest, "", 0) }

func NewOpSelectReference(mode RefSelMode, fileName string, fileID int) *OpSelectReference {
	return &OpSelectReference{
		OpBase:   ops.OpBase{Type: "selectRef", Active: true},
		Mode:     mode,
		FileName: fileName,
		FileID:   fileID,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSelectReference) UnmarshalJSON(data []byte) error {
	type defaults OpSelectReference
	def := defaults(*NewOpSelectReferenceDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSelectReference(def)
	return nil
}

// Selects a reference for all given input promises using the specified mode.
// This creates separate output promises for each input promise.
// The first of them to acquire the reference mutex evaluates all images
func (op *OpSelectReference) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator needs inputs", op.Type)
	}
	outs = make([]ops.Promise, len(ins))
	for i := range ins {
		outs[i] = op.applySingle(i, ins, c)
	}
	return outs, nil
}

func (op *OpSelectReference) applySingle(i int, ins []ops.Promise, c *ops.Context) ops.Promise {
	return func() (f *frame.Image, err error) {
		op.mutex.Lock() // lock so a single thread accesses the reference frame
		if c.RefFrameError != nil { // if reference frame detection failed in a prior thread
			op.mutex.Unlock() // return immediately with the same error
			return nil, c.RefFrameError
		}
		if c.RefFrame != nil { // if a reference frame already exists
			var mat *frame.Image
			if op.materialized != nil {
				mat = op.materialized[i]
				op.materialized[i] = nil // remove reference to free memory
			}
			op.mutex.Unlock() // unlock immediately to allow ...
			if mat == nil {
				return ins[i]() // ... materializations to be parallelized by the caller
			}
			return mat, nil
		}
		defer op.mutex.Unlock() // else release lock later when reference frame is computed

		// if reference image is given in a file, load it w/o materializing all input promises
		if op.Mode == RFMFileName {
			if op.FileName == "" {
				c.RefFrameError = errors.New("reference file name missing")
				return nil, c.RefFrameError
			}
			var promises []ops.Promise
			if promises, c.RefFrameError = ops.NewOpLoad(-1, op.FileName).MakePromises(nil, c); c.RefFrameError != nil {
				return nil, c.RefFrameError
			}
			if c.RefFrame, c.RefFrameError = promises[0](); c.RefFrameError != nil {
				return nil, c.RefFrameError
			}
			fmt.Fprintf(c.Log, "Using %s as reference frame.\n", op.FileName)
			return ins[i]()
		}

		// otherwise, materialize the input promises
		if op.materialized, c.RefFrameError = ops.MaterializeAll(ins, c.MaxThreads, false); c.RefFrameError != nil {
			return nil, c.RefFrameError
		}

		var refScore float32
		switch op.Mode {
		case RFMSharpest:
			c.RefFrame, refScore = selectReferenceSharpest(op.materialized, c)
		case RFMMedianLoc:
			c.RefFrame, refScore = selectReferenceMedianLoc(op.materialized, c)
		case RFMFileID:
			for _, m := range op.materialized {
				if m.ID == op.FileID {
					c.RefFrame = m
				}
			}
		default:
			c.RefFrameError = fmt.Errorf("unknown reference selection mode %d", op.Mode)
			return nil, c.RefFrameError
		}
		if c.RefFrame == nil {
			c.RefFrameError = fmt.Errorf("unable to select reference image with mode %v", op.Mode)
			return nil, c.RefFrameError
		}
		fmt.Fprintf(c.Log, "Using image %d with %s score %.4g as reference frame.\n", c.RefFrame.ID, op.Mode, refScore)

		// return the materialized image of this instance
		mat := op.materialized[i]
		op.materialized[i] = nil // remove reference
		return mat, nil
	}
}

// Picks the frame with the highest sharpness estimate
func selectReferenceSharpest(fs []*frame.Image, c *ops.Context) (refFrame *frame.Image, refScore float32) {
	scores := inParallel(fs, func(f *frame.Image) float32 { return f.CalcSharpness() }, c.MaxThreads)
	refScore = -1
	for i, f := range fs {
		fmt.Fprintf(c.Log, "%d: Sharpness %.4g\n", f.ID, scores[i])
		if scores[i] > refScore {
			refFrame, refScore = f, scores[i]
		}
	}
	return refFrame, refScore
}

// Picks the frame whose location estimate is closest to the median location of all frames
func selectReferenceMedianLoc(fs []*frame.Image, c *ops.Context) (refFrame *frame.Image, refScore float32) {
	locs := inParallel(fs, func(f *frame.Image) float32 { return f.CalcStats().Location }, c.MaxThreads)
	medianLoc := qsort.QSelectMedian(append([]float32(nil), locs...))
	bestDist := float32(math.MaxFloat32)
	for i, f := range fs {
		d := locs[i] - medianLoc
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			refFrame, refScore, bestDist = f, locs[i], d
		}
	}
	return refFrame, refScore
}

// Applies the given function to the set of images with given maximal number of threads in parallel.
// Returns the results in order
func inParallel(fs []*frame.Image, fun func(*frame.Image) float32, maxThreads int) []float32 {
	if len(fs) == 0 {
		return nil
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	outs := make([]float32, len(fs))
	limiter := make(chan bool, maxThreads)
	for i, f := range fs {
		limiter <- true
		go func(i int, theF *frame.Image) {
			defer func() { <-limiter }()
			outs[i] = fun(theF)
		}(i, f)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	return outs
}
