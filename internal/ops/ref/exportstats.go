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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/mlnoga/burstalign/internal/frame"
	"github.com/mlnoga/burstalign/internal/ops"
)

// Collects per-frame statistics and writes them as CSV once all frames have passed
type OpExportStats struct {
	ops.OpUnaryBase
	FileName string     `json:"fileName"`
	mutex    sync.Mutex `json:"-"`
	rows     [][]string `json:"-"`
	seen     int        `json:"-"`
	total    int        `json:"-"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpExportStatsDefault() }) } // register the operator for JSON decoding

func NewOpExportStatsDefault() *OpExportStats { return NewOpExportStats("") }

func NewOpExportStats(fileName string) *OpExportStats {
	op := &OpExportStats{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "exportStats", Active: fileName != ""}},
		FileName:    fileName,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpExportStats) UnmarshalJSON(data []byte) error {
	type defaults OpExportStats
	def := defaults(*NewOpExportStatsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpExportStats(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

var statsHeader = []string{"id", "file", "width", "height", "min", "mean", "max", "location", "scale", "sharpness", "meanShift"}

// Wraps each input, so that frames filtered out upstream still count towards the total
func (op *OpExportStats) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator needs inputs", op.Type)
	}
	if op.Active && op.FileName != "" && !ops.IsPathAllowed(op.FileName) {
		return nil, fmt.Errorf("filename %s outside current directory tree, aborting", op.FileName)
	}
	op.mutex.Lock()
	op.total, op.seen, op.rows = len(ins), 0, nil
	op.mutex.Unlock()

	outs = make([]ops.Promise, len(ins))
	for i, in := range ins {
		in := in
		outs[i] = func() (*frame.Image, error) {
			f, err := in()
			if err != nil {
				return nil, err
			}
			return op.Apply(f, c)
		}
	}
	return outs, nil
}

// Records the statistics of a frame. A nil frame only counts towards the total
func (op *OpExportStats) Apply(f *frame.Image, c *ops.Context) (result *frame.Image, err error) {
	if !op.Active || op.FileName == "" {
		return f, nil
	}
	var row []string
	if f != nil {
		s := f.CalcStats()
		sharpness := f.CalcSharpness()
		fmt.Fprintf(c.Log, "%d: %v sharpness %.4g\n", f.ID, s, sharpness)
		row = []string{
			strconv.Itoa(f.ID), f.FileName, strconv.Itoa(f.Width), strconv.Itoa(f.Height),
			formatFloat(s.Min), formatFloat(s.Mean), formatFloat(s.Max),
			formatFloat(s.Location), formatFloat(s.Scale), formatFloat(sharpness), formatFloat(f.MeanShift),
		}
	}

	op.mutex.Lock() // lock so a single thread is active
	defer op.mutex.Unlock()
	op.seen++
	if row != nil {
		op.rows = append(op.rows, row)
	}
	if op.seen == op.total {
		if err := op.write(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (op *OpExportStats) write(c *ops.Context) error {
	fmt.Fprintf(c.Log, "Writing statistics for %d frames to file %s ...\n", len(op.rows), op.FileName)
	sort.Slice(op.rows, func(i, j int) bool {
		a, _ := strconv.Atoi(op.rows[i][0])
		b, _ := strconv.Atoi(op.rows[j][0])
		return a < b
	})
	if !ops.IsPathAllowed(op.FileName) {
		return fmt.Errorf("filename %s outside current directory tree, aborting", op.FileName)
	}
	file, err := os.Create(op.FileName)
	if err != nil {
		return fmt.Errorf("error creating file %s: %w", op.FileName, err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	w.Write(statsHeader)
	w.WriteAll(op.rows)
	if err := w.Error(); err != nil {
		return fmt.Errorf("error writing file %s: %w", op.FileName, err)
	}
	return nil
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', 6, 32)
}
