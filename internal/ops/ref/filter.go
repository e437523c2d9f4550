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
	"fmt"

	"github.com/mlnoga/burstalign/internal/frame"
	"github.com/mlnoga/burstalign/internal/ops"
)

// Drops aligned frames whose mean displacement exceeds a limit, as such
// frames usually carry too much motion to merge cleanly
type OpFilter struct {
	ops.OpUnaryBase
	MaxMeanShift float32 `json:"maxMeanShift"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpFilterDefault() }) } // register the operator for JSON decoding

func NewOpFilterDefault() *OpFilter { return NewOpFilter(0) }

func NewOpFilter(maxMeanShift float32) *OpFilter {
	op := OpFilter{
		OpUnaryBase:  ops.OpUnaryBase{OpBase: ops.OpBase{Type: "filter", Active: maxMeanShift > 0}},
		MaxMeanShift: maxMeanShift,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpFilter) UnmarshalJSON(data []byte) error {
	type defaults OpFilter
	def := defaults(*NewOpFilterDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFilter(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpFilter) Apply(f *frame.Image, c *ops.Context) (result *frame.Image, err error) {
	if !op.Active || op.MaxMeanShift <= 0 || f.MeanShift < 0 {
		return f, nil
	}
	if f.MeanShift > op.MaxMeanShift {
		fmt.Fprintf(c.Log, "%d: Mean shift %.2f above threshold %.2f, skipping frame\n", f.ID, f.MeanShift, op.MaxMeanShift)
		return nil, nil
	}
	return f, nil
}
