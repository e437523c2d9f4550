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
	"github.com/mlnoga/burstalign/internal/ops"
	"github.com/mlnoga/burstalign/internal/ops/ref"
)

// Creates the burst alignment pipeline: select a reference among the loaded
// frames, align all others to it, drop frames with excessive motion, export
// statistics and save the results. Inactive steps pass frames through.
func NewOpBurst(opLoadMany *ops.OpLoadMany, opSelectRef *ref.OpSelectReference, opAlign *OpAlign,
	opFilter *ref.OpFilter, opExportStats *ref.OpExportStats, opSave *ops.OpSave) *ops.OpSequence {
	return ops.NewOpSequence(opLoadMany, opSelectRef, opAlign, opFilter, opExportStats, opSave)
}

// Runs a pipeline which takes no inputs, materializing all frames with
// the concurrency limit of the context. Returns the number of frames produced
func Run(op ops.Operator, c *ops.Context) (int, error) {
	promises, err := op.MakePromises(nil, c)
	if err != nil {
		return 0, err
	}
	frames, err := ops.MaterializeAll(promises, c.MaxThreads, false)
	return len(frames), err
}
