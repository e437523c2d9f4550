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

// Estimates the peak bytes of intermediate buffers for aligning one
// comparison frame: both pyramids, 32 bit working planes where levels are
// stored at half precision, the largest difference volume, the fields and
// the warped output.
func estimateBytes(width, height int, levels []Level, dims [][2]int, prec frame.Precision) int64 {
	elem := int64(4)
	if prec == frame.PrecFloat16 {
		elem = 2
	}
	var pyramids, maxVolume, maxPlane, maxField int64
	for i, l := range levels {
		px := int64(dims[i][0]) * int64(dims[i][1])
		pyramids += 2 * px * elem
		if px > maxPlane {
			maxPlane = px
		}
		g := NewTileGeometry(dims[i][0], dims[i][1], l.TileSize, l.SearchDist)
		if v := int64(g.Tiles()) * int64(g.Candidates()) * 4; v > maxVolume {
			maxVolume = v
		}
		if f := int64(g.Tiles()) * 8; f > maxField {
			maxField = f
		}
	}
	planes := int64(0)
	if prec == frame.PrecFloat16 {
		planes = 2 * maxPlane * 4
	}
	full := int64(width) * int64(height)
	output := full*4 + full*elem
	return pyramids + planes + maxVolume + 3*maxField + output
}

func checkBudget(what string, needed, budget int64) error {
	if budget > 0 && needed > budget {
		return &ResourceError{What: what, Needed: needed, Budget: budget}
	}
	return nil
}
