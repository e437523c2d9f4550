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

// Index of the first strict minimum, in raster order
func Argmin(costs []float32) int {
	best := 0
	for i := 1; i < len(costs); i++ {
		if costs[i] < costs[best] {
			best = i
		}
	}
	return best
}

// Picks the cheapest candidate of every tile and adds it to the scaled
// vector of the previous level: prevFactor*prev(tx,ty) + (dx,dy)
func SelectBest(vol *DiffVolume, prev *Field, prevFactor int, geom TileGeometry) *Field {
	res := NewField(vol.NX, vol.NY)
	for ty := 0; ty < vol.NY; ty++ {
		for tx := 0; tx < vol.NX; tx++ {
			dx, dy := geom.Offset(Argmin(vol.Tile(tx, ty)))
			res.Set(tx, ty, prev.At(tx, ty).Mul(prevFactor).Add(dx, dy))
		}
	}
	return res
}
