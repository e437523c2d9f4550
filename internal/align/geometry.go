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

// Tile grid of one pyramid level. Tiles overlap by half their size, so tile
// (tx,ty) has its origin at (tx*TileSize/2, ty*TileSize/2) and every tile lies
// fully inside the level.
type TileGeometry struct {
	TileSize   int
	SearchDist int
	NX         int // Number of tiles along the x axis
	NY         int // Number of tiles along the y axis
}

// Creates the tile grid for a level of given dimensions. NX or NY may be
// less than one if the level is smaller than a tile
func NewTileGeometry(width, height, tileSize, searchDist int) TileGeometry {
	stride := tileSize / 2
	return TileGeometry{
		TileSize:   tileSize,
		SearchDist: searchDist,
		NX:         width/stride - 1,
		NY:         height/stride - 1,
	}
}

// Number of tiles
func (g TileGeometry) Tiles() int {
	return g.NX * g.NY
}

// Number of candidate displacements per tile, (2d+1)^2
func (g TileGeometry) Candidates() int {
	n := 2*g.SearchDist + 1
	return n * n
}

// Distance between tile origins
func (g TileGeometry) Stride() int {
	return g.TileSize / 2
}

// Top left pixel of the given tile
func (g TileGeometry) Origin(tx, ty int) (x, y int) {
	s := g.TileSize / 2
	return tx * s, ty * s
}

// Relative displacement of candidate c, in raster order with dy outer and dx inner
func (g TileGeometry) Offset(c int) (dx, dy int) {
	n := 2*g.SearchDist + 1
	return c%n - g.SearchDist, c/n - g.SearchDist
}
