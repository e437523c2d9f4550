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

// Upper bounds on tile size and search distance, which bound per-worker scratch and candidate counts
const (
	MaxTileSize   = 256
	MaxSearchDist = 16
)

// Parameters of one pyramid level. Level 0 is the finest
type Level struct {
	Factor     int     `json:"factor"     yaml:"factor"`     // Downscale factor relative to the previous level, or to the input image for level 0
	TileSize   int     `json:"tileSize"   yaml:"tileSize"`   // Tile edge length in pixels of this level, even
	SearchDist int     `json:"searchDist" yaml:"searchDist"` // Maximum displacement per axis searched on this level
	L2Weight   float32 `json:"l2Weight"   yaml:"l2Weight"`   // Cost weight: 0 for pure L1, 1 for pure L2
}

// Builds levels from parallel arrays of downscale factors, tile sizes and search distances.
// Coarse levels use L2 costs and the finest level L1 costs.
func LevelsFromArrays(factors, tileSizes, searchDists []int) ([]Level, error) {
	if len(factors) != len(tileSizes) || len(factors) != len(searchDists) {
		return nil, configErrorf("levels", "array lengths differ: %d factors, %d tile sizes, %d search distances",
			len(factors), len(tileSizes), len(searchDists))
	}
	if len(factors) == 0 {
		return nil, configErrorf("levels", "at least one level required")
	}
	levels := make([]Level, len(factors))
	for i := range factors {
		levels[i] = Level{Factor: factors[i], TileSize: tileSizes[i], SearchDist: searchDists[i], L2Weight: 1}
	}
	levels[0].L2Weight = 0
	return levels, nil
}

// Derives a level schedule for an image of the given size. The finest level
// downsamples by the mosaic pattern width, each further level by 2 with half
// the tile size (but at least 8), until the remaining resolution no longer
// exceeds the requested overall search distance.
func DefaultLevels(width, height, mosaicWidth, tileSize, searchDist int) []Level {
	if mosaicWidth < 1 {
		mosaicWidth = 1
	}
	minDim := width
	if height < minDim {
		minDim = height
	}
	levels := []Level{{Factor: mosaicWidth, TileSize: tileSize, SearchDist: 2, L2Weight: 0}}
	res := minDim / mosaicWidth
	for res > searchDist {
		ts := levels[len(levels)-1].TileSize / 2
		if ts < 8 {
			ts = 8
		}
		// stop before a level gets too small to hold a single tile
		if res/2 < ts {
			break
		}
		levels = append(levels, Level{Factor: 2, TileSize: ts, SearchDist: 2, L2Weight: 1})
		res /= 2
	}
	return levels
}

// Checks level parameters against the dimensions of the input image.
// Returns the dimensions of each pyramid level.
func validateLevels(levels []Level, width, height int) (dims [][2]int, err error) {
	if len(levels) == 0 {
		return nil, configErrorf("levels", "at least one level required")
	}
	dims = make([][2]int, len(levels))
	w, h := width, height
	for i, l := range levels {
		if l.Factor < 1 {
			return nil, configErrorf("factor", "level %d has downscale factor %d, must be at least 1", i, l.Factor)
		}
		if l.TileSize < 2 || l.TileSize%2 != 0 || l.TileSize > MaxTileSize {
			return nil, configErrorf("tileSize", "level %d has tile size %d, must be even and in [2,%d]", i, l.TileSize, MaxTileSize)
		}
		if l.SearchDist < 0 || l.SearchDist > MaxSearchDist {
			return nil, configErrorf("searchDist", "level %d has search distance %d, must be in [0,%d]", i, l.SearchDist, MaxSearchDist)
		}
		if l.L2Weight < 0 || l.L2Weight > 1 {
			return nil, configErrorf("l2Weight", "level %d has cost weight %g, must be in [0,1]", i, l.L2Weight)
		}
		w, h = w/l.Factor, h/l.Factor
		if w < l.TileSize || h < l.TileSize {
			return nil, configErrorf("levels", "level %d is %dx%d, too small for tile size %d", i, w, h, l.TileSize)
		}
		dims[i] = [2]int{w, h}
	}
	return dims, nil
}
