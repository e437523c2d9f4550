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

import (
	"context"
	"fmt"
	"math"

	"github.com/mlnoga/burstalign/internal/frame"
)

// Sensor color filter layout, which decides the warping strategy
type SensorLayout int

const (
	LayoutBayer      SensorLayout = iota // 2x2 Bayer mosaic, or no mosaic at all
	LayoutNonUniform                     // Non-uniform mosaics such as X-Trans
)

var sensorLayoutNames = []string{"bayer", "xtrans"}

func (l SensorLayout) String() string {
	if l < 0 || int(l) >= len(sensorLayoutNames) {
		return fmt.Sprintf("SensorLayout(%d)", int(l))
	}
	return sensorLayoutNames[l]
}

func ParseSensorLayout(s string) (SensorLayout, error) {
	for i, n := range sensorLayoutNames {
		if s == n {
			return SensorLayout(i), nil
		}
	}
	if s == "nonuniform" {
		return LayoutNonUniform, nil
	}
	return LayoutBayer, configErrorf("layout", "unknown sensor layout '%s'", s)
}

// Applies an alignment field to a full resolution image. The field and its
// tile geometry belong to the finest pyramid level, which is downscaled by
// factor from the image.
type Warper interface {
	Warp(ctx context.Context, d Dispatcher, img *frame.Image, field *Field, geom TileGeometry, factor int) (*frame.Image, error)
	Name() string
	warper()
}

// Returns the warping strategy for a sensor layout
func WarperFor(layout SensorLayout) Warper {
	if layout == LayoutNonUniform {
		return TentWarper{}
	}
	return GridWarper{}
}

// Bilinear interpolation between the displacements of the four tiles whose
// centers enclose the pixel. Each contributes the sample at the pixel plus
// its own vector.
type GridWarper struct{}

func (GridWarper) Name() string { return "grid" }
func (GridWarper) warper()      {}

func (GridWarper) Warp(ctx context.Context, d Dispatcher, img *frame.Image, field *Field, geom TileGeometry, factor int) (*frame.Image, error) {
	src, w, h := img.Float32(), img.Width, img.Height
	half := float32(geom.TileSize*factor) / 2
	dst := make([]float32, w*h)

	err := d.Dispatch(ctx, 1, h, func(worker, _, y int) {
		yg := (float32(y)+0.5)/half - 1
		iy0 := int(math.Floor(float64(yg)))
		fy := yg - float32(iy0)
		iy1 := clampInt(iy0+1, 0, field.NY-1)
		iy0 = clampInt(iy0, 0, field.NY-1)
		for x := 0; x < w; x++ {
			xg := (float32(x)+0.5)/half - 1
			ix0 := int(math.Floor(float64(xg)))
			fx := xg - float32(ix0)
			ix1 := clampInt(ix0+1, 0, field.NX-1)
			ix0 = clampInt(ix0, 0, field.NX-1)

			corners := [4]struct {
				tx, ty int
				wt     float32
			}{
				{ix0, iy0, (1 - fx) * (1 - fy)},
				{ix1, iy0, fx * (1 - fy)},
				{ix0, iy1, (1 - fx) * fy},
				{ix1, iy1, fx * fy},
			}
			sum, total := float32(0), float32(0)
			for _, c := range corners {
				v := field.At(c.tx, c.ty).Mul(factor)
				sx, sy := x+int(v.X), y+int(v.Y)
				if sx < 0 || sx >= w || sy < 0 || sy >= h {
					continue
				}
				sum += c.wt * src[sy*w+sx]
				total += c.wt
			}
			dst[y*w+x] = weightedOrPassThrough(sum, total, src[y*w+x])
		}
	})
	if err != nil {
		return nil, err
	}
	return warpResult(img, dst), nil
}

// Weighted blend of the up to four tiles whose windows contain the pixel,
// weighted by 2*half minus the Manhattan distance to each tile center.
// Suited to mosaics where the bilinear grid would mix color sites.
type TentWarper struct{}

func (TentWarper) Name() string { return "tent" }
func (TentWarper) warper()      {}

func (TentWarper) Warp(ctx context.Context, d Dispatcher, img *frame.Image, field *Field, geom TileGeometry, factor int) (*frame.Image, error) {
	src, w, h := img.Float32(), img.Width, img.Height
	half := geom.TileSize * factor / 2
	size := float32(2 * half)
	dst := make([]float32, w*h)

	err := d.Dispatch(ctx, 1, h, func(worker, _, y int) {
		ty1 := y / half
		for x := 0; x < w; x++ {
			tx1 := x / half
			sum, total := float32(0), float32(0)
			for ty := ty1 - 1; ty <= ty1; ty++ {
				if ty < 0 || ty >= field.NY {
					continue
				}
				dy := float32(y) - (float32(ty*half+half) - 0.5)
				for tx := tx1 - 1; tx <= tx1; tx++ {
					if tx < 0 || tx >= field.NX {
						continue
					}
					dx := float32(x) - (float32(tx*half+half) - 0.5)
					wt := size - abs32(dx) - abs32(dy)
					if wt <= 0 {
						continue
					}
					v := field.At(tx, ty).Mul(factor)
					sx, sy := x+int(v.X), y+int(v.Y)
					if sx < 0 || sx >= w || sy < 0 || sy >= h {
						continue
					}
					sum += wt * src[sy*w+sx]
					total += wt
				}
			}
			dst[y*w+x] = weightedOrPassThrough(sum, total, src[y*w+x])
		}
	})
	if err != nil {
		return nil, err
	}
	return warpResult(img, dst), nil
}

// Normalizes a weighted sum, falling back to the unwarped sample if no weight was collected
func weightedOrPassThrough(sum, total, fallback float32) float32 {
	if total > 0 {
		return sum / total
	}
	return fallback
}

func warpResult(img *frame.Image, data []float32) *frame.Image {
	res := frame.NewImageFromData(img.Width, img.Height, data)
	res.ID, res.FileName = img.ID, img.FileName
	return res.ToPrecision(img.Prec)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
