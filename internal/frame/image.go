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


package frame

import (
	"fmt"

	"github.com/mlnoga/burstalign/internal/stats"
	"github.com/x448/float16"
)

// Element precision of image data
type Precision int

const (
	PrecFloat32 Precision = iota // 32 bit IEEE floats in Data
	PrecFloat16                  // 16 bit IEEE half floats in Half
)

var precisionNames = []string{"float32", "float16"}

func (p Precision) String() string {
	if p < 0 || int(p) >= len(precisionNames) {
		return fmt.Sprintf("Precision(%d)", int(p))
	}
	return precisionNames[p]
}

// Parses a precision name as given on the command line
func ParsePrecision(s string) (Precision, error) {
	for i, n := range precisionNames {
		if s == n {
			return Precision(i), nil
		}
	}
	return PrecFloat32, fmt.Errorf("unknown precision '%s'", s)
}

// A single channel image, row major. Exactly one of Data and Half is populated,
// depending on the precision.
type Image struct {
	ID       int    // Sequential ID number, for log output. Counted upwards from 0 for frames of a burst
	FileName string // Original file name, if any, for log output

	Width  int
	Height int
	Prec   Precision

	Data []float32         // The image data at 32 bit precision
	Half []float16.Float16 // The image data at 16 bit precision

	Stats     *stats.Stats // Basic image statistics, computed on demand
	Sharpness float32      // Gradient energy relative to scale, for reference selection. 0 if not computed
	MeanShift float32      // Mean displacement magnitude in pixels after alignment to the reference, -1 if not aligned
}

// Creates an image of given dimensions and precision, with all pixels zero
func NewImage(width, height int, prec Precision) *Image {
	img := &Image{Width: width, Height: height, Prec: prec, MeanShift: -1}
	if prec == PrecFloat16 {
		img.Half = make([]float16.Float16, width*height)
	} else {
		img.Data = make([]float32, width*height)
	}
	return img
}

// Creates a 32 bit image from given data, which is not copied
func NewImageFromData(width, height int, data []float32) *Image {
	return &Image{Width: width, Height: height, Prec: PrecFloat32, Data: data, MeanShift: -1}
}

// Number of pixels in the image
func (img *Image) Pixels() int {
	return img.Width * img.Height
}

func (img *Image) DimensionsToString() string {
	return fmt.Sprintf("%dx%d", img.Width, img.Height)
}

// Returns the pixel value at given coordinates. No bounds checks beyond the slice's own
func (img *Image) At(x, y int) float32 {
	i := y*img.Width + x
	if img.Prec == PrecFloat16 {
		return img.Half[i].Float32()
	}
	return img.Data[i]
}

// Sets the pixel value at given coordinates, rounding to the image precision
func (img *Image) Set(x, y int, v float32) {
	i := y*img.Width + x
	if img.Prec == PrecFloat16 {
		img.Half[i] = float16.Fromfloat32(v)
		return
	}
	img.Data[i] = v
}

// Returns the pixels as 32 bit floats. Shares the backing array for
// float32 images, converts into a fresh array for float16 images.
func (img *Image) Float32() []float32 {
	if img.Prec != PrecFloat16 {
		return img.Data
	}
	data := make([]float32, len(img.Half))
	for i, h := range img.Half {
		data[i] = h.Float32()
	}
	return data
}

// Returns an image with the same pixels at the given precision.
// Returns the image itself if the precision already matches.
func (img *Image) ToPrecision(prec Precision) *Image {
	if img.Prec == prec {
		return img
	}
	res := &Image{ID: img.ID, FileName: img.FileName, Width: img.Width, Height: img.Height, Prec: prec,
		Sharpness: img.Sharpness, MeanShift: img.MeanShift}
	if prec == PrecFloat16 {
		res.Half = make([]float16.Float16, len(img.Data))
		for i, d := range img.Data {
			res.Half[i] = float16.Fromfloat32(d)
		}
	} else {
		res.Data = img.Float32()
	}
	return res
}

// Creates a deep copy of the image, without statistics
func (img *Image) Clone() *Image {
	res := &Image{ID: img.ID, FileName: img.FileName, Width: img.Width, Height: img.Height, Prec: img.Prec,
		Sharpness: img.Sharpness, MeanShift: img.MeanShift}
	if img.Data != nil {
		res.Data = append([]float32(nil), img.Data...)
	}
	if img.Half != nil {
		res.Half = append([]float16.Float16(nil), img.Half...)
	}
	return res
}

// Calculates basic statistics if not done already, and returns them
func (img *Image) CalcStats() *stats.Stats {
	if img.Stats == nil {
		img.Stats = stats.NewStats(img.Float32(), img.Width)
	}
	return img.Stats
}

// Calculates the sharpness estimate if not done already, and returns it
func (img *Image) CalcSharpness() float32 {
	if img.Sharpness == 0 {
		img.Sharpness = stats.Sharpness(img.Float32(), img.Width, img.CalcStats().Scale)
	}
	return img.Sharpness
}

// Checks whether two images have identical dimensions
func SameDims(a, b *Image) bool {
	return a.Width == b.Width && a.Height == b.Height
}
