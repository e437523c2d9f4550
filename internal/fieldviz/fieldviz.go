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


// Package fieldviz renders alignment fields as color images: hue shows the
// direction of a tile's displacement, brightness its magnitude.
package fieldviz

import (
	"bufio"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/burstalign/internal/align"
)

// Renders the field with cell x cell pixels per tile. Vectors are scaled by
// factor to full resolution pixels. Magnitudes at or above maxMag are shown
// at full brightness; maxMag<=0 uses the largest magnitude in the field.
func Render(f *align.Field, factor, cell int, maxMag float64) *image.RGBA {
	if cell < 1 {
		cell = 1
	}
	if maxMag <= 0 {
		maxMag = f.Summary(factor).MaxMag
	}
	img := image.NewRGBA(image.Rect(0, 0, f.NX*cell, f.NY*cell))
	for ty := 0; ty < f.NY; ty++ {
		for tx := 0; tx < f.NX; tx++ {
			c := vectorColor(f.At(tx, ty), factor, maxMag)
			for y := ty * cell; y < (ty+1)*cell; y++ {
				for x := tx * cell; x < (tx+1)*cell; x++ {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
	return img
}

func vectorColor(v align.Vec, factor int, maxMag float64) color.RGBA {
	dx, dy := float64(v.X)*float64(factor), float64(v.Y)*float64(factor)
	mag := math.Hypot(dx, dy)
	if mag == 0 || maxMag <= 0 {
		return color.RGBA{0, 0, 0, 255}
	}
	hue := math.Atan2(dy, dx) * 180 / math.Pi
	if hue < 0 {
		hue += 360
	}
	val := math.Min(1, mag/maxMag)
	r, g, b := colorful.Hsv(hue, 1, val).Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// Writes the rendered field as PNG
func Write(w io.Writer, f *align.Field, factor, cell int, maxMag float64) error {
	return png.Encode(w, Render(f, factor, cell, maxMag))
}

// Writes the rendered field to a PNG file
func WriteFile(fileName string, f *align.Field, factor, cell int, maxMag float64) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := Write(writer, f, factor, cell, maxMag); err != nil {
		return err
	}
	return writer.Flush()
}
