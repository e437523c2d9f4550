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
	"bufio"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"
)

// Writes a grayscale preview JPG file, using the given min, max and gamma
func (img *Image) WriteJPGToFile(fileName string, min, max, gamma float32, quality int) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := img.WriteJPG(writer, min, max, gamma, quality); err != nil {
		return err
	}
	return writer.Flush()
}

// Writes a grayscale preview JPG, using the given min, max and gamma
func (img *Image) WriteJPG(writer io.Writer, min, max, gamma float32, quality int) error {
	gray := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	scale := 1 / (max - min)
	gammaInv := float64(1 / gamma)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := (img.At(x, y) - min) * scale
			// replace NaNs with zeros for export, else JPG output breaks
			if math.IsNaN(float64(v)) || v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			if gammaInv != 1.0 {
				v = float32(math.Pow(float64(v), gammaInv))
			}
			gray.SetGray(x, y, color.Gray{Y: uint8(v * 255)})
		}
	}
	return jpeg.Encode(writer, gray, &jpeg.Options{Quality: quality})
}
