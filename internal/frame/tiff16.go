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
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"
)

// Reads a grayscale or color TIFF file into a 32 bit image.
// Grayscale values keep their 16 bit integer scale. Color images are treated
// as sRGB and reduced to linear luminance on the same scale.
func ReadTIFF(fileName string) (*Image, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := DecodeTIFF(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	img.FileName = fileName
	return img, nil
}

// Decodes a grayscale or color TIFF stream into a 32 bit image
func DecodeTIFF(reader io.Reader) (*Image, error) {
	t, err := tiff.Decode(reader)
	if err != nil {
		return nil, err
	}
	return FromImage(t), nil
}

// Converts a Go image into a 32 bit single channel image
func FromImage(t image.Image) *Image {
	b := t.Bounds()
	width, height := b.Dx(), b.Dy()
	img := NewImage(width, height, PrecFloat32)

	switch t.ColorModel() {
	case color.Gray16Model, color.GrayModel:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := color.Gray16Model.Convert(t.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				img.Data[y*width+x] = float32(c.Y)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := t.At(b.Min.X+x, b.Min.Y+y).RGBA()
				c := colorful.Color{R: float64(r) / 65535, G: float64(g) / 65535, B: float64(bl) / 65535}
				_, lum, _ := c.Xyz()
				img.Data[y*width+x] = float32(lum * 65535)
			}
		}
	}
	return img
}

// Converts the image into a 16 bit grayscale Go image, mapping [min,max] to the full range with the given gamma
func (img *Image) ToGray16(min, max, gamma float32) *image.Gray16 {
	g16 := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	scale := 1 / (max - min)
	gammaInv := float64(1 / gamma)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			gray := (img.At(x, y) - min) * scale
			// replace NaNs with zeros for export, else TIFF output breaks
			if math.IsNaN(float64(gray)) || gray < 0 {
				gray = 0
			}
			if gray > 1 {
				gray = 1
			}
			if gammaInv != 1.0 {
				gray = float32(math.Pow(float64(gray), gammaInv))
			}
			g16.SetGray16(x, y, color.Gray16{Y: uint16(gray * 65535)})
		}
	}
	return g16
}

// Writes the image to a 16-bit grayscale TIFF file, using the given min, max and gamma
func (img *Image) WriteTIFF16ToFile(fileName string, min, max, gamma float32) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := img.WriteTIFF16(writer, min, max, gamma); err != nil {
		return err
	}
	return writer.Flush()
}

// Writes the image as 16-bit grayscale TIFF, using the given min, max and gamma
func (img *Image) WriteTIFF16(writer io.Writer, min, max, gamma float32) error {
	return tiff.Encode(writer, img.ToGray16(min, max, gamma), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}
