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
	"strings"

	"github.com/mlnoga/burstalign/internal/frame"
)

// Color filter array pattern of a Bayer sensor, top left 2x2 cell in row major order
type CFAPattern string

const (
	CFARGGB CFAPattern = "RGGB"
	CFAGRBG CFAPattern = "GRBG"
	CFAGBRG CFAPattern = "GBRG"
	CFABGGR CFAPattern = "BGGR"
)

// Returns the channel index 0=R, 1=G, 2=B for each position of the 2x2 cell
func (p CFAPattern) channels() (ch [4]int, err error) {
	switch CFAPattern(strings.ToUpper(string(p))) {
	case CFARGGB:
		return [4]int{0, 1, 1, 2}, nil
	case CFAGRBG:
		return [4]int{1, 0, 2, 1}, nil
	case CFAGBRG:
		return [4]int{1, 2, 0, 1}, nil
	case CFABGGR:
		return [4]int{2, 1, 1, 0}, nil
	}
	return ch, configErrorf("cfa", "unknown pattern '%s'", p)
}

// Per-channel white balance normalization applied while downsampling the finest level
type Normalization struct {
	Factors [3]float32 // Color factors for R, G, B, all positive
	CFA     CFAPattern
}

// Multipliers for each position of a 2x2 CFA cell, mean(factors)/factor(channel)
func (n *Normalization) gains() (g [4]float32, err error) {
	ch, err := n.CFA.channels()
	if err != nil {
		return g, err
	}
	for i, f := range n.Factors {
		if !(f > 0) {
			return g, configErrorf("colorFactors", "factor %d is %g, must be positive", i, f)
		}
	}
	mean := (n.Factors[0] + n.Factors[1] + n.Factors[2]) / 3
	for i := range g {
		g[i] = mean / n.Factors[ch[i]]
	}
	return g, nil
}

// Image pyramid, index 0 is the finest level
type Pyramid []*frame.Image

// Downsamples by averaging non-overlapping scale x scale blocks, after
// subtracting the black level from every input sample. Trailing rows and
// columns which do not fill a block are dropped.
func Downsample(img *frame.Image, scale int, black float32) (*frame.Image, error) {
	if scale < 1 {
		return nil, configErrorf("factor", "downscale factor %d, must be at least 1", scale)
	}
	return downsample(context.Background(), serial, img, scale, black, nil)
}

// Downsamples like Downsample, additionally multiplying every sample by
// mean(factors)/factor(channel) of its CFA channel. Only defined for scale 2,
// where each output pixel covers exactly one CFA cell.
func DownsampleNormalized(img *frame.Image, scale int, black float32, norm *Normalization) (*frame.Image, error) {
	if scale != 2 {
		return nil, configErrorf("factor", "normalized downsampling needs factor 2, got %d", scale)
	}
	if norm == nil {
		return nil, configErrorf("colorFactors", "normalized downsampling needs a normalization")
	}
	g, err := norm.gains()
	if err != nil {
		return nil, err
	}
	return downsample(context.Background(), serial, img, scale, black, &g)
}

func downsample(ctx context.Context, d Dispatcher, img *frame.Image, scale int, black float32, gains *[4]float32) (*frame.Image, error) {
	src, srcW := img.Float32(), img.Width
	w, h := img.Width/scale, img.Height/scale
	res := frame.NewImage(w, h, frame.PrecFloat32)
	dst := res.Data
	area := float32(scale * scale)

	err := d.Dispatch(ctx, 1, h, func(worker, _, y int) {
		for x := 0; x < w; x++ {
			sum := float32(0)
			for j := 0; j < scale; j++ {
				sy := y*scale + j
				row := src[sy*srcW : (sy+1)*srcW]
				for i := 0; i < scale; i++ {
					sx := x*scale + i
					v := row[sx] - black
					if gains != nil {
						v *= gains[(sy&1)*2+(sx&1)]
					}
					sum += v
				}
			}
			dst[y*w+x] = sum / area
		}
	})
	if err != nil {
		return nil, err
	}
	res.ID, res.FileName = img.ID, img.FileName
	return res, nil
}

// Binomial weights of order 2*kernelSize, normalized to sum 1
func binomialKernel(kernelSize int) []float32 {
	n := 2 * kernelSize
	k := make([]float32, n+1)
	c := float64(1)
	sum := float64(0)
	coeffs := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		coeffs[i] = c
		sum += c
		c = c * float64(n-i) / float64(i+1)
	}
	for i := range k {
		k[i] = float32(coeffs[i] / sum)
	}
	return k
}

// Separable binomial blur with 2*kernelSize+1 taps, clamping at the edges
func Blur(img *frame.Image, kernelSize int) *frame.Image {
	res, _ := blur(context.Background(), serial, img, kernelSize)
	return res
}

func blur(ctx context.Context, d Dispatcher, img *frame.Image, kernelSize int) (*frame.Image, error) {
	src, w, h := img.Float32(), img.Width, img.Height
	k := binomialKernel(kernelSize)
	r := kernelSize

	tmp := make([]float32, w*h)
	err := d.Dispatch(ctx, 1, h, func(worker, _, y int) {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			sum := float32(0)
			for i, kv := range k {
				sx := clampInt(x+i-r, 0, w-1)
				sum += kv * row[sx]
			}
			tmp[y*w+x] = sum
		}
	})
	if err != nil {
		return nil, err
	}

	res := frame.NewImage(w, h, frame.PrecFloat32)
	err = d.Dispatch(ctx, 1, h, func(worker, _, y int) {
		for x := 0; x < w; x++ {
			sum := float32(0)
			for i, kv := range k {
				sy := clampInt(y+i-r, 0, h-1)
				sum += kv * tmp[sy*w+x]
			}
			res.Data[y*w+x] = sum
		}
	})
	if err != nil {
		return nil, err
	}
	res.ID, res.FileName = img.ID, img.FileName
	return res, nil
}

// Builds the pyramid for the given levels. Level 0 is downsampled from the
// input, with black level subtraction and optional white balance
// normalization. Each further level blurs and downsamples the previous one.
// Levels are stored at the requested precision.
func BuildPyramid(ctx context.Context, d Dispatcher, img *frame.Image, levels []Level,
	black float32, norm *Normalization, prec frame.Precision) (Pyramid, error) {
	if _, err := validateLevels(levels, img.Width, img.Height); err != nil {
		return nil, err
	}
	var gains *[4]float32
	if norm != nil {
		if levels[0].Factor != 2 {
			return nil, configErrorf("factor", "normalized downsampling needs factor 2, got %d", levels[0].Factor)
		}
		g, err := norm.gains()
		if err != nil {
			return nil, err
		}
		gains = &g
	}

	pyr := make(Pyramid, len(levels))
	prev, err := downsample(ctx, d, img, levels[0].Factor, black, gains)
	if err != nil {
		return nil, err
	}
	pyr[0] = prev.ToPrecision(prec)
	for i := 1; i < len(levels); i++ {
		blurred, err := blur(ctx, d, prev, 2)
		if err != nil {
			return nil, err
		}
		if prev, err = downsample(ctx, d, blurred, levels[i].Factor, 0, nil); err != nil {
			return nil, err
		}
		pyr[i] = prev.ToPrecision(prec)
	}
	return pyr, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
