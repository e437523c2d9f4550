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


// Package synth generates synthetic bursts with known displacements, for
// demonstrations and tests.
package synth

import (
	"math"

	"github.com/mlnoga/burstalign/internal/frame"
	"github.com/valyala/fastrand"
)

// Smooth aperiodic texture, a sum of plane waves with pseudo-random
// orientations, periods and phases. Defined on the whole plane, so shifted
// copies have no border artifacts.
type Texture struct {
	Offset float64
	waves  []wave
}

type wave struct {
	kx, ky float64 // Wave vector in radians per pixel
	phase  float64
	amp    float64
}

// Creates a texture of n waves with periods in [minPeriod,maxPeriod] pixels
// and total amplitude amp around offset. Deterministic for a given seed.
func NewTexture(seed uint32, n int, minPeriod, maxPeriod, offset, amp float64) *Texture {
	rng := fastrand.RNG{}
	rng.Seed(seed)
	t := &Texture{Offset: offset, waves: make([]wave, n)}
	for i := range t.waves {
		angle := uniform(&rng) * math.Pi
		period := minPeriod + uniform(&rng)*(maxPeriod-minPeriod)
		k := 2 * math.Pi / period
		t.waves[i] = wave{
			kx:    k * math.Cos(angle),
			ky:    k * math.Sin(angle),
			phase: uniform(&rng) * 2 * math.Pi,
			amp:   amp / float64(n),
		}
	}
	return t
}

// Returns a pseudo-random number in [0,1)
func uniform(rng *fastrand.RNG) float64 {
	return float64(rng.Uint32n(1<<24)) / (1 << 24)
}

// Evaluates the texture at the given position
func (t *Texture) At(x, y float64) float64 {
	v := t.Offset
	for _, w := range t.waves {
		v += w.amp * math.Sin(w.kx*x+w.ky*y+w.phase)
	}
	return v
}

// Renders the texture moved by (dx,dy) and scaled by gain, so that pixel
// (x,y) shows the texture at (x-dx, y-dy)
func (t *Texture) Render(width, height, dx, dy int, gain float32) *frame.Image {
	img := frame.NewImage(width, height, frame.PrecFloat32)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Data[y*width+x] = gain * float32(t.At(float64(x-dx), float64(y-dy)))
		}
	}
	return img
}

// Adds approximately Gaussian noise of given standard deviation, from the sum of uniform variates
func AddNoise(img *frame.Image, seed uint32, sigma float32) {
	if sigma <= 0 {
		return
	}
	rng := fastrand.RNG{}
	rng.Seed(seed)
	// the sum of 12 uniforms has variance 1
	for i := range img.Data {
		s := float64(0)
		for j := 0; j < 12; j++ {
			s += uniform(&rng)
		}
		img.Data[i] += sigma * float32(s-6)
	}
}

// Multiplies each pixel by the gain of its position in a 2x2 mosaic cell,
// in row major order, to mimic raw Bayer data
func Mosaic(img *frame.Image, gains [4]float32) {
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Data[y*img.Width+x] *= gains[(y&1)*2+(x&1)]
		}
	}
}

// Settings for a synthetic burst
type BurstConfig struct {
	Width, Height int
	Frames        int
	MaxShift      int     // Maximum absolute shift per axis, in pixels
	Noise         float32 // Noise standard deviation
	GainJitter    float32 // Maximum relative exposure deviation, e.g. 0.05
	Seed          uint32
}

// A frame of a synthetic burst with its true displacement relative to frame 0
type BurstFrame struct {
	Image  *frame.Image
	DX, DY int
	Gain   float32
}

// Generates a burst. Frame 0 is unshifted with gain 1
func NewBurst(c BurstConfig) []BurstFrame {
	rng := fastrand.RNG{}
	rng.Seed(c.Seed)
	tex := NewTexture(c.Seed, 12, 12, 96, 4000, 3000)
	frames := make([]BurstFrame, c.Frames)
	for i := range frames {
		dx, dy, gain := 0, 0, float32(1)
		if i > 0 && c.MaxShift > 0 {
			span := uint32(2*c.MaxShift + 1)
			dx = int(rng.Uint32n(span)) - c.MaxShift
			dy = int(rng.Uint32n(span)) - c.MaxShift
		}
		if i > 0 && c.GainJitter > 0 {
			gain = 1 + c.GainJitter*float32(2*uniform(&rng)-1)
		}
		img := tex.Render(c.Width, c.Height, dx, dy, gain)
		AddNoise(img, c.Seed+uint32(i)*7919, c.Noise)
		img.ID = i
		frames[i] = BurstFrame{Image: img, DX: dx, DY: dy, Gain: gain}
	}
	return frames
}
