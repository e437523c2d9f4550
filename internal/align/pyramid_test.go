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
	"errors"
	"testing"

	"github.com/mlnoga/burstalign/internal/frame"
	"github.com/mlnoga/burstalign/internal/synth"
)

func constImage(w, h int, v float32) *frame.Image {
	img := frame.NewImage(w, h, frame.PrecFloat32)
	for i := range img.Data {
		img.Data[i] = v
	}
	return img
}

func TestPyramidDims(t *testing.T) {
	img := synth.NewTexture(3, 4, 8, 32, 500, 100).Render(101, 77, 0, 0, 1)
	levels := []Level{{2, 4, 2, 0}, {2, 4, 2, 1}, {3, 2, 1, 1}}
	pyr, err := BuildPyramid(context.Background(), CPUDispatcher{Threads: 2}, img, levels, 0, nil, frame.PrecFloat32)
	if err != nil {
		t.Fatal(err)
	}
	w, h := img.Width, img.Height
	for i, l := range levels {
		w, h = w/l.Factor, h/l.Factor
		if pyr[i].Width != w || pyr[i].Height != h {
			t.Errorf("level %d is %s; want %dx%d", i, pyr[i].DimensionsToString(), w, h)
		}
	}
}

func TestDownsampleConstant(t *testing.T) {
	const v, black = 1000.5, 100.25
	img := constImage(20, 15, v)
	for scale := 1; scale <= 5; scale++ {
		res, err := Downsample(img, scale, black)
		if err != nil {
			t.Fatal(err)
		}
		if res.Width != 20/scale || res.Height != 15/scale {
			t.Errorf("scale %d dims %s; want %dx%d", scale, res.DimensionsToString(), 20/scale, 15/scale)
		}
		for i, d := range res.Data {
			if d != v-black {
				t.Errorf("scale %d pixel %d=%f; want %f", scale, i, d, v-black)
				break
			}
		}
	}
}

func TestBlurKeepsConstant(t *testing.T) {
	res := Blur(constImage(9, 7, 64), 2)
	for i, d := range res.Data {
		if d != 64 {
			t.Errorf("pixel %d=%f; want 64", i, d)
		}
	}
	k := binomialKernel(2)
	want := []float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}
	for i := range want {
		if k[i] != want[i] {
			t.Errorf("k[%d]=%f; want %f", i, k[i], want[i])
		}
	}
}

func TestNormalizationNeedsScale2(t *testing.T) {
	img := constImage(48, 48, 100)
	norm := &Normalization{Factors: [3]float32{2, 1, 1.5}, CFA: CFARGGB}
	for scale := 1; scale <= 8; scale++ {
		for run := 0; run < 2; run++ {
			res, err := DownsampleNormalized(img, scale, 0, norm)
			if scale == 2 {
				if err != nil || res == nil {
					t.Errorf("scale 2 run %d: err=%v; want success", run, err)
				}
				continue
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) || res != nil {
				t.Errorf("scale %d: err=%v res=%v; want ConfigurationError", scale, err, res)
			}
		}
	}
}

func TestNormalizationNil(t *testing.T) {
	res, err := DownsampleNormalized(constImage(8, 8, 1), 2, 0, nil)
	var ce *ConfigurationError
	if !errors.As(err, &ce) || res != nil {
		t.Errorf("err=%v res=%v; want ConfigurationError", err, res)
	}
}

func TestNormalizationEqualizesChannels(t *testing.T) {
	factors := [3]float32{2, 1, 1.5}
	for _, cfa := range []CFAPattern{CFARGGB, CFAGRBG, CFAGBRG, CFABGGR} {
		ch, err := cfa.channels()
		if err != nil {
			t.Fatal(err)
		}
		img := constImage(16, 16, 100)
		var gains [4]float32
		for i := range gains {
			gains[i] = factors[ch[i]]
		}
		synth.Mosaic(img, gains)
		res, err := DownsampleNormalized(img, 2, 0, &Normalization{Factors: factors, CFA: cfa})
		if err != nil {
			t.Fatal(err)
		}
		want := float32(100 * 1.5)
		for i, d := range res.Data {
			if d < want-1e-3 || d > want+1e-3 {
				t.Errorf("%s pixel %d=%f; want %f", cfa, i, d, want)
				break
			}
		}
	}
}

func TestBadCFA(t *testing.T) {
	for _, p := range []CFAPattern{"", "RGB", "RRGB", "RGGX", "GGGG"} {
		if _, err := p.channels(); err == nil {
			t.Errorf("pattern '%s' accepted", p)
		}
	}
	norm := &Normalization{Factors: [3]float32{1, 0, 1}, CFA: CFARGGB}
	if _, err := norm.gains(); err == nil {
		t.Errorf("zero color factor accepted")
	}
}

func TestPyramidHalfPrecision(t *testing.T) {
	img := synth.NewTexture(5, 4, 8, 32, 500, 100).Render(64, 64, 0, 0, 1)
	levels := []Level{{1, 8, 2, 0}, {2, 8, 2, 1}}
	pyr, err := BuildPyramid(context.Background(), serial, img, levels, 0, nil, frame.PrecFloat16)
	if err != nil {
		t.Fatal(err)
	}
	for i, lvl := range pyr {
		if lvl.Prec != frame.PrecFloat16 {
			t.Errorf("level %d precision %v; want float16", i, lvl.Prec)
		}
	}
	if d := pyr[0].At(10, 10) - img.At(10, 10); d < -0.5 || d > 0.5 {
		t.Errorf("level 0 pixel off by %f", d)
	}
}
