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
	"bytes"
	"testing"
)

func TestSetAtHalfPrecision(t *testing.T) {
	img := NewImage(4, 3, PrecFloat16)
	img.Set(2, 1, 1.5)
	if v := img.At(2, 1); v != 1.5 {
		t.Errorf("At(2,1)=%f; want 1.5", v)
	}
	if img.Data != nil {
		t.Errorf("float16 image allocated float32 data")
	}
	// 1/3 is not representable, rounding must land close
	img.Set(0, 0, 1.0/3)
	if v := img.At(0, 0); v < 0.333 || v > 0.334 {
		t.Errorf("At(0,0)=%f; want ~0.3333", v)
	}
}

func TestToPrecision(t *testing.T) {
	img := NewImageFromData(3, 2, []float32{0, 1, 2, 3, 4, 5})
	if img.ToPrecision(PrecFloat32) != img {
		t.Errorf("same precision conversion did not return the receiver")
	}
	half := img.ToPrecision(PrecFloat16)
	if half.Prec != PrecFloat16 || len(half.Half) != 6 {
		t.Fatalf("prec=%v len=%d; want float16 6", half.Prec, len(half.Half))
	}
	back := half.Float32()
	for i, v := range back {
		if v != img.Data[i] {
			t.Errorf("back[%d]=%f; want %f", i, v, img.Data[i])
		}
	}
}

func TestParsePrecision(t *testing.T) {
	for _, p := range []Precision{PrecFloat32, PrecFloat16} {
		got, err := ParsePrecision(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePrecision(%s)=%v,%v; want %v", p, got, err, p)
		}
	}
	if _, err := ParsePrecision("float8"); err == nil {
		t.Errorf("ParsePrecision(float8) did not fail")
	}
}

func TestTIFF16KeepsGrayLevels(t *testing.T) {
	img := NewImage(5, 4, PrecFloat32)
	for i := range img.Data {
		img.Data[i] = float32(i * 1000)
	}
	var buf bytes.Buffer
	if err := img.WriteTIFF16(&buf, 0, 65535, 1); err != nil {
		t.Fatal(err)
	}
	res, err := DecodeTIFF(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !SameDims(img, res) {
		t.Fatalf("dims=%s; want %s", res.DimensionsToString(), img.DimensionsToString())
	}
	for i, v := range res.Data {
		if d := v - img.Data[i]; d < -1 || d > 1 {
			t.Errorf("pixel %d=%f; want %f", i, v, img.Data[i])
		}
	}
}
