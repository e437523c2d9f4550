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


package stats

import (
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestStatsConstant(t *testing.T) {
	data := make([]float32, 1000)
	for i := range data {
		data[i] = 7
	}
	s := NewStats(data, 50)
	if s.Min != 7 || s.Max != 7 || s.Mean != 7 || s.Location != 7 {
		t.Errorf("stats=%v; want all 7", s)
	}
	if s.StdDev != 0 || s.Scale != 0 {
		t.Errorf("stddev=%f scale=%f; want 0", s.StdDev, s.Scale)
	}
}

func TestStatsUniform(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(42)
	data := make([]float32, 100000)
	for i := range data {
		data[i] = float32(rng.Uint32n(1001))
	}
	s := NewStats(data, 1000)
	if math.Abs(float64(s.Location)-500) > 30 {
		t.Errorf("location=%f; want ~500", s.Location)
	}
	if math.Abs(float64(s.Mean)-500) > 5 {
		t.Errorf("mean=%f; want ~500", s.Mean)
	}
	// MAD of uniform [0,1000] is 250
	if math.Abs(float64(s.Scale)-250*1.4826) > 30 {
		t.Errorf("scale=%f; want ~%f", s.Scale, 250*1.4826)
	}
}

func TestSharpness(t *testing.T) {
	flat := make([]float32, 64)
	if s := Sharpness(flat, 8, 1); s != 0 {
		t.Errorf("Sharpness(flat)=%f; want 0", s)
	}
	checker := make([]float32, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			checker[y*8+x] = float32((x + y) % 2)
		}
	}
	if s := Sharpness(checker, 8, 1); s != 2 {
		t.Errorf("Sharpness(checker)=%f; want 2", s)
	}
}

func TestVectorSummary(t *testing.T) {
	vs := NewVectorSummary([]float64{0, 3, 0}, []float64{0, 4, 0})
	if vs.N != 3 || vs.NumNonZero != 1 {
		t.Errorf("n=%d nonzero=%d; want 3 1", vs.N, vs.NumNonZero)
	}
	if vs.MaxMag != 5 {
		t.Errorf("max=%f; want 5", vs.MaxMag)
	}
	if vs.MeanX != 1 {
		t.Errorf("meanX=%f; want 1", vs.MeanX)
	}
}
