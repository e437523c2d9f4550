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


package synth

import "testing"

func TestRenderShift(t *testing.T) {
	tex := NewTexture(1, 5, 10, 40, 100, 50)
	ref := tex.Render(32, 24, 0, 0, 1)
	comp := tex.Render(32, 24, 3, -2, 1)
	for y := 2; y < 20; y++ {
		for x := 0; x < 29; x++ {
			if r, c := ref.At(x, y), comp.At(x+3, y-2); r != c {
				t.Errorf("ref(%d,%d)=%f comp(%d,%d)=%f; want equal", x, y, r, x+3, y-2, c)
			}
		}
	}
}

func TestBurstDeterministic(t *testing.T) {
	c := BurstConfig{Width: 16, Height: 16, Frames: 4, MaxShift: 3, Noise: 5, GainJitter: 0.05, Seed: 9}
	a, b := NewBurst(c), NewBurst(c)
	for i := range a {
		if a[i].DX != b[i].DX || a[i].DY != b[i].DY || a[i].Gain != b[i].Gain {
			t.Errorf("frame %d: (%d,%d,%f) vs (%d,%d,%f); want equal", i, a[i].DX, a[i].DY, a[i].Gain, b[i].DX, b[i].DY, b[i].Gain)
		}
		if a[i].Image.Data[17] != b[i].Image.Data[17] {
			t.Errorf("frame %d pixel differs", i)
		}
		if a[i].DX < -3 || a[i].DX > 3 || a[i].DY < -3 || a[i].DY > 3 {
			t.Errorf("frame %d shift (%d,%d); want within 3", i, a[i].DX, a[i].DY)
		}
	}
	if a[0].DX != 0 || a[0].DY != 0 || a[0].Gain != 1 {
		t.Errorf("frame 0 shift (%d,%d) gain %f; want (0,0) 1", a[0].DX, a[0].DY, a[0].Gain)
	}
}
