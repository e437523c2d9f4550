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


package main

import (
	"testing"

	"github.com/mlnoga/burstalign/internal/align"
)

func TestParseLevels(t *testing.T) {
	levels, err := parseLevels("2:16:2, 4:16:4,2:8:2")
	if err != nil {
		t.Fatal(err)
	}
	want := []align.Level{
		{Factor: 2, TileSize: 16, SearchDist: 2, L2Weight: 0},
		{Factor: 4, TileSize: 16, SearchDist: 4, L2Weight: 1},
		{Factor: 2, TileSize: 8, SearchDist: 2, L2Weight: 1},
	}
	if len(levels) != len(want) {
		t.Fatalf("got %d levels; want %d", len(levels), len(want))
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Errorf("level %d=%+v; want %+v", i, levels[i], want[i])
		}
	}
	for _, bad := range []string{"", "2:16", "2:x:2", "2:16:2,"} {
		if _, err := parseLevels(bad); err == nil {
			t.Errorf("parseLevels(%q) accepted", bad)
		}
	}
}

func TestParseFloats(t *testing.T) {
	fs, err := parseFloats("2.1, 1,1.6", 3)
	if err != nil {
		t.Fatal(err)
	}
	if fs[0] != 2.1 || fs[1] != 1 || fs[2] != 1.6 {
		t.Errorf("parseFloats=%v; want [2.1 1 1.6]", fs)
	}
	if _, err := parseFloats("1,2", 3); err == nil {
		t.Errorf("accepted two values")
	}
}

func TestAlignFromFlagsDefaults(t *testing.T) {
	op, err := alignFromFlags()
	if err != nil {
		t.Fatal(err)
	}
	if op.TileSize != 16 || op.SearchDist != 64 || op.Layout != "bayer" || op.ColorFactors != [3]float32{} {
		t.Errorf("config %+v", op.AlignConfig)
	}
}
