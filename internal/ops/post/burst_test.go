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


package post

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlnoga/burstalign/internal/ops"
	"github.com/mlnoga/burstalign/internal/ops/ref"
	"github.com/mlnoga/burstalign/internal/synth"
)

// Writes a synthetic burst into the working directory, which must be a
// relative path for the loaders
func writeBurst(t *testing.T, dir string, n int) {
	frames := synth.NewBurst(synth.BurstConfig{Width: 128, Height: 128, Frames: n, MaxShift: 3, Noise: 2, Seed: 11})
	for i, bf := range frames {
		fileName := filepath.Join(dir, fmt.Sprintf("in%02d.tif", i))
		if err := bf.Image.WriteTIFF16ToFile(fileName, 0, 65535, 1); err != nil {
			t.Fatal(err)
		}
	}
}

func chdirTemp(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestBurstPipeline(t *testing.T) {
	chdirTemp(t)
	writeBurst(t, ".", 4)

	opAlign := NewOpAlign(testConfig(t))
	opAlign.Exposure = "varying"
	op := NewOpBurst(
		ops.NewOpLoadMany([]string{"in*.tif"}),
		ref.NewOpSelectReference(ref.RFMFileID, "", 0),
		opAlign,
		ref.NewOpFilter(100),
		ref.NewOpExportStats("stats.csv"),
		ops.NewOpSave("out%d.tif"),
	)
	c := &ops.Context{Log: io.Discard, MaxThreads: 2}
	n, err := Run(op, c)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("produced %d frames; want 4", n)
	}
	if c.RefFrame == nil || c.RefFrame.ID != 0 {
		t.Errorf("reference frame %v; want id 0", c.RefFrame)
	}
	for i := 0; i < 4; i++ {
		if _, err := os.Stat(fmt.Sprintf("out%d.tif", i)); err != nil {
			t.Errorf("output %d missing: %v", i, err)
		}
	}

	file, err := os.Open("stats.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 || rows[0][0] != "id" || rows[1][0] != "0" || rows[4][0] != "3" {
		t.Errorf("stats rows %v", rows)
	}
	if rows[1][10] != "0" {
		t.Errorf("reference mean shift %s; want 0", rows[1][10])
	}
}

func TestBurstPipelineJSON(t *testing.T) {
	opAlign := NewOpAlignDefault()
	opAlign.TileSize = 32
	op := NewOpBurst(ops.NewOpLoadMany([]string{"*.tif"}), ref.NewOpSelectReferenceDefault(), opAlign,
		ref.NewOpFilter(4), ref.NewOpExportStats(""), ops.NewOpSave("aligned%d.tif"))
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := ops.UnmarshalOperator(data)
	if err != nil {
		t.Fatal(err)
	}
	seq, ok := decoded.(*ops.OpSequence)
	if !ok || len(seq.Steps) != 6 {
		t.Fatalf("decoded %T with %v", decoded, decoded)
	}
	if a, ok := seq.Steps[2].(*OpAlign); !ok || a.TileSize != 32 {
		t.Errorf("step 2 is %T %+v; want align with tile size 32", seq.Steps[2], seq.Steps[2])
	}
	if f, ok := seq.Steps[3].(*ref.OpFilter); !ok || f.MaxMeanShift != 4 {
		t.Errorf("step 3 is %T %+v; want filter at 4", seq.Steps[3], seq.Steps[3])
	}
	if s, ok := seq.Steps[5].(*ops.OpSave); !ok || s.FilePattern != "aligned%d.tif" {
		t.Errorf("step 5 is %T %+v", seq.Steps[5], seq.Steps[5])
	}
}
