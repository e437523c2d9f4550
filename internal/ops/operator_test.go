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


package ops

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/burstalign/internal/frame"
)

func promiseOf(f *frame.Image, err error) Promise {
	return func() (*frame.Image, error) { return f, err }
}

func TestMaterializeAll(t *testing.T) {
	a, b := frame.NewImage(2, 2, frame.PrecFloat32), frame.NewImage(2, 2, frame.PrecFloat32)
	outs, err := MaterializeAll([]Promise{promiseOf(a, nil), promiseOf(nil, nil), promiseOf(b, nil)}, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 2 || outs[0] != a || outs[1] != b {
		t.Errorf("outs=%v; want [a b] without nil", outs)
	}

	_, err = MaterializeAll([]Promise{
		promiseOf(nil, errors.New("first")), promiseOf(a, nil), promiseOf(nil, errors.New("second")),
	}, 1, true)
	if err == nil || !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "second") {
		t.Errorf("err=%v; want both errors joined", err)
	}
}

func TestRemoveNils(t *testing.T) {
	a := frame.NewImage(1, 1, frame.PrecFloat32)
	fs := RemoveNils([]*frame.Image{nil, a, nil, a})
	if len(fs) != 2 || fs[0] != a || fs[1] != a {
		t.Errorf("RemoveNils=%v; want two images", fs)
	}
}

func TestExpandPattern(t *testing.T) {
	tests := []struct {
		pattern string
		id      int
		want    string
	}{
		{"out.tif", 3, "out.tif"},
		{"out%d.tif", 3, "out3.tif"},
		{"out%04d.jpg", 12, "out0012.jpg"},
	}
	for _, test := range tests {
		if got := ExpandPattern(test.pattern, test.id); got != test.want {
			t.Errorf("ExpandPattern(%q, %d)=%q; want %q", test.pattern, test.id, got, test.want)
		}
	}
}

func TestIsPathAllowed(t *testing.T) {
	for p, want := range map[string]bool{"a.tif": true, "dir/a.tif": true, "/etc/passwd": false, "../a.tif": false} {
		if got := IsPathAllowed(p); got != want {
			t.Errorf("IsPathAllowed(%q)=%v; want %v", p, got, want)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	img := frame.NewImage(16, 8, frame.PrecFloat32)
	for i := range img.Data {
		img.Data[i] = float32(i * 100)
	}
	img.ID = 7
	c := &Context{Log: io.Discard, MaxThreads: 2}
	for _, pattern := range []string{"save%d.tif", "save%d.jpg"} {
		if _, err := NewOpSave(pattern).Apply(img, c); err != nil {
			t.Errorf("saving %s: %v", pattern, err)
		}
	}
	if _, err := NewOpSave("save%d.bmp").Apply(img, c); err == nil {
		t.Errorf("saved with unknown suffix")
	}
	outside := filepath.Join(t.TempDir(), "save%d.tif")
	for _, pattern := range []string{outside, filepath.Join("..", "save%d.tif")} {
		if out, err := NewOpSave(pattern).Apply(img, c); err == nil || out != nil {
			t.Errorf("%s: out=%v err=%v; want error", pattern, out, err)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(outside), "save7.tif")); !os.IsNotExist(err) {
		t.Errorf("saved outside tree: %v", err)
	}

	promises, err := NewOpLoadMany([]string{"save*.tif"}).MakePromises(nil, c)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := MaterializeAll(promises, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].Width != 16 || loaded[0].Height != 8 {
		t.Fatalf("loaded %v", loaded)
	}
	if v := loaded[0].At(3, 2); v < 3500-1 || v > 3500+1 {
		t.Errorf("pixel (3,2)=%g; want 3500", v)
	}

	if _, err := NewOpLoadMany([]string{"none*.tif"}).MakePromises(nil, c); err == nil {
		t.Errorf("no error for empty pattern match")
	}
	if _, err := NewOpLoad(0, filepath.Join("..", "x.tif")).MakePromises(nil, c); err == nil {
		t.Errorf("loaded from parent directory")
	}
}

func TestSequenceJSON(t *testing.T) {
	seq := NewOpSequence(NewOpLoadMany([]string{"*.tif"}), NewOpForEach(NewOpSave("out%d.tif")))
	data, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}
	op, err := UnmarshalOperator(data)
	if err != nil {
		t.Fatal(err)
	}
	decoded, ok := op.(*OpSequence)
	if !ok || len(decoded.Steps) != 2 {
		t.Fatalf("decoded %T %+v", op, op)
	}
	lm, ok := decoded.Steps[0].(*OpLoadMany)
	if !ok || len(lm.FilePatterns) != 1 || lm.FilePatterns[0] != "*.tif" {
		t.Errorf("step 0 %+v", decoded.Steps[0])
	}
	fe, ok := decoded.Steps[1].(*OpForEach)
	if !ok {
		t.Fatalf("step 1 %T", decoded.Steps[1])
	}
	save, ok := fe.Operation.(*OpSave)
	if !ok || save.FilePattern != "out%d.tif" || !save.Active || save.OpUnaryBase.Apply == nil {
		t.Errorf("embedded operation %+v", fe.Operation)
	}

	if _, err := UnmarshalOperator([]byte(`{"type":"teleport"}`)); err == nil {
		t.Errorf("unknown operator type accepted")
	}
}

func TestForEach(t *testing.T) {
	c := &Context{Log: io.Discard, MaxThreads: 1}
	a := frame.NewImage(1, 1, frame.PrecFloat32)
	outs, err := NewOpForEach(NewOpSave("")).MakePromises([]Promise{promiseOf(a, nil), promiseOf(a, nil)}, c)
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 2 {
		t.Errorf("%d outputs; want 2", len(outs))
	}
	if _, err := NewOpForEach(nil).MakePromises([]Promise{promiseOf(a, nil)}, c); err == nil {
		t.Errorf("forEach without operation accepted input")
	}
}

func TestFrameBudget(t *testing.T) {
	c := &Context{AlignMemoryMB: 100, MaxThreads: 4}
	if got, want := c.FrameBudget(), int64(25*1024*1024); got != want {
		t.Errorf("FrameBudget()=%d; want %d", got, want)
	}
	c.AlignMemoryMB = 0
	if got := c.FrameBudget(); got != 0 {
		t.Errorf("FrameBudget() without memory=%d; want 0", got)
	}
	if c.Context() == nil {
		t.Errorf("nil cancellation context")
	}
}
