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

package pool

import (
	"testing"
)

func TestGetReturnsRequestedSize(t *testing.T) {
	p := New[float32]()
	for _, size := range []int{1, 7, 64, 340} {
		arr := p.Get(size)
		if len(arr) != size {
			t.Errorf("len(Get(%d))=%d; want %d", size, len(arr), size)
		}
		p.Put(arr)
		arr = p.Get(size)
		if len(arr) != size {
			t.Errorf("len(Get(%d)) after Put=%d; want %d", size, len(arr), size)
		}
	}
}

func TestGetZeroed(t *testing.T) {
	p := New[float32]()
	arr := p.Get(16)
	for i := range arr {
		arr[i] = float32(i + 1)
	}
	p.Put(arr)
	arr = p.GetZeroed(16)
	for i, v := range arr {
		if v != 0 {
			t.Errorf("arr[%d]=%f; want 0", i, v)
		}
	}
}

func TestArenaPerWorker(t *testing.T) {
	a := NewArena(New[bool](), 3, 10)
	s0, s2 := a.For(0), a.For(2)
	if len(s0) != 10 || len(s2) != 10 {
		t.Errorf("len=%d,%d; want 10", len(s0), len(s2))
	}
	s0[0] = true
	if !a.For(0)[0] {
		t.Errorf("worker 0 did not get its own scratch back")
	}
	if a.slots[1] != nil {
		t.Errorf("worker 1 scratch allocated without use")
	}
	a.Release()
	for i, s := range a.slots {
		if s != nil {
			t.Errorf("slot %d not released", i)
		}
	}
}
