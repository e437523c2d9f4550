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

// Package pool keeps constant sized scratch arrays around between uses,
// to reduce memory allocation overhead in the per-tile hot loops.
package pool

import (
	"runtime"
	"sync"
)

// Pool of constant sized arrays of a given element type, one sync.Pool per size
type Pool[T any] struct {
	sync.RWMutex
	m map[int]*sync.Pool
}

// Shared pools for the element types used by the alignment stages
var (
	Float32 = New[float32]()
	Bool    = New[bool]()
)

// Creates an empty pool
func New[T any]() *Pool[T] {
	return &Pool[T]{m: make(map[int]*sync.Pool)}
}

// Returns the pool for arrays of the given size, creating it on first use
func (p *Pool[T]) sized(size int) *sync.Pool {
	p.RLock()
	sp := p.m[size]
	p.RUnlock()
	if sp != nil {
		return sp
	}

	p.Lock()
	defer p.Unlock()
	if sp = p.m[size]; sp == nil {
		sp = &sync.Pool{
			New: func() interface{} {
				return make([]T, size)
			},
		}
		p.m[size] = sp
	}
	return sp
}

// Retrieves an array of given size from the pool. Contents are undefined
func (p *Pool[T]) Get(size int) []T {
	return p.sized(size).Get().([]T)
}

// Retrieves an array of given size from the pool, with all elements set to the zero value
func (p *Pool[T]) GetZeroed(size int) []T {
	arr := p.Get(size)
	var zero T
	for i := range arr {
		arr[i] = zero
	}
	return arr
}

// Returns an array to the pool. The caller must not use it afterwards
func (p *Pool[T]) Put(arr []T) {
	if cap(arr) == 0 {
		return
	}
	p.sized(cap(arr)).Put(arr[:cap(arr)])
}

// Drops all pooled arrays
func (p *Pool[T]) Clear() {
	p.Lock()
	p.m = make(map[int]*sync.Pool)
	p.Unlock()
}

// Clears all shared pools and triggers garbage collection
func ClearPools() {
	Float32.Clear()
	Bool.Clear()
	runtime.GC()
}

// Per-worker scratch arena. Each worker index owns one array, fetched lazily
// from the pool on first use and returned by Release.
type Arena[T any] struct {
	pool  *Pool[T]
	size  int
	slots [][]T
}

// Creates an arena for the given number of workers, handing out arrays of given size
func NewArena[T any](p *Pool[T], workers, size int) *Arena[T] {
	return &Arena[T]{pool: p, size: size, slots: make([][]T, workers)}
}

// Returns the scratch array of the given worker. Safe for concurrent use
// as long as each worker index is used by a single goroutine.
func (a *Arena[T]) For(worker int) []T {
	s := a.slots[worker]
	if s == nil {
		s = a.pool.Get(a.size)
		a.slots[worker] = s
	}
	return s
}

// Returns all arrays to the pool
func (a *Arena[T]) Release() {
	for i, s := range a.slots {
		if s != nil {
			a.pool.Put(s)
			a.slots[i] = nil
		}
	}
}
