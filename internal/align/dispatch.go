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
	"runtime"
	"sync"
	"sync/atomic"
)

// Parallel dispatch capability. Dispatch calls fn once for every (x,y) in
// [0,w)x[0,h), passing the index of the calling worker in [0,Workers()).
// It returns once all calls have finished, or with the context error if the
// context was cancelled, in which case some positions may not have been visited.
type Dispatcher interface {
	Workers() int
	Dispatch(ctx context.Context, w, h int, fn func(worker, x, y int)) error
}

// Single threaded dispatch for standalone stage calls
var serial Dispatcher = CPUDispatcher{Threads: 1}

// Dispatches rows over a fixed set of goroutines on the CPU
type CPUDispatcher struct {
	Threads int // Number of worker goroutines, GOMAXPROCS if <=0
}

func (d CPUDispatcher) Workers() int {
	if d.Threads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return d.Threads
}

func (d CPUDispatcher) Dispatch(ctx context.Context, w, h int, fn func(worker, x, y int)) error {
	if w <= 0 || h <= 0 {
		return ctx.Err()
	}
	workers := d.Workers()
	if workers > h {
		workers = h
	}

	nextRow := int64(-1)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				y := int(atomic.AddInt64(&nextRow, 1))
				if y >= h {
					return
				}
				for x := 0; x < w; x++ {
					fn(worker, x, y)
				}
			}
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}
