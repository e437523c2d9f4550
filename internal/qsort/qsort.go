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


// Package qsort provides in-place quicksort and quickselect for the
// float sample arrays used by the statistics code.
package qsort

// Floating point element types supported by the routines in this package
type Float interface {
	~float32 | ~float64
}

// Sort an array in ascending order.
// Array must not contain IEEE NaN
func QSort[T Float](a []T) {
	for len(a) > 1 {
		index := QPartition(a)
		// recurse into the smaller half, loop on the larger one
		if index+1 < len(a)-index-1 {
			QSort(a[:index+1])
			a = a[index+1:]
		} else {
			QSort(a[index+1:])
			a = a[:index+1]
		}
	}
}

// Partitions an array with the middle pivot element, and returns the pivot index.
// Values less than the pivot are moved left of the pivot, those greater are moved right.
// Array must not contain IEEE NaN
func QPartition[T Float](a []T) int {
	left, right := 0, len(a)-1
	pivot := a[(left+right)>>1]
	l, r := left-1, right+1
	for {
		for {
			l++
			if a[l] >= pivot {
				break
			}
		}
		for {
			r--
			if a[r] <= pivot {
				break
			}
		}
		if l >= r {
			return r
		}
		a[l], a[r] = a[r], a[l]
	}
}

// Select median of an array. Partially reorders the array.
// For even lengths, returns the mean of the two central elements.
// Array must not contain IEEE NaN
func QSelectMedian[T Float](a []T) T {
	if len(a) == 0 {
		return 0
	}
	upper := QSelect(a, (len(a)>>1)+1)
	if len(a)&1 != 0 {
		return upper
	}
	// the lower central element is the maximum of the left part after selection
	lower := a[0]
	for _, v := range a[:len(a)>>1] {
		if v > lower {
			lower = v
		}
	}
	return (lower + upper) * 0.5
}

// Select kth lowest element from an array, 1-based. Partially reorders the array
// so that all elements left of position k-1 are less or equal.
// Array must not contain IEEE NaN
func QSelect[T Float](a []T, k int) T {
	left, right := 0, len(a)-1
	for left < right {
		mid := (left + right) >> 1
		pivot := a[mid]
		l, r := left-1, right+1
		for {
			for {
				l++
				if a[l] >= pivot {
					break
				}
			}
			for {
				r--
				if a[r] <= pivot {
					break
				}
			}
			if l >= r {
				break
			}
			a[l], a[r] = a[r], a[l]
		}
		index := r

		offset := index - left + 1
		if k <= offset {
			right = index
		} else {
			left = index + 1
			k = k - offset
		}
	}
	return a[left]
}
