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
	"fmt"
	"math"

	"github.com/mlnoga/burstalign/internal/qsort"
	"github.com/valyala/fastrand"
)

// Number of random samples used for the approximate location and scale estimates
const numSamples = 4096

// Basic image statistics. Location and scale are fast sampled estimates
// (median and normalized median absolute deviation) which are robust
// against hot pixels and saturated highlights.
type Stats struct {
	Width    int
	Min      float32
	Max      float32
	Mean     float32
	StdDev   float32
	Location float32
	Scale    float32
}

// Calculates statistics for the given data, which is a 2D array with given line width
func NewStats(data []float32, width int) *Stats {
	s := &Stats{Width: width}
	if len(data) == 0 {
		return s
	}
	s.Min, s.Max, s.Mean, s.StdDev = minMaxMeanStdDev(data)

	samples := make([]float32, numSamples)
	rng := fastrand.RNG{}
	s.Location = FastApproxMedian(&rng, data, samples)
	s.Scale = FastApproxMAD(&rng, data, s.Location, samples)
	return s
}

func (s *Stats) String() string {
	return fmt.Sprintf("min %.4g max %.4g mean %.4g stddev %.4g location %.4g scale %.4g",
		s.Min, s.Max, s.Mean, s.StdDev, s.Location, s.Scale)
}

// Calculates min, max, mean and standard deviation in a single pass
func minMaxMeanStdDev(data []float32) (min, max, mean, stdDev float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	sum, sumSq := float64(0), float64(0)
	for _, d := range data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		sum += float64(d)
		sumSq += float64(d) * float64(d)
	}
	n := float64(len(data))
	m := sum / n
	variance := sumSq/n - m*m
	if variance < 0 {
		variance = 0
	}
	return min, max, float32(m), float32(math.Sqrt(variance))
}

// Calculates fast approximate median of the (presumably large) data by subsampling the given number of values and taking the median of that.
// Uses provided samples array as scratchpad
func FastApproxMedian(rng *fastrand.RNG, data []float32, samples []float32) float32 {
	max := uint32(len(data))
	for i := range samples {
		samples[i] = data[rng.Uint32n(max)]
	}
	return qsort.QSelectMedian(samples)
}

// Calculates fast approximate median of absolute differences of the (presumably large) data by subsampling, normalized to a Gaussian standard deviation.
// Uses provided samples array as scratchpad
func FastApproxMAD(rng *fastrand.RNG, data []float32, location float32, samples []float32) float32 {
	max := uint32(len(data))
	for i := range samples {
		samples[i] = float32(math.Abs(float64(data[rng.Uint32n(max)] - location)))
	}
	return qsort.QSelectMedian(samples) * 1.4826
}

// Sharpness estimate for reference frame selection: the mean squared
// forward difference along both axes, normalized by the squared scale so
// that frames with different exposure compare fairly.
func Sharpness(data []float32, width int, scale float32) float32 {
	height := len(data) / width
	if width < 2 || height < 2 {
		return 0
	}
	sum := float64(0)
	for y := 0; y < height-1; y++ {
		row, next := data[y*width:(y+1)*width], data[(y+1)*width:(y+2)*width]
		for x := 0; x < width-1; x++ {
			dx := float64(row[x+1] - row[x])
			dy := float64(next[x] - row[x])
			sum += dx*dx + dy*dy
		}
	}
	mean := sum / float64((width-1)*(height-1))
	if scale > 0 {
		mean /= float64(scale) * float64(scale)
	}
	return float32(mean)
}
