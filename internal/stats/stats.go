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

	"github.com/mlnoga/insarseed/internal/qsort"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics over the finite values of an array
type Stats struct {
	Count  int     // Number of values, including undefined ones
	Valid  int     // Number of finite values
	Min    float64 // Minimum finite value
	Max    float64 // Maximum finite value
	Mean   float64 // Mean of finite values
	StdDev float64 // Sample standard deviation of finite values
	Median float64 // Median of finite values
}

// Calculates statistics over the finite values of data. Data is not modified.
// All fields but Count are NaN if there are no finite values
func NewStats(data []float64) *Stats {
	finite := Finite(data)
	s := &Stats{Count: len(data), Valid: len(finite)}
	if len(finite) == 0 {
		s.Min, s.Max, s.Mean, s.StdDev, s.Median = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min, s.Max = finite[0], finite[0]
	for _, v := range finite {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	s.Median = qsort.QSelectMedianFloat64(finite)
	return s
}

func (s *Stats) String() string {
	return fmt.Sprintf("valid=%d/%d min=%.4g max=%.4g mean=%.4g stddev=%.4g median=%.4g",
		s.Valid, s.Count, s.Min, s.Max, s.Mean, s.StdDev, s.Median)
}

// Returns a new slice with the finite values of data
func Finite(data []float64) []float64 {
	res := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			res = append(res, v)
		}
	}
	return res
}

// Returns the values at the low and high percentiles of the finite values of data,
// for stretching previews. Returns 0, 1 if there are no finite values
func PercentileRange(data []float64, low, high float64) (lo, hi float64) {
	finite := Finite(data)
	if len(finite) == 0 {
		return 0, 1
	}
	lo = qsort.QSelectPercentileFloat64(finite, low)
	hi = qsort.QSelectPercentileFloat64(finite, high)
	return lo, hi
}
