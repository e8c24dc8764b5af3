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

package qsort

// Select median of an array of float64. Partially reorders the array.
// For even lengths, returns the upper of the two middle elements.
// Array must not contain IEEE NaN
func QSelectMedianFloat64(a []float64) float64 {
	return QSelectFloat64(a, (len(a)>>1)+1)
}

// Select the element at the given percentile in [0,100] from an array of float64.
// Partially reorders the array. Array must not contain IEEE NaN
func QSelectPercentileFloat64(a []float64, percentile float64) float64 {
	k := int(percentile/100*float64(len(a)-1)+0.5) + 1
	if k < 1 {
		k = 1
	} else if k > len(a) {
		k = len(a)
	}
	return QSelectFloat64(a, k)
}

// Select kth lowest element from an array of float64, k starting at 1. Partially reorders the array.
// Array must not contain IEEE NaN
func QSelectFloat64(a []float64, k int) float64 {
	left, right := 0, len(a)-1
	for left < right {
		// partition
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
				break // index in r
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
