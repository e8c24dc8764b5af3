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

package seed

import (
	"fmt"

	"github.com/mlnoga/insarseed/internal/stack"
	"gonum.org/v1/gonum/stat"
)

// Computes one reference value per epoch key. For a point, this is the epoch's value at
// the point. For global average, the arithmetic mean over the usable pixels of the epoch.
// Pair-keyed epochs each use their own array.
func ComputeValues(ds *stack.Dataset, res Resolution, validity *Validity) (map[string]float64, error) {
	values := make(map[string]float64, len(ds.Epochs))
	if !res.GlobalAverage {
		if !ds.InBounds(res.Point.Row, res.Point.Col) {
			return nil, fmt.Errorf("pixel %v: %w", res.Point, ErrOutOfBoundsOrMasked)
		}
		for _, e := range ds.Epochs {
			values[e.Key] = e.At(res.Point.Row, res.Point.Col)
		}
		return values, nil
	}

	if validity == nil || validity.Count == 0 {
		return nil, ErrEmptyValidity
	}
	buf := make([]float64, 0, validity.Count)
	for _, e := range ds.Epochs {
		buf = buf[:0]
		for i, usable := range validity.Usable {
			if usable {
				buf = append(buf, e.Data[i])
			}
		}
		values[e.Key] = stat.Mean(buf, nil)
	}
	return values, nil
}

// Converts an externally supplied list of reference values, ordered like the epochs,
// into a mapping by epoch key. Returns ErrEpochCountMismatch if the lengths differ
func ValuesFromList(ds *stack.Dataset, list []float64) (map[string]float64, error) {
	if len(list) != len(ds.Epochs) {
		return nil, fmt.Errorf("%d values for %d epochs: %w", len(list), len(ds.Epochs), ErrEpochCountMismatch)
	}
	values := make(map[string]float64, len(list))
	for i, e := range ds.Epochs {
		values[e.Key] = list[i]
	}
	return values, nil
}
