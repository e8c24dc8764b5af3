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
	"math"

	"github.com/mlnoga/insarseed/internal/stack"
)

// Per-pixel usability of a dataset: defined in every epoch, and not masked out
type Validity struct {
	Width  int
	Height int
	Usable []bool // row-major
	Count  int    // number of usable pixels
}

// Computes the validity of all pixels of the dataset. A pixel is usable if its value is
// finite in every epoch and, if a mask is given, the mask is true. Returns ErrEmptyValidity
// if no pixel is usable.
func ComputeValidity(ds *stack.Dataset, mask []bool) (*Validity, error) {
	size := ds.Width * ds.Height
	if mask != nil && len(mask) != size {
		return nil, fmt.Errorf("mask has %d pixels, dataset %s has %dx%d", len(mask), ds.FileName, ds.Width, ds.Height)
	}
	v := &Validity{Width: ds.Width, Height: ds.Height, Usable: make([]bool, size)}
	for i := range v.Usable {
		v.Usable[i] = mask == nil || mask[i]
	}
	for _, e := range ds.Epochs {
		for i, d := range e.Data {
			if math.IsNaN(d) || math.IsInf(d, 0) {
				v.Usable[i] = false
			}
		}
	}
	for _, u := range v.Usable {
		if u {
			v.Count++
		}
	}
	if v.Count == 0 {
		return v, fmt.Errorf("%s: %w", ds.FileName, ErrEmptyValidity)
	}
	return v, nil
}

// Returns true if the point is inside the grid and usable
func (v *Validity) IsUsable(p Point) bool {
	if p.Row < 0 || p.Row >= v.Height || p.Col < 0 || p.Col >= v.Width {
		return false
	}
	return v.Usable[p.Row*v.Width+p.Col]
}

// Returns the point for a row-major pixel index
func (v *Validity) PointAt(index int) Point {
	return Point{Row: index / v.Width, Col: index % v.Width}
}
