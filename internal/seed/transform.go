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
	"strconv"

	"github.com/mlnoga/insarseed/internal/stack"
	"gonum.org/v1/gonum/floats"
)

// Attribute keys describing the spatial reference. Removal strips all of them
var refPointKeys = []string{stack.KeyRefY, stack.KeyRefX, stack.KeyRefLat, stack.KeyRefLon, stack.KeyRefMethod}

// Returns the reference point recorded in the dataset attributes, if any. The file level
// takes precedence over the first epoch
func RecordedPoint(ds *stack.Dataset) (Point, bool) {
	attrs := ds.Attrs
	if !attrs.Has(stack.KeyRefY) && len(ds.Epochs) > 0 {
		attrs = ds.Epochs[0].Attrs
	}
	row, okY := attrs.Int(stack.KeyRefY)
	col, okX := attrs.Int(stack.KeyRefX)
	if !okY || !okX {
		return Point{}, false
	}
	return Point{Row: row, Col: col}, true
}

// Subtracts the reference value of each epoch from every pixel of that epoch and records
// the reference in the attributes of the file level and every epoch. Returns a new dataset,
// the input is not modified. If the dataset already records the same reference point, the
// data is copied through unchanged and noop is true.
func Apply(ds *stack.Dataset, values map[string]float64, res Resolution) (out *stack.Dataset, noop bool, err error) {
	if len(values) != len(ds.Epochs) {
		return nil, false, fmt.Errorf("%d values for %d epochs: %w", len(values), len(ds.Epochs), ErrEpochCountMismatch)
	}
	for _, e := range ds.Epochs {
		if _, ok := values[e.Key]; !ok {
			return nil, false, fmt.Errorf("no value for epoch %s: %w", e.Key, ErrEpochCountMismatch)
		}
	}
	if !res.GlobalAverage {
		if recorded, ok := RecordedPoint(ds); ok && recorded == res.Point {
			return ds.Clone(), true, nil
		}
	}

	out = ds.Clone()
	for _, e := range out.Epochs {
		floats.AddConst(-values[e.Key], e.Data)
	}

	if res.GlobalAverage {
		out.DeleteAttrs(stack.KeyRefY, stack.KeyRefX, stack.KeyRefLat, stack.KeyRefLon)
		out.SetAttr(stack.KeyRefMethod, GlobalAverage.String())
		return out, false, nil
	}
	MarkPoint(out, res)
	return out, false, nil
}

// Applies an externally supplied list of reference values, ordered like the epochs
func ApplyValues(ds *stack.Dataset, list []float64, res Resolution) (*stack.Dataset, bool, error) {
	values, err := ValuesFromList(ds, list)
	if err != nil {
		return nil, false, err
	}
	return Apply(ds, values, res)
}

// Records the reference point in the attributes of the file level and every epoch,
// without changing data. Geocoded datasets also get the corner coordinates of the point
func MarkPoint(ds *stack.Dataset, res Resolution) {
	ds.SetAttr(stack.KeyRefY, strconv.Itoa(res.Point.Row))
	ds.SetAttr(stack.KeyRefX, strconv.Itoa(res.Point.Col))
	if g, ok := PixelToGeo(res.Point, ds.Attrs); ok {
		ds.SetAttr(stack.KeyRefLat, strconv.FormatFloat(g.Lat, 'g', -1, 64))
		ds.SetAttr(stack.KeyRefLon, strconv.FormatFloat(g.Lon, 'g', -1, 64))
	} else {
		ds.DeleteAttrs(stack.KeyRefLat, stack.KeyRefLon)
	}
	ds.SetAttr(stack.KeyRefMethod, res.Strategy.String())
}

// Records the reference point in the attributes only, for datasets already referenced
// by other means. Returns false if the same point was recorded already
func MarkOnly(ds *stack.Dataset, res Resolution) bool {
	if recorded, ok := RecordedPoint(ds); ok && recorded == res.Point {
		return false
	}
	MarkPoint(ds, res)
	return true
}

// Strips all reference attributes from the file level and every epoch in place, leaving
// data untouched. Returns false if the dataset carried no reference attributes
func Remove(ds *stack.Dataset) bool {
	return ds.DeleteAttrs(refPointKeys...)
}
