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
	"strconv"

	"github.com/mlnoga/insarseed/internal/stack"
)

// A pixel position, row first
type Point struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.Row, p.Col)
}

// A geographic position in degrees
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("(%s, %s)", strconv.FormatFloat(g.Lat, 'f', -1, 64), strconv.FormatFloat(g.Lon, 'f', -1, 64))
}

// Maps geographic coordinates to pixels of a dataset in sensor geometry,
// typically through an auxiliary lookup table
type CoordinateMapper interface {
	MapGeoToPixel(lat, lon float64) (Point, error)
}

// Converts geographic coordinates to a pixel. Geocoded grids use the affine corner and step
// attributes; other grids need the mapper. All failures wrap ErrCoordinateMapping
func GeoToPixel(g GeoPoint, attrs stack.Attributes, mapper CoordinateMapper) (Point, error) {
	if attrs.IsGeocoded() {
		xFirst, _ := attrs.Float(stack.KeyXFirst)
		yFirst, _ := attrs.Float(stack.KeyYFirst)
		xStep, _ := attrs.Float(stack.KeyXStep)
		yStep, _ := attrs.Float(stack.KeyYStep)
		if xStep == 0 || yStep == 0 {
			return Point{}, fmt.Errorf("zero grid step: %w", ErrCoordinateMapping)
		}
		return Point{
			Row: int(math.Round((g.Lat - yFirst) / yStep)),
			Col: int(math.Round((g.Lon - xFirst) / xStep)),
		}, nil
	}
	if mapper == nil {
		return Point{}, fmt.Errorf("grid is not geocoded and no lookup table given: %w", ErrCoordinateMapping)
	}
	p, err := mapper.MapGeoToPixel(g.Lat, g.Lon)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %w", ErrCoordinateMapping, err)
	}
	return p, nil
}

// Converts a pixel to geographic coordinates of its grid corner. Returns false if the
// grid is not geocoded
func PixelToGeo(p Point, attrs stack.Attributes) (GeoPoint, bool) {
	if !attrs.IsGeocoded() {
		return GeoPoint{}, false
	}
	xFirst, _ := attrs.Float(stack.KeyXFirst)
	yFirst, _ := attrs.Float(stack.KeyYFirst)
	xStep, _ := attrs.Float(stack.KeyXStep)
	yStep, _ := attrs.Float(stack.KeyYStep)
	return GeoPoint{
		Lat: yFirst + float64(p.Row)*yStep,
		Lon: xFirst + float64(p.Col)*xStep,
	}, true
}
