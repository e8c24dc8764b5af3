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

package geo

import (
	"fmt"
	"io"
	"math"

	"github.com/mlnoga/insarseed/internal/seed"
	"github.com/mlnoga/insarseed/internal/stack"
)

// Epoch keys of a lookup table
const (
	KeyAzimuth = "azimuth"
	KeyRange   = "range"
)

// Maps geographic coordinates to sensor pixels with a lookup table. The table is a grouped
// dataset on a geocoded grid, holding the sensor row in its azimuth epoch and the sensor
// column in its range epoch
type LookupMapper struct {
	FileName string
	attrs    stack.Attributes
	width    int
	height   int
	azimuth  []float64
	rng      []float64
}

// Loads a lookup table from a FITS file
func NewLookupMapperFromFile(fileName string, id int, logWriter io.Writer) (*LookupMapper, error) {
	c, err := stack.OpenFITS(fileName, id, logWriter)
	if err != nil {
		return nil, err
	}
	ds, err := stack.Load(c, fileName)
	if err != nil {
		return nil, err
	}
	return NewLookupMapper(ds)
}

// Creates a lookup mapper from a loaded dataset
func NewLookupMapper(ds *stack.Dataset) (*LookupMapper, error) {
	if !ds.Attrs.IsGeocoded() {
		return nil, fmt.Errorf("lookup table %s is not on a geocoded grid", ds.FileName)
	}
	az, rg := ds.Epoch(KeyAzimuth), ds.Epoch(KeyRange)
	if az == nil || rg == nil {
		return nil, fmt.Errorf("lookup table %s needs %s and %s epochs, has %v", ds.FileName, KeyAzimuth, KeyRange, ds.Keys())
	}
	return &LookupMapper{
		FileName: ds.FileName,
		attrs:    ds.Attrs,
		width:    ds.Width,
		height:   ds.Height,
		azimuth:  az.Data,
		rng:      rg.Data,
	}, nil
}

// Returns the sensor pixel stored at the geographic position
func (m *LookupMapper) MapGeoToPixel(lat, lon float64) (seed.Point, error) {
	cell, err := seed.GeoToPixel(seed.GeoPoint{Lat: lat, Lon: lon}, m.attrs, nil)
	if err != nil {
		return seed.Point{}, err
	}
	if cell.Row < 0 || cell.Row >= m.height || cell.Col < 0 || cell.Col >= m.width {
		return seed.Point{}, fmt.Errorf("(%g, %g) outside lookup table %s", lat, lon, m.FileName)
	}
	i := cell.Row*m.width + cell.Col
	az, rg := m.azimuth[i], m.rng[i]
	if math.IsNaN(az) || math.IsNaN(rg) || az < 0 || rg < 0 {
		return seed.Point{}, fmt.Errorf("(%g, %g) has no sensor coordinates in %s", lat, lon, m.FileName)
	}
	return seed.Point{Row: int(math.Round(az)), Col: int(math.Round(rg))}, nil
}
