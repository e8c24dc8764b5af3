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

package stack

import (
	"fmt"
	"math"
	"sort"
)

// One 2D measurement array with its attributes. Data is row-major, Height rows of Width values
type Epoch struct {
	Key    string     // Date, date pair or, for singular containers, the file type
	Data   []float64  // Pixel values, undefined pixels are NaN
	Width  int        // Number of columns
	Height int        // Number of rows
	Attrs  Attributes // Per-epoch attributes
	Bitpix int32      // Storage precision as read, for writing back
}

// Returns the value at the given row and column
func (e *Epoch) At(row, col int) float64 {
	return e.Data[row*e.Width+col]
}

// Returns a deep copy of the epoch
func (e *Epoch) Clone() *Epoch {
	return &Epoch{
		Key:    e.Key,
		Data:   append([]float64(nil), e.Data...),
		Width:  e.Width,
		Height: e.Height,
		Attrs:  e.Attrs.Clone(),
		Bitpix: e.Bitpix,
	}
}

// A collection of epochs sharing one grid, read from and written to a Container
type Dataset struct {
	FileName string     // Name of the file the dataset was read from, for log output
	FileType string     // Type tag of the container, e.g. timeseries or ifgramStack
	Grouped  bool       // True for grouped containers with keyed epochs, false for a single implicit epoch
	Width    int        // Number of columns
	Height   int        // Number of rows
	Attrs    Attributes // File-level attributes
	Epochs   []*Epoch   // Epochs in container order
}

// Returns the epoch keys in container order
func (ds *Dataset) Keys() []string {
	keys := make([]string, len(ds.Epochs))
	for i, e := range ds.Epochs {
		keys[i] = e.Key
	}
	return keys
}

// Returns the epoch with the given key, or nil
func (ds *Dataset) Epoch(key string) *Epoch {
	for _, e := range ds.Epochs {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// Returns true if the pixel coordinates are inside the grid
func (ds *Dataset) InBounds(row, col int) bool {
	return row >= 0 && row < ds.Height && col >= 0 && col < ds.Width
}

// Returns a deep copy of the dataset
func (ds *Dataset) Clone() *Dataset {
	res := *ds
	res.Attrs = ds.Attrs.Clone()
	res.Epochs = make([]*Epoch, len(ds.Epochs))
	for i, e := range ds.Epochs {
		res.Epochs[i] = e.Clone()
	}
	return &res
}

// Sets attribute key to value on the file level and on every epoch
func (ds *Dataset) SetAttr(key, value string) {
	ds.Attrs[key] = value
	for _, e := range ds.Epochs {
		e.Attrs[key] = value
	}
}

// Removes the given attribute keys on the file level and on every epoch.
// Returns true if any key was present anywhere
func (ds *Dataset) DeleteAttrs(keys ...string) bool {
	found := ds.Attrs.Delete(keys...)
	for _, e := range ds.Epochs {
		if e.Attrs.Delete(keys...) {
			found = true
		}
	}
	return found
}

// Returns the per-pixel mean over all epochs, ignoring undefined values.
// Pixels undefined in every epoch are NaN
func (ds *Dataset) MeanImage() []float64 {
	sum := make([]float64, ds.Width*ds.Height)
	count := make([]int, len(sum))
	for _, e := range ds.Epochs {
		for i, v := range e.Data {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				sum[i] += v
				count[i]++
			}
		}
	}
	for i := range sum {
		if count[i] == 0 {
			sum[i] = math.NaN()
		} else {
			sum[i] /= float64(count[i])
		}
	}
	return sum
}

// Reads a complete dataset from the given container. All epochs must share one grid.
func Load(c Container, fileName string) (*Dataset, error) {
	ds := &Dataset{
		FileName: fileName,
		FileType: c.FileType(),
		Grouped:  c.IsGrouped(),
		Attrs:    c.Attributes().Clone(),
	}
	keys := c.EpochKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no epochs", fileName)
	}
	for i, key := range keys {
		e, err := c.ReadEpoch(key)
		if err != nil {
			return nil, err
		}
		if len(e.Data) != e.Width*e.Height {
			return nil, fmt.Errorf("%s: epoch %s has %d values for %dx%d grid", fileName, key, len(e.Data), e.Width, e.Height)
		}
		if i == 0 {
			ds.Width, ds.Height = e.Width, e.Height
		} else if e.Width != ds.Width || e.Height != ds.Height {
			return nil, fmt.Errorf("%s: epoch %s has grid %dx%d, expected %dx%d", fileName, key, e.Width, e.Height, ds.Width, ds.Height)
		}
		e.Attrs.SetInt(KeyWidth, e.Width)
		e.Attrs.SetInt(KeyLength, e.Height)
		ds.Epochs = append(ds.Epochs, e)
	}
	ds.Attrs.SetInt(KeyWidth, ds.Width)
	ds.Attrs.SetInt(KeyLength, ds.Height)
	if ds.FileType != "" {
		ds.Attrs[KeyFileType] = ds.FileType
	}
	return ds, nil
}

// Writes all epochs and the file-level attributes of a dataset into the given container,
// then closes it
func Save(ds *Dataset, c Container) error {
	if err := c.WriteAttributes(ds.Attrs); err != nil {
		c.Close()
		return err
	}
	for _, e := range ds.Epochs {
		if err := c.WriteEpoch(e); err != nil {
			c.Close()
			return err
		}
	}
	return c.Close()
}

// Returns dates from pair or date keys in sorted order, without duplicates
func Dates(keys []string) []string {
	seen := map[string]bool{}
	for _, k := range keys {
		for _, d := range splitPair(k) {
			seen[d] = true
		}
	}
	res := make([]string, 0, len(seen))
	for d := range seen {
		res = append(res, d)
	}
	sort.Strings(res)
	return res
}

func splitPair(key string) []string {
	for i := 0; i < len(key); i++ {
		if key[i] == '_' || key[i] == '-' {
			return []string{key[:i], key[i+1:]}
		}
	}
	return []string{key}
}
