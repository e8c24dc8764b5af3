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

package fits

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// A FITS header and data unit (HDU) holding one 2D raster.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Header Header  // The header with all keys, values, comments, history entries etc.
	Bitpix int32   // Bits per pixel value from the header. Positive values are integral, negative floating.
	Bzero  float64 // Zero offset. True pixel value is Bzero + Bscale * Data[i].
	Bscale float64 // Value scaler. True pixel value is Bzero + Bscale * Data[i].
	Naxisn []int32 // Axis dimensions. Most quickly varying dimension first (i.e. X,Y)
	Pixels int32   // Number of pixels in the image. Product of Naxisn[]

	Data []float64 // The image data, scaled to true values. Undefined pixels are NaN
}

// Creates a FITS image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bscale: 1,
	}
}

// Creates a 2D FITS image of given width and height. Data is not copied, allocated if nil
func NewImageFromData(width, height int32, data []float64, bitpix int32) *Image {
	if data == nil {
		data = make([]float64, int(width)*int(height))
	}
	return &Image{
		Header: NewHeader(),
		Bitpix: bitpix,
		Bscale: 1,
		Naxisn: []int32{width, height},
		Pixels: width * height,
		Data:   data,
	}
}

// Width of the image, zero if it carries no data
func (f *Image) Width() int32 {
	if len(f.Naxisn) < 1 {
		return 0
	}
	return f.Naxisn[0]
}

// Height of the image, zero if it carries no data
func (f *Image) Height() int32 {
	if len(f.Naxisn) < 2 {
		if len(f.Naxisn) == 1 {
			return 1
		}
		return 0
	}
	return f.Naxisn[1]
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// FITS header data. Values are kept in typed maps; Keys records the order of first appearance
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int64
	Floats   map[string]float64
	Strings  map[string]string
	Dates    map[string]string
	Keys     []string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int64),
		Floats:   make(map[string]float64),
		Strings:  make(map[string]string),
		Dates:    make(map[string]string),
		Keys:     make([]string, 0),
		Comments: make([]string, 0),
		History:  make([]string, 0),
		End:      false,
	}
}

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80  // Line size of a FITS header

// Structural keys managed by the codec itself, never exposed as attributes
var structuralKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true, "NAXIS3": true,
	"EXTEND": true, "XTENSION": true, "PCOUNT": true, "GCOUNT": true, "BZERO": true, "BSCALE": true,
	"EXTNAME": true,
}

// Returns true if the key is one of the structural FITS keywords
func IsStructuralKey(key string) bool {
	return structuralKeys[key]
}

func (h *Header) noteKey(key string) {
	if h.Has(key) {
		return
	}
	h.Keys = append(h.Keys, key)
}

// Returns true if the header carries a value for the given key
func (h *Header) Has(key string) bool {
	if _, ok := h.Bools[key]; ok {
		return true
	}
	if _, ok := h.Ints[key]; ok {
		return true
	}
	if _, ok := h.Floats[key]; ok {
		return true
	}
	if _, ok := h.Strings[key]; ok {
		return true
	}
	_, ok := h.Dates[key]
	return ok
}

// Removes the given key from all value maps
func (h *Header) Delete(key string) {
	h.deleteValue(key)
	for i, k := range h.Keys {
		if k == key {
			h.Keys = append(h.Keys[:i], h.Keys[i+1:]...)
			break
		}
	}
}

func (h *Header) deleteValue(key string) {
	delete(h.Bools, key)
	delete(h.Ints, key)
	delete(h.Floats, key)
	delete(h.Strings, key)
	delete(h.Dates, key)
}

// Returns the value for the given key in its textual form, and whether it was present
func (h *Header) Text(key string) (string, bool) {
	if v, ok := h.Strings[key]; ok {
		return v, true
	}
	if v, ok := h.Ints[key]; ok {
		return strconv.FormatInt(v, 10), true
	}
	if v, ok := h.Floats[key]; ok {
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	if v, ok := h.Bools[key]; ok {
		if v {
			return "T", true
		}
		return "F", true
	}
	v, ok := h.Dates[key]
	return v, ok
}

// Stores a textual value, choosing the narrowest FITS type which represents it exactly
func (h *Header) SetText(key, value string) {
	if h.Has(key) {
		h.deleteValue(key)
	} else {
		h.Keys = append(h.Keys, key)
	}
	if value == "T" || value == "F" {
		h.Bools[key] = value == "T"
	} else if i, err := strconv.ParseInt(value, 10, 64); err == nil && strconv.FormatInt(i, 10) == value {
		h.Ints[key] = i
	} else if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && strconv.FormatFloat(f, 'g', -1, 64) == value {
		h.Floats[key] = f
	} else {
		h.Strings[key] = value
	}
}

// Returns all non-structural keys with their textual values
func (h *Header) Attributes() map[string]string {
	res := make(map[string]string, len(h.Keys))
	for _, k := range h.Keys {
		if IsStructuralKey(k) {
			continue
		}
		if v, ok := h.Text(k); ok {
			res[k] = v
		}
	}
	return res
}

// Replaces all non-structural keys with the given textual values. Existing keys keep
// their position, new keys are appended in sorted order
func (h *Header) SetAttributes(attrs map[string]string) {
	for _, k := range append([]string(nil), h.Keys...) {
		if _, ok := attrs[k]; !ok && !IsStructuralKey(k) {
			h.Delete(k)
		}
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if !IsStructuralKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.SetText(k, attrs[k])
	}
}
