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
	"sort"
	"strconv"
	"strings"
)

// Attribute keys with a meaning for datasets
const (
	KeyWidth     = "WIDTH"
	KeyLength    = "FILE_LENGTH"
	KeyFileType  = "FILE_TYPE"
	KeyXFirst    = "X_FIRST"
	KeyYFirst    = "Y_FIRST"
	KeyXStep     = "X_STEP"
	KeyYStep     = "Y_STEP"
	KeyRefY      = "ref_y"
	KeyRefX      = "ref_x"
	KeyRefLat    = "ref_lat"
	KeyRefLon    = "ref_lon"
	KeyRefDate   = "ref_date"
	KeyRefMethod = "ref_method"
)

// Metadata of a dataset or epoch. Values are kept in textual form, numeric values
// are parsed on access
type Attributes map[string]string

// Returns a deep copy of the attributes
func (a Attributes) Clone() Attributes {
	res := make(Attributes, len(a))
	for k, v := range a {
		res[k] = v
	}
	return res
}

// Returns true if the key is present with a non-empty value
func (a Attributes) Has(key string) bool {
	v, ok := a[key]
	return ok && strings.TrimSpace(v) != ""
}

// Returns the value for the given key parsed as integer
func (a Attributes) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		// tolerate integral values written in float notation
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	}
	return i, true
}

// Returns the value for the given key parsed as float
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Sets an integer value
func (a Attributes) SetInt(key string, value int) {
	a[key] = strconv.Itoa(value)
}

// Sets a float value in the shortest form which reads back identically
func (a Attributes) SetFloat(key string, value float64) {
	a[key] = strconv.FormatFloat(value, 'g', -1, 64)
}

// Removes all given keys, returns true if any of them was present
func (a Attributes) Delete(keys ...string) bool {
	found := false
	for _, k := range keys {
		if _, ok := a[k]; ok {
			delete(a, k)
			found = true
		}
	}
	return found
}

// Returns the keys in sorted order
func (a Attributes) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Returns true if the attributes describe a geocoded grid with corner and step values
func (a Attributes) IsGeocoded() bool {
	for _, k := range []string{KeyXFirst, KeyYFirst, KeyXStep, KeyYStep} {
		if _, ok := a.Float(k); !ok {
			return false
		}
	}
	return true
}
