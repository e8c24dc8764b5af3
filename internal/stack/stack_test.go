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
	"bytes"
	"math"
	"path/filepath"
	"testing"
)

func newEpoch(key string, width, height int, data []float64) *Epoch {
	return &Epoch{Key: key, Data: data, Width: width, Height: height, Attrs: Attributes{}, Bitpix: -32}
}

func TestGroupedFITSRoundTrip(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "timeseries.fits")
	c := CreateFITS(fileName, 0, "timeseries", true)
	ds := &Dataset{FileType: "timeseries", Grouped: true, Width: 2, Height: 2,
		Attrs: Attributes{"X_FIRST": "120.5", "PLATFORM": "Sen"}}
	ds.Epochs = []*Epoch{
		newEpoch("20200101", 2, 2, []float64{0, 0, 0, 0}),
		newEpoch("20200113", 2, 2, []float64{1, math.NaN(), 3, 4}),
	}
	ds.Epochs[1].Attrs["ref_y"] = "1"
	if err := Save(ds, c); err != nil {
		t.Fatalf("save: %s", err)
	}

	r, err := OpenFITS(fileName, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	if !r.IsGrouped() || r.FileType() != "timeseries" {
		t.Errorf("got grouped=%v type=%q", r.IsGrouped(), r.FileType())
	}
	loaded, err := Load(r, fileName)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if keys := loaded.Keys(); len(keys) != 2 || keys[0] != "20200101" || keys[1] != "20200113" {
		t.Errorf("keys got %v", keys)
	}
	if loaded.Attrs["PLATFORM"] != "Sen" || loaded.Attrs["X_FIRST"] != "120.5" {
		t.Errorf("file attributes got %v", loaded.Attrs)
	}
	if v, _ := loaded.Attrs.Int(KeyWidth); v != 2 {
		t.Errorf("WIDTH got %d", v)
	}
	e := loaded.Epoch("20200113")
	if e.Attrs["ref_y"] != "1" {
		t.Errorf("epoch attributes got %v", e.Attrs)
	}
	if e.At(1, 1) != 4 || !math.IsNaN(e.At(0, 1)) {
		t.Errorf("epoch data got %v", e.Data)
	}
}

func TestSingularInPlaceUpdate(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "velocity.fits")
	ds := &Dataset{FileType: "velocity", Width: 3, Height: 1, Attrs: Attributes{"ref_x": "2"}}
	ds.Epochs = []*Epoch{newEpoch("velocity", 3, 1, []float64{1, 2, 3})}
	ds.Epochs[0].Attrs["ref_x"] = "2"
	if err := Save(ds, CreateFITS(fileName, 0, "velocity", false)); err != nil {
		t.Fatalf("save: %s", err)
	}

	c, err := OpenFITS(fileName, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	loaded, err := Load(c, fileName)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if loaded.Grouped || len(loaded.Epochs) != 1 || loaded.Epochs[0].Key != "velocity" {
		t.Fatalf("got grouped=%v keys=%v", loaded.Grouped, loaded.Keys())
	}
	if !loaded.DeleteAttrs(KeyRefX) {
		t.Errorf("ref_x should have been present")
	}
	if err := Save(loaded, c); err != nil {
		t.Fatalf("save in place: %s", err)
	}

	c2, err := OpenFITS(fileName, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("reopen: %s", err)
	}
	if _, ok := c2.Attributes()[KeyRefX]; ok {
		t.Errorf("ref_x still present after removal")
	}
	e, _ := c2.ReadEpoch("velocity")
	for i, w := range []float64{1, 2, 3} {
		if e.Data[i] != w {
			t.Errorf("pixel %d got %g want %g", i, e.Data[i], w)
		}
	}
}

func TestLoadMaskAndQuality(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "mask.fits")
	ds := &Dataset{FileType: "mask", Width: 2, Height: 2, Attrs: Attributes{}}
	ds.Epochs = []*Epoch{newEpoch("mask", 2, 2, []float64{1, 0, math.NaN(), 0.5})}
	if err := Save(ds, CreateFITS(fileName, 0, "mask", false)); err != nil {
		t.Fatalf("save: %s", err)
	}

	mask, err := LoadMask(fileName, 0, 2, 2, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("mask: %s", err)
	}
	want := []bool{true, false, false, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] got %v want %v", i, mask[i], want[i])
		}
	}
	if _, err := LoadQuality(fileName, 0, 3, 2, &bytes.Buffer{}); err == nil {
		t.Errorf("expected size mismatch error")
	}
}

func TestAttributes(t *testing.T) {
	a := Attributes{"WIDTH": "10", "X_STEP": "0.001", "LEN": "5.0", "BAD": "x"}
	if v, ok := a.Int("WIDTH"); !ok || v != 10 {
		t.Errorf("Int(WIDTH)=%d,%v", v, ok)
	}
	if v, ok := a.Int("LEN"); !ok || v != 5 {
		t.Errorf("Int(LEN)=%d,%v", v, ok)
	}
	if _, ok := a.Int("BAD"); ok {
		t.Errorf("Int(BAD) should fail")
	}
	if v, ok := a.Float("X_STEP"); !ok || v != 0.001 {
		t.Errorf("Float(X_STEP)=%g,%v", v, ok)
	}
	if a.IsGeocoded() {
		t.Errorf("should not be geocoded")
	}
	a.SetFloat(KeyXFirst, 1.5)
	a.SetFloat(KeyYFirst, 2.5)
	a.SetFloat(KeyYStep, -0.001)
	if !a.IsGeocoded() {
		t.Errorf("should be geocoded")
	}
}
