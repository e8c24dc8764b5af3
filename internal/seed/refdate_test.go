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
	"errors"
	"testing"

	"github.com/mlnoga/insarseed/internal/stack"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, out string
		ok      bool
	}{
		{"20200113", "20200113", true},
		{"200113", "20200113", true},
		{"980113", "19980113", true},
		{"2020-01-13", "", false},
		{"2020011", "", false},
	}
	for _, test := range tests {
		got, err := NormalizeDate(test.in)
		if (err == nil) != test.ok || got != test.out {
			t.Errorf("NormalizeDate(%q)=%q,%v want %q", test.in, got, err, test.out)
		}
	}
}

func TestChangeRefDate(t *testing.T) {
	ds := newDataset(2, 1, true, []string{"20200101", "20200113", "20200125"},
		[]float64{0, 0}, []float64{1, 2}, []float64{4, 8})
	ds.Attrs["P_BASELINE_TIMESERIES"] = "0 10.5 -3"
	ds.Epochs[1].Attrs["P_BASELINE_TIMESERIES"] = "0 10.5 -3"

	out, noop, err := ChangeRefDate(ds, "200113")
	if err != nil || noop {
		t.Fatalf("got noop=%v err=%v", noop, err)
	}
	want := [][]float64{{-1, -2}, {0, 0}, {3, 6}}
	for i, e := range out.Epochs {
		for j := range want[i] {
			if e.Data[j] != want[i][j] {
				t.Errorf("epoch %s pixel %d got %g want %g", e.Key, j, e.Data[j], want[i][j])
			}
		}
		if e.Attrs[stack.KeyRefDate] != "20200113" {
			t.Errorf("epoch %s ref_date got %q", e.Key, e.Attrs[stack.KeyRefDate])
		}
	}
	if got := out.Attrs["P_BASELINE_TIMESERIES"]; got != "-10.5 0 -13.5" {
		t.Errorf("baselines got %q", got)
	}
	if got := out.Epochs[1].Attrs["P_BASELINE_TIMESERIES"]; got != "-10.5 0 -13.5" {
		t.Errorf("epoch baselines got %q", got)
	}

	again, noop, err := ChangeRefDate(out, "20200113")
	if err != nil || !noop || again.Epochs[2].Data[1] != 6 {
		t.Errorf("same date: noop=%v err=%v", noop, err)
	}
	if _, _, err := ChangeRefDate(ds, "20200201"); !errors.Is(err, ErrDateNotFound) {
		t.Errorf("got %v want ErrDateNotFound", err)
	}
	if _, noop, err := ChangeRefDate(ds, "20200101"); err != nil || !noop {
		t.Errorf("first date without ref_date: noop=%v err=%v", noop, err)
	}

	ds.FileType = "velocity"
	if _, _, err := ChangeRefDate(ds, "20200113"); !errors.Is(err, ErrNotTimeseries) {
		t.Errorf("got %v want ErrNotTimeseries", err)
	}
}
