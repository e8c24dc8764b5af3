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

package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/stack"
)

func TestInfoExportsStatsDespiteFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.fits")
	ds := &stack.Dataset{FileType: "velocity", Width: 2, Height: 2, Attrs: stack.Attributes{}}
	ds.Epochs = []*stack.Epoch{{Key: "velocity", Data: []float64{1, 2, 3, 4}, Width: 2, Height: 2, Attrs: stack.Attributes{}, Bitpix: -32}}
	if err := stack.Save(ds, stack.CreateFITS(good, 1, "velocity", false)); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.fits")
	if err := os.WriteFile(bad, []byte("not a fits file"), 0644); err != nil {
		t.Fatal(err)
	}
	statsFile := filepath.Join(dir, "stats.csv")

	err := cmdInfo(context.Background(), []string{good, bad}, statsFile, false, ops.NewContext(io.Discard))
	if err == nil {
		t.Errorf("expected an error for the unreadable file")
	}
	csv, err := os.ReadFile(statsFile)
	if err != nil {
		t.Fatalf("statistics not written: %s", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines; want header and one epoch:\n%s", len(lines), csv)
	}
	if !strings.Contains(lines[1], "good.fits") {
		t.Errorf("row does not name the readable file: %s", lines[1])
	}
}

func TestSummarize(t *testing.T) {
	outs := []ops.Outcome{{File: ops.File{ID: 1, FileName: "a.fits"}}, {File: ops.File{ID: 2, FileName: "b.fits"}, Err: os.ErrNotExist}}
	if err := summarize(io.Discard, outs); err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("got %v; want 1 of 2 files failed", err)
	}
	if err := summarize(io.Discard, outs[:1]); err != nil {
		t.Errorf("got %v; want nil", err)
	}
}
