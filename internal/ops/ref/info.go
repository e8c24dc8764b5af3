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

package ref

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/stack"
	"github.com/mlnoga/insarseed/internal/stats"
)

// Attributes describing the reference of a dataset, in display order
var infoKeys = []string{stack.KeyRefY, stack.KeyRefX, stack.KeyRefLat, stack.KeyRefLon, stack.KeyRefDate, stack.KeyRefMethod}

// Prints file type, dimensions, per-epoch statistics and reference attributes of a file.
// Optionally collects the per-epoch statistics of all files for export with WriteStats
type OpInfo struct {
	ops.OpBase
	StatsFile string `json:"statsFile"`

	mutex sync.Mutex
	rows  []statsRow
}

type statsRow struct {
	id       int
	fileName string
	epoch    string
	stats    *stats.Stats
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpInfo() }) } // register the operator for JSON decoding

func NewOpInfo() *OpInfo {
	return &OpInfo{OpBase: ops.OpBase{Type: "info", Active: true}}
}

func (op *OpInfo) IsInteractive() bool { return false }

func (op *OpInfo) OutputName(name string, numFiles int) string { return name }

func (op *OpInfo) Apply(f ops.File, c *ops.Context) ops.Outcome {
	cont, err := stack.OpenFITS(f.FileName, f.ID, c.Log)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	ds, err := stack.Load(cont, f.FileName)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}

	// assemble the report first, so lines of concurrent files do not interleave
	b := strings.Builder{}
	kind := "singular"
	if ds.Grouped {
		kind = "grouped"
	}
	fmt.Fprintf(&b, "%d: %s: %s %s, %dx%d, %d epochs\n", f.ID, f.FileName, kind, ds.FileType, ds.Width, ds.Height, len(ds.Epochs))
	rows := make([]statsRow, len(ds.Epochs))
	for i, e := range ds.Epochs {
		rows[i] = statsRow{f.ID, f.FileName, e.Key, stats.NewStats(e.Data)}
		fmt.Fprintf(&b, "%d:   %-17s %v\n", f.ID, e.Key, rows[i].stats)
	}
	if op.StatsFile != "" {
		op.mutex.Lock()
		op.rows = append(op.rows, rows...)
		op.mutex.Unlock()
	}
	for _, k := range infoKeys {
		if v, ok := ds.Attrs[k]; ok {
			fmt.Fprintf(&b, "%d:   %s=%s\n", f.ID, k, v)
		}
	}
	fmt.Fprint(c.Log, b.String())
	return ops.Outcome{File: f, Message: fmt.Sprintf("%d epochs", len(ds.Epochs))}
}

// Writes the collected statistics as CSV, ordered by file ID and epoch
func (op *OpInfo) WriteStats(c *ops.Context) error {
	if op.StatsFile == "" {
		return nil
	}
	op.mutex.Lock()
	defer op.mutex.Unlock()
	sort.SliceStable(op.rows, func(i, j int) bool { return op.rows[i].id < op.rows[j].id })

	fmt.Fprintf(c.Log, "Writing statistics for %d epochs to file %s ...\n", len(op.rows), op.StatsFile)
	file, err := os.Create(op.StatsFile)
	if err != nil {
		return fmt.Errorf("error creating file %s: %w", op.StatsFile, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Write([]string{"ID", "File", "Epoch", "Valid", "Count", "Min", "Mean", "Max", "StdDev", "Median"})
	g := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, r := range op.rows {
		s := r.stats
		w.Write([]string{strconv.Itoa(r.id), r.fileName, r.epoch, strconv.Itoa(s.Valid), strconv.Itoa(s.Count),
			g(s.Min), g(s.Mean), g(s.Max), g(s.StdDev), g(s.Median)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}
