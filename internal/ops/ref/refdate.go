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
	"encoding/json"
	"fmt"

	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/seed"
	"github.com/mlnoga/insarseed/internal/stack"
)

// Suffix appended to the base name of a time series with changed reference date
const RefDateSuffix = "_refDate"

// Changes the reference date of a time series. Takes one file, produces one file
type OpRefDate struct {
	ops.OpBase
	RefDate string `json:"refDate"`
	Out     string `json:"out"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpRefDateDefault() }) } // register the operator for JSON decoding

func NewOpRefDateDefault() *OpRefDate { return NewOpRefDate("") }

func NewOpRefDate(date string) *OpRefDate {
	return &OpRefDate{
		OpBase:  ops.OpBase{Type: "refDate", Active: date != ""},
		RefDate: date,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpRefDate) UnmarshalJSON(data []byte) error {
	type defaults OpRefDate
	def := defaults(*NewOpRefDateDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpRefDate(def)
	if op.RefDate == "" {
		return fmt.Errorf("%s operator without reference date", op.Type)
	}
	_, err := seed.NormalizeDate(op.RefDate)
	return err
}

func (op *OpRefDate) IsInteractive() bool { return false }

func (op *OpRefDate) OutputName(name string, numFiles int) string {
	return ops.OutputName(name, "", RefDateSuffix, op.Out, numFiles)
}

func (op *OpRefDate) Apply(f ops.File, c *ops.Context) ops.Outcome {
	cont, err := stack.OpenFITS(f.FileName, f.ID, c.Log)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	ds, err := stack.Load(cont, f.FileName)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	out, noop, err := seed.ChangeRefDate(ds, op.RefDate)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	msg := fmt.Sprintf("reference date changed to %s", out.Attrs[stack.KeyRefDate])
	if noop {
		fmt.Fprintf(c.Log, "%d: Same reference date %s as input, copying data unchanged\n", f.ID, op.RefDate)
		msg = "same reference date, copied"
	}
	if err := stack.Save(out, stack.CreateFITS(f.OutputName, f.ID, out.FileType, out.Grouped)); err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	fmt.Fprintf(c.Log, "%d: Wrote %s\n", f.ID, f.OutputName)
	return ops.Outcome{File: f, Message: msg}
}
