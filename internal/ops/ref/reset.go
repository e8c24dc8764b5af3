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
	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/seed"
	"github.com/mlnoga/insarseed/internal/stack"
)

// Removes the spatial reference attributes from a file in place, leaving data untouched
type OpReset struct {
	ops.OpBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpReset() }) } // register the operator for JSON decoding

func NewOpReset() *OpReset {
	return &OpReset{OpBase: ops.OpBase{Type: "reset", Active: true}}
}

func (op *OpReset) IsInteractive() bool { return false }

func (op *OpReset) OutputName(name string, numFiles int) string { return name }

func (op *OpReset) Apply(f ops.File, c *ops.Context) ops.Outcome {
	cont, err := stack.OpenFITS(f.FileName, f.ID, c.Log)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	ds, err := stack.Load(cont, f.FileName)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	if !seed.Remove(ds) {
		return ops.Outcome{File: f, Message: "no reference attributes, unchanged"}
	}
	if err := stack.Save(ds, cont); err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	return ops.Outcome{File: f, Message: "reference attributes removed"}
}
