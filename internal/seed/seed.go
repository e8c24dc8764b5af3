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
	"fmt"
	"io"

	"github.com/mlnoga/insarseed/internal/stack"
)

// Result of seeding one dataset
type Result struct {
	Dataset    *stack.Dataset     // Referenced dataset
	Resolution Resolution         // How the reference was chosen
	Values     map[string]float64 // Subtracted value per epoch key
	NoOp       bool               // True if the dataset already carried the same reference point
}

// Computes the validity of the dataset and resolves its reference from the configured candidates
func ResolveReference(ds *stack.Dataset, cfg *Config, id int, logWriter io.Writer) (Resolution, *Validity, error) {
	validity, err := ComputeValidity(ds, cfg.Mask)
	if err != nil {
		return Resolution{}, nil, err
	}
	fmt.Fprintf(logWriter, "%d: %d of %d pixels valid in all %d epochs\n", id, validity.Count, len(validity.Usable), len(ds.Epochs))

	cands := BuildCandidates(cfg, id, logWriter)
	res, err := NewResolver(id, ds, validity, cfg, logWriter).Resolve(cands)
	if err != nil {
		return Resolution{}, validity, err
	}
	return res, validity, nil
}

// Seeds one dataset: validity, reference resolution, per-epoch reference values and the
// referencing transform
func Seed(ds *stack.Dataset, cfg *Config, id int, logWriter io.Writer) (*Result, error) {
	res, validity, err := ResolveReference(ds, cfg, id, logWriter)
	if err != nil {
		return nil, err
	}
	if res.GlobalAverage {
		fmt.Fprintf(logWriter, "%d: Referencing to global spatial average of valid pixels\n", id)
	} else {
		fmt.Fprintf(logWriter, "%d: Referencing to pixel %v via %s\n", id, res.Point, res.Strategy)
	}

	values, err := ComputeValues(ds, res, validity)
	if err != nil {
		return nil, err
	}
	out, noop, err := Apply(ds, values, res)
	if err != nil {
		return nil, err
	}
	if noop {
		fmt.Fprintf(logWriter, "%d: Same reference point already recorded, copying data unchanged\n", id)
	}
	return &Result{Dataset: out, Resolution: res, Values: values, NoOp: noop}, nil
}
