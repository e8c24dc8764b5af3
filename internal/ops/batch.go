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

package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Applies a per-file operator to all files matching a set of patterns.
// Files are processed independently, a failure on one file does not abort the others
type OpBatch struct {
	OpBase
	Files        *OpLoadMany     `json:"files"`
	Operation    Operator        `json:"-"`         // the actual per-file operation
	OperationRaw json.RawMessage `json:"operation"` // helper for unmarshaling
	Parallel     bool            `json:"parallel"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpBatchDefault() }) } // register the operator for JSON decoding

func NewOpBatchDefault() *OpBatch { return NewOpBatch(NewOpLoadManyDefault(), nil, false) }

func NewOpBatch(files *OpLoadMany, operation Operator, parallel bool) *OpBatch {
	return &OpBatch{
		OpBase:    OpBase{Type: "batch", Active: operation != nil},
		Files:     files,
		Operation: operation,
		Parallel:  parallel,
	}
}

// Unmarshals a batch with a polymorphic operation from JSON,
// using the temporary op.OperationRaw
func (op *OpBatch) UnmarshalJSON(b []byte) error {
	type alias OpBatch
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	if len(op.OperationRaw) == 0 {
		return nil
	}
	var base OpBase
	if err := json.Unmarshal(op.OperationRaw, &base); err != nil {
		return err
	}
	factory := GetOperatorFactory(base.Type)
	if factory == nil {
		return fmt.Errorf("unknown operator type '%s' in raw JSON message '%s'", base.Type, string(op.OperationRaw))
	}
	inner := factory()
	if err := json.Unmarshal(op.OperationRaw, inner); err != nil {
		return err
	}
	op.Operation = inner
	op.OperationRaw = nil
	return nil
}

// Marshals a batch with its polymorphic operation to JSON.
// Uses the actual op.Operation with label "operation", and ignores op.OperationRaw
func (op *OpBatch) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteString("{\"type\":")
	inner, err := json.Marshal(op.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	fmt.Fprintf(&buf, ", \"active\":%v, \"parallel\":%v, \"files\":", op.Active, op.Parallel)
	if inner, err = json.Marshal(op.Files); err != nil {
		return nil, err
	}
	buf.Write(inner)
	buf.WriteString(", \"operation\":")
	if inner, err = json.Marshal(op.Operation); err != nil {
		return nil, err
	}
	buf.Write(inner)
	buf.WriteRune('}')
	return buf.Bytes(), nil
}

func (op *OpBatch) IsInteractive() bool {
	return op.Operation != nil && op.Operation.IsInteractive()
}

func (op *OpBatch) OutputName(name string, numFiles int) string {
	if op.Operation == nil {
		return name
	}
	return op.Operation.OutputName(name, numFiles)
}

// A batch is not applied per file
func (op *OpBatch) Apply(f File, c *Context) Outcome {
	return Outcome{File: f, Err: fmt.Errorf("%s operator cannot be applied to a single file", op.Type)}
}

// Expands the file patterns and applies the operation to every file. Returns the outcomes
// in input order, and an error only if the batch could not be started at all
func (op *OpBatch) Run(ctx context.Context, c *Context) ([]Outcome, error) {
	if op.Operation == nil {
		return nil, fmt.Errorf("%s operator without operation", op.Type)
	}
	if op.Files == nil {
		return nil, fmt.Errorf("%s operator without files", op.Type)
	}
	files, err := op.Files.Files(c)
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].OutputName = op.Operation.OutputName(files[i].FileName, len(files))
	}

	workers := 1
	if op.Parallel && !op.Operation.IsInteractive() {
		workers = c.Workers(files)
	} else if op.Parallel {
		fmt.Fprintf(c.Log, "Interactive %s operation, processing files sequentially\n", op.Operation.GetType())
	}
	fmt.Fprintf(c.Log, "Processing %d files with %d workers on %s\n", len(files), workers, c.CPU)

	outs := Dispatch(ctx, files, workers, func(f File) Outcome {
		return op.Operation.Apply(f, c)
	}, func(o Outcome) {
		if o.Err != nil {
			fmt.Fprintf(c.Log, "%d: Error processing %s: %s\n", o.ID, o.FileName, o.Err)
		} else {
			fmt.Fprintf(c.Log, "%d: %s: %s\n", o.ID, o.FileName, o.Message)
		}
	})

	failed := 0
	for _, o := range outs {
		if o.Failed() {
			failed++
		}
	}
	fmt.Fprintf(c.Log, "Done, %d of %d files succeeded.\n", len(outs)-failed, len(outs))
	return outs, nil
}

// Number of concurrent workers for the given files. Bounded by the thread count,
// the number of files and the memory budget for the largest file
func (c *Context) Workers(files []File) int {
	workers := c.MaxThreads
	if workers > len(files) {
		workers = len(files)
	}
	largestMB := int64(1)
	for _, f := range files {
		if st, err := os.Stat(f.FileName); err == nil {
			// float64 pixels plus a working copy, from at most 32 bits per pixel on disk
			if mb := st.Size()*4/1024/1024 + 1; mb > largestMB {
				largestMB = mb
			}
		}
	}
	if c.WorkMemoryMB > 0 {
		if byMemory := int(int64(c.WorkMemoryMB) / largestMB); byMemory < workers {
			workers = byMemory
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Applies fn to all files with at most the given number of concurrent workers.
// The report callback is invoked in completion order, from a single goroutine.
// Once the context is cancelled no new files are started, and the files not
// started carry the context error. Returns outcomes in input order
func Dispatch(ctx context.Context, files []File, workers int, fn func(File) Outcome, report func(Outcome)) []Outcome {
	outs := make([]Outcome, len(files))
	if len(files) == 0 {
		return outs
	}
	if workers < 1 {
		workers = 1
	}

	type indexed struct {
		i int
		o Outcome
	}
	limiter := make(chan bool, workers)
	done := make(chan indexed, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			done <- indexed{i, Outcome{File: f, Err: err}}
			continue
		}
		limiter <- true
		go func(i int, f File) {
			defer func() { <-limiter }()
			done <- indexed{i, fn(f)}
		}(i, f)
	}

	for range files {
		r := <-done
		outs[r.i] = r.o
		if report != nil {
			report(r.o)
		}
	}
	return outs
}
