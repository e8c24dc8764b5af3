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
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/insarseed/internal/seed"
	"github.com/pbnjay/memory"
)

// An execution context for operators
type Context struct {
	Log           io.Writer         // Log output, safe for concurrent use
	MemoryMB      int               // memory.TotalMemory()/1024/1024
	WorkMemoryMB  int               // MemoryMB*7/10, budget for concurrently loaded datasets
	MaxThreads    int               // runtime.GOMAXPROCS(0), upper bound for concurrent workers
	CPU           string            // CPU brand and core count, for log output
	RestrictPaths bool              // Only accept relative paths inside the current directory tree
	Picker        seed.ManualPicker // Interactive picker, nil if not available
}

func NewContext(log io.Writer) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	return &Context{
		Log:          NewSyncWriter(log),
		MemoryMB:     memoryMB,
		WorkMemoryMB: memoryMB * 7 / 10,
		MaxThreads:   runtime.GOMAXPROCS(0),
		CPU:          fmt.Sprintf("%s with %d physical and %d logical cores", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores),
	}
}

// A writer which serializes writes, so log lines of concurrent workers do not interleave
type SyncWriter struct {
	mutex sync.Mutex
	w     io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	if sw, ok := w.(*SyncWriter); ok {
		return sw
	}
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.w.Write(p)
}

// An input file of a batch, with the name its output is written to
type File struct {
	ID         int    // Sequential ID number, for log output
	FileName   string // Input file
	OutputName string // Output file, may equal FileName for in-place operations
}

// Result of processing one file
type Outcome struct {
	File
	Message string // Short summary of what was done
	Err     error  // Non-nil if processing the file failed
}

func (o Outcome) Failed() bool { return o.Err != nil }

// A per-file processing operator
type Operator interface {
	GetType() string
	IsActive() bool
	IsInteractive() bool                              // True if the operator needs the shared interactive picker
	OutputName(inputName string, numFiles int) string // Name of the output for the given input
	Apply(f File, c *Context) Outcome
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool  { return op.Active }

// Factory method for operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories = map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	op := f()
	t := op.GetType()
	if GetOperatorFactory(t) != nil {
		panic(fmt.Sprintf("error: re-registering operator key %s\n", t))
	}
	operatorFactories[t] = f
}

// Joins the errors of all failed outcomes, nil if none failed
func JoinErrors(outs []Outcome) error {
	var errs []error
	for _, o := range outs {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
