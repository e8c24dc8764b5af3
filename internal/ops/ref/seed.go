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
	"sync"

	"github.com/mlnoga/insarseed/internal/geo"
	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/seed"
	"github.com/mlnoga/insarseed/internal/stack"
)

// Default prefix for the output of seeding, prepended to the input base name
const DefaultPrefix = "Seeded_"

// Spatial referencing of InSAR datasets to a reference pixel or the global spatial average.
// Takes one file, produces one referenced file, or updates the attributes of the input
// in place with MarkAttribute
type OpSeed struct {
	ops.OpBase `yaml:",inline"`

	Strategy       seed.Strategy `json:"strategy" yaml:"strategy"`
	MinCoherence   float64       `json:"minCoherence" yaml:"minCoherence"`
	MaskFile       string        `json:"maskFile" yaml:"maskFile"`
	CoherenceFile  string        `json:"coherenceFile" yaml:"coherenceFile"`
	RefY           *int          `json:"refY" yaml:"refY"`
	RefX           *int          `json:"refX" yaml:"refX"`
	RefLat         *float64      `json:"refLat" yaml:"refLat"`
	RefLon         *float64      `json:"refLon" yaml:"refLon"`
	LookupFile     string        `json:"lookupFile" yaml:"lookupFile"`
	ReferenceFile  string        `json:"referenceFile" yaml:"referenceFile"`
	MarkAttribute  bool          `json:"markAttribute" yaml:"markAttribute"`
	RandomFallback bool          `json:"randomFallback" yaml:"randomFallback"`
	Out            string        `json:"out" yaml:"out"`
	Prefix         string        `json:"prefix" yaml:"prefix"`

	shared *sharedInputs // inputs loaded once and shared read-only across files
}

// Inputs which are the same for every file of a batch
type sharedInputs struct {
	once   sync.Once
	point  *seed.Point
	geo    *seed.GeoPoint
	mapper seed.CoordinateMapper
	err    error
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpSeedDefault() }) } // register the operator for JSON decoding

func NewOpSeedDefault() *OpSeed { return NewOpSeed(seed.Random) }

func NewOpSeed(strategy seed.Strategy) *OpSeed {
	return &OpSeed{
		OpBase:         ops.OpBase{Type: "seed", Active: true},
		Strategy:       strategy,
		MinCoherence:   seed.DefaultMinQuality,
		RandomFallback: true,
		Prefix:         DefaultPrefix,
		shared:         &sharedInputs{},
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSeed) UnmarshalJSON(data []byte) error {
	type defaults OpSeed
	def := defaults(*NewOpSeedDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSeed(def)
	return op.Finalize()
}

// Checks the option values and fills in derived defaults
func (op *OpSeed) Finalize() error {
	if op.MinCoherence < 0 || op.MinCoherence > 1 {
		return fmt.Errorf("minimum coherence %g outside [0,1]", op.MinCoherence)
	}
	if (op.RefY == nil) != (op.RefX == nil) {
		return fmt.Errorf("reference pixel needs both refY and refX")
	}
	if (op.RefLat == nil) != (op.RefLon == nil) {
		return fmt.Errorf("reference coordinate needs both refLat and refLon")
	}
	if op.shared == nil {
		op.shared = &sharedInputs{}
	}
	return nil
}

func (op *OpSeed) IsInteractive() bool { return op.Strategy.IsInteractive() }

func (op *OpSeed) OutputName(name string, numFiles int) string {
	if op.MarkAttribute {
		return name
	}
	return ops.OutputName(name, op.Prefix, "", op.Out, numFiles)
}

// Loads the reference file and lookup table once per batch. Explicit coordinates take
// precedence over those recorded in the reference file
func (op *OpSeed) loadShared(c *ops.Context) (*sharedInputs, error) {
	if op.shared == nil {
		op.shared = &sharedInputs{}
	}
	s := op.shared
	s.once.Do(func() {
		if op.RefY != nil && op.RefX != nil {
			s.point = &seed.Point{Row: *op.RefY, Col: *op.RefX}
		}
		if op.RefLat != nil && op.RefLon != nil {
			s.geo = &seed.GeoPoint{Lat: *op.RefLat, Lon: *op.RefLon}
		}
		if op.ReferenceFile != "" && s.point == nil && s.geo == nil {
			s.point, s.geo, s.err = ReadReferenceFrom(op.ReferenceFile, c)
			if s.err != nil {
				return
			}
		}
		if op.LookupFile != "" {
			var m *geo.LookupMapper
			if m, s.err = geo.NewLookupMapperFromFile(op.LookupFile, 0, c.Log); s.err != nil {
				return
			}
			s.mapper = m
		}
	})
	return s, s.err
}

// Reads the reference point recorded in another file's attributes
func ReadReferenceFrom(fileName string, c *ops.Context) (*seed.Point, *seed.GeoPoint, error) {
	cont, err := stack.OpenFITS(fileName, 0, c.Log)
	if err != nil {
		return nil, nil, err
	}
	attrs := cont.Attributes()
	var point *seed.Point
	var gp *seed.GeoPoint
	row, okY := attrs.Int(stack.KeyRefY)
	col, okX := attrs.Int(stack.KeyRefX)
	if okY && okX {
		point = &seed.Point{Row: row, Col: col}
	}
	lat, okLat := attrs.Float(stack.KeyRefLat)
	lon, okLon := attrs.Float(stack.KeyRefLon)
	if okLat && okLon {
		gp = &seed.GeoPoint{Lat: lat, Lon: lon}
	}
	if point == nil && gp == nil {
		return nil, nil, fmt.Errorf("%s records no reference point: %w", fileName, seed.ErrNoReferencePoint)
	}
	fmt.Fprintf(c.Log, "Read reference point %v %v from %s\n", point, gp, fileName)
	return point, gp, nil
}

// Builds the seeding configuration for one dataset
func (op *OpSeed) config(ds *stack.Dataset, f ops.File, c *ops.Context) (*seed.Config, error) {
	shared, err := op.loadShared(c)
	if err != nil {
		return nil, err
	}
	cfg := &seed.Config{
		Strategy:       op.Strategy,
		MinQuality:     op.MinCoherence,
		Point:          shared.point,
		Geo:            shared.geo,
		Mapper:         shared.mapper,
		Picker:         c.Picker,
		RandomFallback: op.RandomFallback,
	}
	if op.MaskFile != "" {
		if cfg.Mask, err = stack.LoadMask(op.MaskFile, f.ID, ds.Width, ds.Height, c.Log); err != nil {
			return nil, err
		}
	}
	if op.CoherenceFile != "" {
		if cfg.Quality, err = stack.LoadQuality(op.CoherenceFile, f.ID, ds.Width, ds.Height, c.Log); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Seeds one file
func (op *OpSeed) Apply(f ops.File, c *ops.Context) ops.Outcome {
	cont, err := stack.OpenFITS(f.FileName, f.ID, c.Log)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	ds, err := stack.Load(cont, f.FileName)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	fmt.Fprintf(c.Log, "%d: Loaded %s %dx%d with %d epochs from %s\n", f.ID, ds.FileType, ds.Width, ds.Height, len(ds.Epochs), f.FileName)

	cfg, err := op.config(ds, f, c)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}

	if op.MarkAttribute {
		return op.mark(ds, cont, cfg, f, c)
	}

	res, err := seed.Seed(ds, cfg, f.ID, c.Log)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	out := stack.CreateFITS(f.OutputName, f.ID, ds.FileType, ds.Grouped)
	if err := stack.Save(res.Dataset, out); err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	fmt.Fprintf(c.Log, "%d: Wrote %s\n", f.ID, f.OutputName)
	return ops.Outcome{File: f, Message: describe(res.Resolution, res.NoOp)}
}

// Records the resolved point in the attributes of the input file, leaving data untouched
func (op *OpSeed) mark(ds *stack.Dataset, cont *stack.FITSContainer, cfg *seed.Config, f ops.File, c *ops.Context) ops.Outcome {
	res, _, err := seed.ResolveReference(ds, cfg, f.ID, c.Log)
	if err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	if res.GlobalAverage {
		return ops.Outcome{File: f, Err: fmt.Errorf("%s strategy has no point to mark", res.Strategy)}
	}
	if !seed.MarkOnly(ds, res) {
		fmt.Fprintf(c.Log, "%d: Same reference pixel already saved in %s\n", f.ID, f.FileName)
		return ops.Outcome{File: f, Message: describe(res, true)}
	}
	if err := stack.Save(ds, cont); err != nil {
		return ops.Outcome{File: f, Err: err}
	}
	fmt.Fprintf(c.Log, "%d: Marked reference pixel %v in %s\n", f.ID, res.Point, f.FileName)
	return ops.Outcome{File: f, Message: "marked " + describe(res, false)}
}

func describe(res seed.Resolution, noop bool) string {
	s := fmt.Sprintf("reference pixel %v via %s", res.Point, res.Strategy)
	if res.GlobalAverage {
		s = "global spatial average"
	}
	if noop {
		s += ", unchanged"
	}
	return s
}
