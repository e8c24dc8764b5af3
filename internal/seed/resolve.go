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
	"fmt"
	"io"
	"math"

	"github.com/mlnoga/insarseed/internal/stack"
	"github.com/valyala/fastrand"
)

// Interactive selection of a reference pixel. Pick blocks until the operator chose a pixel
// or cancelled, in which case it returns ErrManualPickCancelled
type ManualPicker interface {
	Pick(display []float64, width, height int) (Point, error)
}

// Outcome of trying one candidate strategy
type AttemptStatus int

const (
	Accepted    AttemptStatus = iota // Candidate yielded a usable point
	FallThrough                      // Candidate failed, try the next one
	Fatal                            // Candidate failed, stop resolving
)

// Tagged result of one candidate strategy
type Attempt struct {
	Status AttemptStatus
	Point  Point
	Err    error // reason for FallThrough or Fatal
}

// Result of reference point resolution
type Resolution struct {
	Strategy      Strategy // Strategy which succeeded
	Point         Point    // The reference point, unless GlobalAverage
	GlobalAverage bool     // True if per-epoch spatial means are used instead of a point
}

// Resolves the reference point of one dataset from an ordered list of candidates
type Resolver struct {
	ID         int
	Dataset    *stack.Dataset
	Validity   *Validity
	Quality    []float64
	MinQuality float64
	Mapper     CoordinateMapper
	Picker     ManualPicker
	Log        io.Writer
	rng        fastrand.RNG
}

// Creates a resolver for the given dataset and validity
func NewResolver(id int, ds *stack.Dataset, validity *Validity, cfg *Config, logWriter io.Writer) *Resolver {
	return &Resolver{
		ID:         id,
		Dataset:    ds,
		Validity:   validity,
		Quality:    cfg.Quality,
		MinQuality: cfg.MinQuality,
		Mapper:     cfg.Mapper,
		Picker:     cfg.Picker,
		Log:        logWriter,
	}
}

// Tries the candidates in order and returns the first accepted one. Fall-through
// reasons are logged as warnings. Returns ErrNoReferencePoint if all candidates fail
func (r *Resolver) Resolve(candidates []Candidate) (Resolution, error) {
	for _, c := range candidates {
		if c.Strategy == GlobalAverage {
			if r.Validity.Count == 0 {
				return Resolution{}, ErrEmptyValidity
			}
			return Resolution{Strategy: GlobalAverage, GlobalAverage: true}, nil
		}

		a := r.attempt(c)
		switch a.Status {
		case Accepted:
			return Resolution{Strategy: c.Strategy, Point: a.Point}, nil
		case Fatal:
			return Resolution{}, fmt.Errorf("%s: %w", c.Strategy, a.Err)
		default:
			fmt.Fprintf(r.Log, "%d: Warning: %s: %s, trying next strategy\n", r.ID, c.Strategy, a.Err.Error())
		}
	}
	return Resolution{}, fmt.Errorf("tried %d candidates: %w", len(candidates), ErrNoReferencePoint)
}

func (r *Resolver) attempt(c Candidate) Attempt {
	switch c.Strategy {
	case InputCoord:
		return r.validate(c.Point)

	case GeoCoord:
		p, err := GeoToPixel(c.Geo, r.Dataset.Attrs, r.Mapper)
		if err != nil {
			return Attempt{Status: FallThrough, Err: err}
		}
		fmt.Fprintf(r.Log, "%d: Geographic point %v maps to pixel %v\n", r.ID, c.Geo, p)
		return r.validate(p)

	case MaxCoherence:
		return r.maxCoherence()

	case Manual:
		if r.Picker == nil {
			return Attempt{Status: FallThrough, Err: errors.New("no interactive picker")}
		}
		p, err := r.Picker.Pick(r.Dataset.MeanImage(), r.Dataset.Width, r.Dataset.Height)
		if err != nil {
			return Attempt{Status: Fatal, Err: err}
		}
		return r.validate(p)

	case Random:
		if r.Validity.Count == 0 {
			return Attempt{Status: Fatal, Err: ErrEmptyValidity}
		}
		return Attempt{Status: Accepted, Point: r.randomUsable()}

	default:
		return Attempt{Status: Fatal, Err: fmt.Errorf("unsupported strategy %v", c.Strategy)}
	}
}

// Accepts the point if it is in bounds and usable, else falls through
func (r *Resolver) validate(p Point) Attempt {
	if !r.Validity.IsUsable(p) {
		return Attempt{Status: FallThrough, Err: fmt.Errorf("pixel %v: %w", p, ErrOutOfBoundsOrMasked)}
	}
	return Attempt{Status: Accepted, Point: p}
}

// Picks a usable pixel uniformly at random by rejection sampling. Terminates because
// the validity has at least one usable pixel
func (r *Resolver) randomUsable() Point {
	n := uint32(len(r.Validity.Usable))
	for {
		i := int(r.rng.Uint32n(n))
		if r.Validity.Usable[i] {
			return r.Validity.PointAt(i)
		}
	}
}

// Picks uniformly at random among usable pixels with quality at or above the threshold
func (r *Resolver) maxCoherence() Attempt {
	if len(r.Quality) != len(r.Validity.Usable) {
		return Attempt{Status: FallThrough, Err: fmt.Errorf("quality image has %d pixels, expected %d", len(r.Quality), len(r.Validity.Usable))}
	}
	subset := make([]int, 0, 1024)
	for i, q := range r.Quality {
		if r.Validity.Usable[i] && !math.IsNaN(q) && q >= r.MinQuality {
			subset = append(subset, i)
		}
	}
	if len(subset) == 0 {
		return Attempt{Status: FallThrough, Err: fmt.Errorf("threshold %g: %w", r.MinQuality, ErrNoQualifyingPixel)}
	}
	i := subset[r.rng.Uint32n(uint32(len(subset)))]
	return Attempt{Status: Accepted, Point: r.Validity.PointAt(i)}
}
