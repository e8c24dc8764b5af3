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
)

// Reference point selection strategy
type Strategy int

const (
	InputCoord    Strategy = iota // Explicit row and column
	GeoCoord                      // Explicit latitude and longitude
	MaxCoherence                  // Random pick among pixels with sufficient quality
	Manual                        // Interactive pick by an operator
	Random                        // Random pick among all usable pixels
	GlobalAverage                 // No point; per-epoch spatial mean of usable pixels
)

var strategyNames = []string{"input-coord", "geo-coord", "max-coherence", "manual", "random", "global-average"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// Parses a strategy from its name
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return Random, fmt.Errorf("unknown reference strategy '%s', expected one of %v", name, strategyNames)
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Decodes the strategy from its name in YAML job files
func (s *Strategy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(name))
}

// Returns true if the strategy requires interactive input
func (s Strategy) IsInteractive() bool {
	return s == Manual
}

// One entry of the ordered list of strategies tried by the resolver
type Candidate struct {
	Strategy Strategy
	Point    Point    // for InputCoord
	Geo      GeoPoint // for GeoCoord
}

// Inputs for reference point resolution of one dataset. Read-only once built
type Config struct {
	Strategy       Strategy
	MinQuality     float64          // Minimum quality for MaxCoherence, in [0,1]
	Mask           []bool           // Optional mask, true for usable pixels
	Quality        []float64        // Optional quality image such as coherence
	Point          *Point           // Optional explicit point
	Geo            *GeoPoint        // Optional explicit geographic point
	Mapper         CoordinateMapper // Optional mapper for sensor geometry
	Picker         ManualPicker     // Required for Manual
	RandomFallback bool             // Try Random after all other candidates
}

// Default minimum quality for MaxCoherence
const DefaultMinQuality = 0.85

// Builds the priority-ordered candidate list from the given inputs. Explicit points come
// first, then quality-based, manual and random selection. GlobalAverage excludes all others.
// Requested strategies which lack their inputs are skipped with a warning to logWriter.
func BuildCandidates(cfg *Config, id int, logWriter io.Writer) []Candidate {
	if cfg.Strategy == GlobalAverage {
		return []Candidate{{Strategy: GlobalAverage}}
	}

	var cands []Candidate
	if cfg.Point != nil {
		cands = append(cands, Candidate{Strategy: InputCoord, Point: *cfg.Point})
	}
	if cfg.Geo != nil {
		cands = append(cands, Candidate{Strategy: GeoCoord, Geo: *cfg.Geo})
	}
	if cfg.Quality != nil {
		cands = append(cands, Candidate{Strategy: MaxCoherence})
	} else if cfg.Strategy == MaxCoherence {
		fmt.Fprintf(logWriter, "%d: Warning: %s strategy without quality image, skipping\n", id, MaxCoherence)
	}
	if cfg.Strategy == Manual {
		if cfg.Picker != nil {
			cands = append(cands, Candidate{Strategy: Manual})
		} else {
			fmt.Fprintf(logWriter, "%d: Warning: %s strategy without interactive picker, skipping\n", id, Manual)
		}
	}
	if cfg.Strategy == Random || cfg.RandomFallback {
		cands = append(cands, Candidate{Strategy: Random})
	}
	return cands
}
