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
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Loads seeding options from a YAML or JSON job file. Missing entries keep their defaults
func LoadConfig(fileName string) (*OpSeed, error) {
	contents, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("read '%s': %w", fileName, err)
	}
	return ParseConfig(contents, filepath.Ext(fileName))
}

// Parses seeding options in the format given by the file extension
func ParseConfig(contents []byte, ext string) (*OpSeed, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		op := NewOpSeedDefault()
		if err := yaml.UnmarshalStrict(contents, op); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return op, op.Finalize()
	default:
		op := NewOpSeedDefault()
		if err := json.Unmarshal(contents, op); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return op, nil
	}
}
