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
	"fmt"
	"path/filepath"
	"strings"
)

// Expands file name patterns with wildcards into a list of input files.
type OpLoadMany struct {
	OpBase
	FilePatterns []string `json:"filePatterns"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadManyDefault() }) } // register the operator for JSON decoding

func NewOpLoadManyDefault() *OpLoadMany { return NewOpLoadMany(nil) }

func NewOpLoadMany(filePatterns []string) *OpLoadMany {
	return &OpLoadMany{
		OpBase:       OpBase{Type: "loadMany", Active: true},
		FilePatterns: filePatterns,
	}
}

func (op *OpLoadMany) IsInteractive() bool { return false }

func (op *OpLoadMany) OutputName(name string, numFiles int) string { return name }

// Loading on its own just reports the file
func (op *OpLoadMany) Apply(f File, c *Context) Outcome {
	return Outcome{File: f, Message: "found"}
}

// Turns file name wildcards into a list of files. Patterns without wildcards
// which match nothing are kept, so the missing file is reported per file later.
// Duplicates are dropped, the first occurrence wins
func (op *OpLoadMany) Files(c *Context) (files []File, err error) {
	seen := map[string]bool{}
	for _, pattern := range op.FilePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
			matches = []string{pattern}
		}
		for _, match := range matches {
			if c.RestrictPaths && !IsPathAllowed(match) {
				fmt.Fprintf(c.Log, "Pattern match %s outside current directory tree, skipping\n", match)
				continue
			}
			if seen[match] {
				continue
			}
			seen[match] = true
			files = append(files, File{ID: len(files) + 1, FileName: match})
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s operator with no files to load from pattern %v", op.Type, op.FilePatterns)
	}
	fmt.Fprintf(c.Log, "Found %d files.\n", len(files))
	return files, nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func IsPathAllowed(p string) bool {
	if filepath.IsAbs(p) {
		return false // relative paths only
	}
	if strings.Contains(p, "..") {
		return false // no going outside the tree
	}
	return true
}

// Derives an output file name. An explicit override applies to single-file batches only.
// Otherwise the prefix is prepended to the base name and the suffix inserted before the
// extension, keeping the input's directory. Compressed inputs produce uncompressed outputs
func OutputName(input, prefix, suffix, override string, numFiles int) string {
	if override != "" && numFiles == 1 {
		return override
	}
	dir, base := filepath.Split(input)
	base = strings.TrimSuffix(base, ".gz")
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".fits"
	}
	return filepath.Join(dir, prefix+stem+suffix+ext)
}
