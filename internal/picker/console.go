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

package picker

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mlnoga/insarseed/internal/fits"
	"github.com/mlnoga/insarseed/internal/seed"
	"github.com/mlnoga/insarseed/internal/stats"
)

// Interactive reference pixel selection on a text console. Renders a preview of the
// display array to a JPEG or 16-bit TIFF file, then reads "row col" lines until a valid pixel is entered.
// Invalid entries are rejected with a warning and the prompt repeats. Entering q or
// reaching end of input cancels.
type Console struct {
	in          *bufio.Scanner
	out         io.Writer
	PreviewFile string // Preview path, .tif or .tiff for TIFF, JPEG otherwise. Empty to disable
	mutex       sync.Mutex
}

// Creates a console picker reading from in and prompting on out
func NewConsole(in io.Reader, out io.Writer, previewFile string) *Console {
	return &Console{in: bufio.NewScanner(in), out: out, PreviewFile: previewFile}
}

func (c *Console) Pick(display []float64, width, height int) (seed.Point, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.PreviewFile != "" {
		lo, hi := stats.PercentileRange(display, 2, 98)
		img := fits.NewImageFromData(int32(width), int32(height), display, -64)
		if err := writePreview(img, c.PreviewFile, lo, hi); err != nil {
			fmt.Fprintf(c.out, "Warning: cannot write preview %s: %s\n", c.PreviewFile, err.Error())
		} else {
			fmt.Fprintf(c.out, "Preview of the %dx%d pixel average written to %s, color range %.4g..%.4g\n", width, height, c.PreviewFile, lo, hi)
		}
	}

	for {
		fmt.Fprintf(c.out, "Enter reference pixel as 'row col', or q to cancel: ")
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return seed.Point{}, seed.ErrManualPickCancelled
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "q" || line == "quit" {
			return seed.Point{}, seed.ErrManualPickCancelled
		}
		p, err := parsePoint(line)
		if err != nil {
			fmt.Fprintf(c.out, "Warning: %s\n", err.Error())
			continue
		}
		if p.Row < 0 || p.Row >= height || p.Col < 0 || p.Col >= width {
			fmt.Fprintf(c.out, "Warning: pixel %v is outside the %dx%d grid, pick again\n", p, width, height)
			continue
		}
		if v := display[p.Row*width+p.Col]; math.IsNaN(v) {
			fmt.Fprintf(c.out, "Warning: pixel %v has no valid value, pick again\n", p)
			continue
		}
		fmt.Fprintf(c.out, "Selected pixel %v with value %.4g\n", p, display[p.Row*width+p.Col])
		return p, nil
	}
}

// Parses "row col" or "row,col"
func parsePoint(line string) (seed.Point, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) != 2 {
		return seed.Point{}, fmt.Errorf("cannot parse '%s', expected two integers", line)
	}
	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return seed.Point{}, fmt.Errorf("invalid row '%s'", fields[0])
	}
	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return seed.Point{}, fmt.Errorf("invalid column '%s'", fields[1])
	}
	return seed.Point{Row: row, Col: col}, nil
}

func writePreview(img *fits.Image, fileName string, lo, hi float64) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".tif", ".tiff":
		return img.WritePreviewTIFF16ToFile(fileName, lo, hi)
	default:
		return img.WritePreviewJPGToFile(fileName, lo, hi, 90)
	}
}
