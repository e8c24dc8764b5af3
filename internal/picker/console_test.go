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
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/insarseed/internal/seed"
)

func TestConsoleRetriesInvalidPicks(t *testing.T) {
	display := []float64{1, math.NaN(), 3, 4, 5, 6}
	preview := filepath.Join(t.TempDir(), "pick.jpg")
	in := strings.NewReader("hello\n5 5\n0 1\n1,2\n")
	out := &bytes.Buffer{}
	c := NewConsole(in, out, preview)

	p, err := c.Pick(display, 3, 2)
	if err != nil {
		t.Fatalf("pick: %s", err)
	}
	if p != (seed.Point{Row: 1, Col: 2}) {
		t.Errorf("got %v want (1, 2)", p)
	}
	if n := strings.Count(out.String(), "Warning:"); n != 3 {
		t.Errorf("got %d warnings, want 3:\n%s", n, out.String())
	}
	if fi, err := os.Stat(preview); err != nil || fi.Size() == 0 {
		t.Errorf("preview not written: %v", err)
	}
}

func TestConsoleCancel(t *testing.T) {
	for _, input := range []string{"q\n", "", "7 7\n"} {
		c := NewConsole(strings.NewReader(input), &bytes.Buffer{}, "")
		if _, err := c.Pick([]float64{1, 2, 3, 4}, 2, 2); !errors.Is(err, seed.ErrManualPickCancelled) {
			t.Errorf("input %q: got %v want ErrManualPickCancelled", input, err)
		}
	}
}
