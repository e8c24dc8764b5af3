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

package fits

import (
	"bufio"
	"fmt"
	"image/color"
	"os"

	"golang.org/x/image/tiff"
)

// Read a grayscale or color TIFF raster into a single-channel FITS image. Color pixels
// are converted to luminance. Values are normalized to [0,1], so 8 and 16 bit masks or
// quality rasters share one scale
func (f *Image) ReadTIFF(fileName string) error {
	// open file and create buffered reader
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()
	reader := bufio.NewReader(file)

	// decode TIFF file into golang image
	t, err := tiff.Decode(reader)
	if err != nil {
		return fmt.Errorf("%d: %s: %w", f.ID, fileName, err)
	}

	// determine width, height and color depth
	bounds := t.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// set FITS metadata
	f.FileName = fileName
	f.Bitpix = colorModelToBitpix(t.ColorModel())
	f.Naxisn = []int32{int32(width), int32(height)}
	f.Pixels = int32(width) * int32(height)
	f.Bzero, f.Bscale = 0, 1

	// read and convert pixels
	f.Data = make([]float64, f.Pixels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.Gray16Model.Convert(t.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			f.Data[y*width+x] = float64(c.Y) / 65535
		}
	}
	return nil
}

func colorModelToBitpix(m color.Model) int32 {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.AlphaModel, color.GrayModel:
		return 8
	default:
		return 16
	}
}
