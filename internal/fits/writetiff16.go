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
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"
)

// Write a preview of a single-channel FITS image to 16-bit TIFF, using the given min and max.
func (f *Image) WritePreviewTIFF16ToFile(fileName string, min, max float64) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WritePreviewTIFF16(writer, min, max); err != nil {
		return err
	}
	return writer.Flush()
}

// Write a preview of a single-channel FITS image to 16-bit TIFF, with the same color ramp
// as the JPEG preview. Undefined pixels are fully transparent
func (f *Image) WritePreviewTIFF16(writer io.Writer, min, max float64) error {
	width, height := int(f.Width()), int(f.Height())
	img := image.NewRGBA64(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := 0.0
	if max > min {
		scale = 1.0 / (max - min)
	}
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			v := f.Data[yoffset+x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.SetRGBA64(x, y, color.RGBA64{})
				continue
			}
			img.SetRGBA64(x, y, rampColor64((v-min)*scale))
		}
	}

	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Maps a normalized value onto the preview color ramp with 16 bits per channel
func rampColor64(t float64) color.RGBA64 {
	col := rampColorful(t)
	return color.RGBA64{
		R: uint16(col.R*65535 + 0.5),
		G: uint16(col.G*65535 + 0.5),
		B: uint16(col.B*65535 + 0.5),
		A: 0xffff,
	}
}

// Returns the preview ramp color for a normalized value. Values outside [0,1] are clamped
func rampColorful(t float64) colorful.Color {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	h := previewHueLow + (previewHueHigh-previewHueLow)*t
	l := 0.35 + 0.5*(1-math.Abs(2*t-1))
	return colorful.Hcl(h, 0.6, l).Clamped()
}
