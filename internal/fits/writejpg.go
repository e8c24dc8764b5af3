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
	"image/jpeg"
	"io"
	"math"
	"os"
)

// Hue range of the preview color ramp, from low (blue) to high (red) values
const (
	previewHueLow  = 260.0
	previewHueHigh = 10.0
)

// Write a preview of a single-channel FITS image to JPG, using the given min and max.
func (f *Image) WritePreviewJPGToFile(fileName string, min, max float64, quality int) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WritePreviewJPG(writer, min, max, quality); err != nil {
		return err
	}
	return writer.Flush()
}

// Write a preview of a single-channel FITS image to JPG. Values are mapped from [min,max]
// onto a perceptual HCL color ramp. Undefined pixels are rendered black.
func (f *Image) WritePreviewJPG(writer io.Writer, min, max float64, quality int) error {
	// convert pixels into Golang Image
	width, height := int(f.Width()), int(f.Height())
	img := image.NewRGBA(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := 0.0
	if max > min {
		scale = 1.0 / (max - min)
	}
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			v := f.Data[yoffset+x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
				continue
			}
			img.SetRGBA(x, y, rampColor((v-min)*scale))
		}
	}

	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}

// Maps a normalized value onto the preview color ramp with 8 bits per channel
func rampColor(t float64) color.RGBA {
	r, g, b := rampColorful(t).RGB255()
	return color.RGBA{r, g, b, 255}
}
