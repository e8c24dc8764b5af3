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

package stack

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/mlnoga/insarseed/internal/fits"
)

// Loads a 2D raster from a FITS or TIFF file. For files with several images, returns
// the per-pixel mean over all of them, ignoring undefined values
func LoadRaster(fileName string, id int, logWriter io.Writer) (data []float64, width, height int, err error) {
	var images []*fits.Image
	lExt := strings.ToLower(filepath.Ext(fileName))
	if lExt == ".tif" || lExt == ".tiff" {
		img, err := fits.NewImageFromFile(fileName, id, logWriter)
		if err != nil {
			return nil, 0, 0, err
		}
		images = []*fits.Image{img}
	} else {
		hdus, err := fits.NewImagesFromFile(fileName, id, logWriter)
		if err != nil {
			return nil, 0, 0, err
		}
		for _, hdu := range hdus {
			if hdu.Pixels > 0 {
				images = append(images, hdu)
			}
		}
	}
	if len(images) == 0 {
		return nil, 0, 0, fmt.Errorf("%d: %s contains no image data", id, fileName)
	}
	width, height = int(images[0].Width()), int(images[0].Height())
	if len(images) == 1 {
		return images[0].Data, width, height, nil
	}

	ds := &Dataset{Width: width, Height: height}
	for i, img := range images {
		if int(img.Width()) != width || int(img.Height()) != height {
			return nil, 0, 0, fmt.Errorf("%d: %s image %d has size %s, expected %dx%d", id, fileName, i, img.DimensionsToString(), width, height)
		}
		ds.Epochs = append(ds.Epochs, &Epoch{Data: img.Data, Width: width, Height: height})
	}
	return ds.MeanImage(), width, height, nil
}

// Loads a mask raster for a grid of given size. Pixels with finite non-zero values are usable
func LoadMask(fileName string, id, width, height int, logWriter io.Writer) ([]bool, error) {
	data, w, h, err := LoadRaster(fileName, id, logWriter)
	if err != nil {
		return nil, err
	}
	if w != width || h != height {
		return nil, fmt.Errorf("%d: mask %s has size %dx%d, expected %dx%d", id, fileName, w, h, width, height)
	}
	mask := make([]bool, len(data))
	for i, v := range data {
		mask[i] = v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return mask, nil
}

// Loads a quality raster such as spatial coherence for a grid of given size
func LoadQuality(fileName string, id, width, height int, logWriter io.Writer) ([]float64, error) {
	data, w, h, err := LoadRaster(fileName, id, logWriter)
	if err != nil {
		return nil, err
	}
	if w != width || h != height {
		return nil, fmt.Errorf("%d: quality image %s has size %dx%d, expected %dx%d", id, fileName, w, h, width, height)
	}
	return data, nil
}
