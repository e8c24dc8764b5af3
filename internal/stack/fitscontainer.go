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
	"path/filepath"
	"strings"

	"github.com/mlnoga/insarseed/internal/fits"
)

// A container backed by a FITS file. Grouped datasets are stored as a primary HDU without
// data which carries the file-level attributes, followed by one image extension per epoch
// named by the epoch key. Singular datasets are stored in the primary HDU.
// Changes are held in memory and written by Close.
type FITSContainer struct {
	FileName string
	ID       int

	primary *fits.Image
	epochs  []*fits.Image // for singular containers, the primary HDU itself
	grouped bool
	dirty   bool
}

// Opens an existing FITS container for reading and in-place updates
func OpenFITS(fileName string, id int, logWriter io.Writer) (*FITSContainer, error) {
	hdus, err := fits.NewImagesFromFile(fileName, id, logWriter)
	if err != nil {
		return nil, err
	}
	c := &FITSContainer{FileName: fileName, ID: id, primary: hdus[0]}
	if hdus[0].Pixels > 0 {
		c.epochs = []*fits.Image{hdus[0]}
		return c, nil
	}
	if len(hdus) < 2 {
		return nil, fmt.Errorf("%d: %s contains no image data", id, fileName)
	}
	c.grouped = true
	for i, hdu := range hdus[1:] {
		if len(hdu.Naxisn) != 2 {
			return nil, fmt.Errorf("%d: %s extension %d has %d axes, expected 2", id, fileName, i+1, len(hdu.Naxisn))
		}
		if hdu.ExtName() == "" {
			hdu.SetExtName(fmt.Sprintf("HDU%d", i+1))
		}
		c.epochs = append(c.epochs, hdu)
	}
	return c, nil
}

// Creates a new, empty FITS container which is written to the given file on Close
func CreateFITS(fileName string, id int, fileType string, grouped bool) *FITSContainer {
	primary := fits.NewImage()
	primary.ID, primary.FileName = id, fileName
	if fileType != "" {
		primary.Header.SetText(KeyFileType, fileType)
	}
	return &FITSContainer{FileName: fileName, ID: id, primary: primary, grouped: grouped, dirty: true}
}

func (c *FITSContainer) FileType() string {
	if t, ok := c.primary.Header.Text(KeyFileType); ok {
		return t
	}
	return ""
}

func (c *FITSContainer) IsGrouped() bool { return c.grouped }

func (c *FITSContainer) EpochKeys() []string {
	keys := make([]string, len(c.epochs))
	for i := range c.epochs {
		keys[i] = c.epochKey(i)
	}
	return keys
}

// Singular epochs are keyed by the file type, or by the file's base name
func (c *FITSContainer) epochKey(i int) string {
	if c.grouped {
		return c.epochs[i].ExtName()
	}
	if t := c.FileType(); t != "" {
		return t
	}
	return strings.TrimSuffix(filepath.Base(c.FileName), filepath.Ext(c.FileName))
}

func (c *FITSContainer) ReadEpoch(key string) (*Epoch, error) {
	for i, hdu := range c.epochs {
		if c.epochKey(i) != key {
			continue
		}
		if len(hdu.Naxisn) != 2 {
			return nil, fmt.Errorf("%d: epoch %s has %d axes, expected 2", c.ID, key, len(hdu.Naxisn))
		}
		return &Epoch{
			Key:    key,
			Data:   append([]float64(nil), hdu.Data...),
			Width:  int(hdu.Width()),
			Height: int(hdu.Height()),
			Attrs:  Attributes(hdu.Header.Attributes()),
			Bitpix: hdu.Bitpix,
		}, nil
	}
	return nil, fmt.Errorf("%d: epoch %s not found in %s", c.ID, key, c.FileName)
}

func (c *FITSContainer) Attributes() Attributes {
	return Attributes(c.primary.Header.Attributes())
}

func (c *FITSContainer) WriteEpoch(e *Epoch) error {
	if len(e.Data) != e.Width*e.Height {
		return fmt.Errorf("%d: epoch %s has %d values for %dx%d grid", c.ID, e.Key, len(e.Data), e.Width, e.Height)
	}
	c.dirty = true
	if !c.grouped {
		c.primary.Bitpix = e.Bitpix
		c.primary.Naxisn = []int32{int32(e.Width), int32(e.Height)}
		c.primary.Pixels = int32(e.Width * e.Height)
		c.primary.Data = append([]float64(nil), e.Data...)
		c.primary.Header.SetAttributes(c.withFileType(e.Attrs))
		c.epochs = []*fits.Image{c.primary}
		return nil
	}

	hdu := fits.NewImageFromData(int32(e.Width), int32(e.Height), append([]float64(nil), e.Data...), e.Bitpix)
	hdu.ID, hdu.FileName = c.ID, c.FileName
	hdu.SetExtName(e.Key)
	hdu.Header.SetAttributes(e.Attrs)
	for i := range c.epochs {
		if c.epochKey(i) == e.Key {
			c.epochs[i] = hdu
			return nil
		}
	}
	c.epochs = append(c.epochs, hdu)
	return nil
}

// Writes the file-level attributes. For singular containers these share the primary
// header with the epoch attributes, so keys are merged rather than replaced
func (c *FITSContainer) WriteAttributes(attrs Attributes) error {
	c.dirty = true
	if c.grouped {
		c.primary.Header.SetAttributes(c.withFileType(attrs))
		return nil
	}
	merged := Attributes(c.primary.Header.Attributes())
	for k, v := range attrs {
		merged[k] = v
	}
	c.primary.Header.SetAttributes(merged)
	return nil
}

// Returns attrs with the container's file type added if absent
func (c *FITSContainer) withFileType(attrs Attributes) Attributes {
	t := c.FileType()
	if t == "" || attrs.Has(KeyFileType) {
		return attrs
	}
	res := attrs.Clone()
	res[KeyFileType] = t
	return res
}

// Writes the container to its file if anything changed
func (c *FITSContainer) Close() error {
	if !c.dirty {
		return nil
	}
	if !c.grouped && c.primary.Pixels == 0 {
		return fmt.Errorf("%d: no epoch written to %s", c.ID, c.FileName)
	}
	hdus := []*fits.Image{c.primary}
	if c.grouped {
		c.primary.Bitpix, c.primary.Naxisn, c.primary.Pixels, c.primary.Data = 8, nil, 0, nil
		hdus = append(hdus, c.epochs...)
	}
	if err := fits.WriteFile(c.FileName, hdus); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
