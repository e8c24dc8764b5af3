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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Writes the given header and data units to a file with given filename. The first
// unit becomes the primary HDU, all others image extensions. The file is written
// to a temporary name and renamed into place, so a reader of the same file never
// observes partial output.
func WriteFile(fileName string, hdus []*Image) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(fileName), "."+filepath.Base(fileName)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = WriteAll(bw, hdus); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}

// Writes all header and data units to an io.Writer
func WriteAll(w io.Writer, hdus []*Image) error {
	if len(hdus) == 0 {
		return fmt.Errorf("no header and data units to write")
	}
	for i, hdu := range hdus {
		if err := hdu.Write(w, i == 0, len(hdus) > 1); err != nil {
			return err
		}
	}
	return nil
}

// Output BITPIX for the given input BITPIX. Referenced values are no longer integral,
// so integer inputs are widened to a floating type that holds them exactly
func OutputBitpix(bitpix int32) int32 {
	switch bitpix {
	case -64, 32, 64:
		return -64
	default:
		return -32
	}
}

// Writes one header and data unit to an io.Writer
func (fits *Image) Write(f io.Writer, primary, extend bool) error {
	bitpix := OutputBitpix(fits.Bitpix)
	if fits.Pixels == 0 {
		bitpix = 8
	}

	// Build header in string buffer
	sb := strings.Builder{}
	if primary {
		writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	} else {
		writeString(&sb, "XTENSION", "IMAGE", "Image extension")
	}
	writeInt(&sb, "BITPIX", int64(bitpix), bitpixComment(bitpix))
	writeInt(&sb, "NAXIS", int64(len(fits.Naxisn)), "[1] Number of axis")
	for i := 0; i < len(fits.Naxisn); i++ {
		writeInt(&sb, fmt.Sprintf("NAXIS%d", i+1), int64(fits.Naxisn[i]), "[1] Axis size")
	}
	if primary && extend {
		writeBool(&sb, "EXTEND", true, "Extensions may be present")
	}
	if !primary {
		writeInt(&sb, "PCOUNT", 0, "No parameters")
		writeInt(&sb, "GCOUNT", 1, "One data group")
		if name := fits.ExtName(); name != "" {
			writeString(&sb, "EXTNAME", name, "Extension name")
		}
	}

	h := &fits.Header
	for _, key := range h.Keys {
		if IsStructuralKey(key) {
			continue
		}
		if v, ok := h.Bools[key]; ok {
			writeBool(&sb, key, v, "")
		} else if v, ok := h.Ints[key]; ok {
			writeInt(&sb, key, v, "")
		} else if v, ok := h.Floats[key]; ok {
			writeFloat(&sb, key, v, "")
		} else if v, ok := h.Strings[key]; ok {
			writeString(&sb, key, v, "")
		} else if v, ok := h.Dates[key]; ok {
			writeCard(&sb, cardPrefix(key)+v, "")
		}
	}
	for _, c := range h.Comments {
		writeCard(&sb, "COMMENT "+c, "")
	}
	for _, c := range h.History {
		writeCard(&sb, "HISTORY "+c, "")
	}
	writeEnd(&sb)

	// Pad current header block with spaces if necessary
	if bytesInHeaderBlock := sb.Len() % fitsBlockSize; bytesInHeaderBlock > 0 {
		sb.WriteString(strings.Repeat(" ", fitsBlockSize-bytesInHeaderBlock))
	}

	// Write header block(s)
	if _, err := io.WriteString(f, sb.String()); err != nil {
		return err
	}
	if fits.Pixels == 0 {
		return nil
	}

	// Write payload data. NaNs are kept, they mark undefined pixels
	var err error
	if bitpix == -64 {
		err = writeFloat64Array(f, fits.Data)
	} else {
		err = writeFloat32Array(f, fits.Data)
	}
	if err != nil {
		return err
	}
	if rem := (len(fits.Data) * bytesPerValue(bitpix)) % fitsBlockSize; rem > 0 {
		_, err = f.Write(make([]byte, fitsBlockSize-rem))
	}
	return err
}

func bitpixComment(bitpix int32) string {
	switch bitpix {
	case -32:
		return "32-bit floating point"
	case -64:
		return "64-bit floating point"
	default:
		return fmt.Sprintf("%d-bit integer", bitpix)
	}
}

// Returns the key and value indicator for a header card. Keys which do not fit the
// standard 8 character uppercase form use the HIERARCH convention
func cardPrefix(key string) string {
	if len(key) <= 8 && key == strings.ToUpper(key) && !strings.ContainsAny(key, " =") {
		return fmt.Sprintf("%-8s= ", key)
	}
	return "HIERARCH " + key + " = "
}

// Writes a header card, appending the comment if room permits and padding to line size
func writeCard(w io.Writer, card, comment string) {
	if comment != "" && len(card)+3+len(comment) <= HeaderLineSize {
		card = card + " / " + comment
	} else if comment != "" && len(card) < HeaderLineSize-3 {
		card = card + " / " + comment[:HeaderLineSize-3-len(card)]
	}
	if len(card) > HeaderLineSize {
		card = card[:HeaderLineSize]
	}
	fmt.Fprintf(w, "%-80s", card)
}

// Writes a FITS header boolean value
func writeBool(w io.Writer, key string, value bool, comment string) {
	v := "F"
	if value {
		v = "T"
	}
	writeCard(w, fmt.Sprintf("%s%20s", cardPrefix(key), v), comment)
}

// Writes a FITS header integer value
func writeInt(w io.Writer, key string, value int64, comment string) {
	writeCard(w, fmt.Sprintf("%s%20d", cardPrefix(key), value), comment)
}

// Writes a FITS header float value, in a form that reads back to the identical float64
func writeFloat(w io.Writer, key string, value float64, comment string) {
	v := strconv.FormatFloat(value, 'G', -1, 64)
	if !strings.ContainsAny(v, ".E") {
		v += ".0"
	}
	writeCard(w, fmt.Sprintf("%s%20s", cardPrefix(key), v), comment)
}

// Writes a FITS header string value, with escaping and continuations if necessary
func writeString(w io.Writer, key, value, comment string) {
	if len(value) < 8 {
		value += strings.Repeat(" ", 8-len(value))
	}
	prefix := cardPrefix(key)
	avail := HeaderLineSize - len(prefix) - 3 // two quotes and a continuation marker
	chunk, rest := nextStringChunk(value, avail)
	if rest == "" {
		writeCard(w, prefix+"'"+chunk+"'", comment)
		return
	}
	writeCard(w, prefix+"'"+chunk+"&'", "")
	for rest != "" {
		chunk, rest = nextStringChunk(rest, HeaderLineSize-len("CONTINUE  ")-3)
		if rest != "" {
			writeCard(w, "CONTINUE  '"+chunk+"&'", "")
		} else {
			writeCard(w, "CONTINUE  '"+chunk+"'", comment)
		}
	}
}

// Returns the escaped prefix of value which fits into max characters, and the unescaped remainder.
// Escaped quote pairs are never split
func nextStringChunk(value string, max int) (chunk, rest string) {
	sb := strings.Builder{}
	for i := 0; i < len(value); i++ {
		c := value[i]
		size := 1
		if c == '\'' {
			size = 2
		}
		if sb.Len()+size > max {
			return sb.String(), value[i:]
		}
		if c == '\'' {
			sb.WriteString("''")
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String(), ""
}

// Writes a FITS header end record
func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "END%s", strings.Repeat(" ", HeaderLineSize-3))
}

// Writes FITS binary body data in network byte order as 32-bit floats
func writeFloat32Array(w io.Writer, data []float64) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += (bufLen >> 2) {
		size := len(data) - block
		if size > (bufLen >> 2) {
			size = (bufLen >> 2)
		}
		for offset := 0; offset < size; offset++ {
			binary.BigEndian.PutUint32(buf[offset<<2:], math.Float32bits(float32(data[block+offset])))
		}
		if _, err := w.Write(buf[:(size << 2)]); err != nil {
			return err
		}
	}
	return nil
}

// Writes FITS binary body data in network byte order as 64-bit floats
func writeFloat64Array(w io.Writer, data []float64) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += (bufLen >> 3) {
		size := len(data) - block
		if size > (bufLen >> 3) {
			size = (bufLen >> 3)
		}
		for offset := 0; offset < size; offset++ {
			binary.BigEndian.PutUint64(buf[offset<<3:], math.Float64bits(data[block+offset]))
		}
		if _, err := w.Write(buf[:(size << 3)]); err != nil {
			return err
		}
	}
	return nil
}
