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
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

// Reads the first header and data unit carrying pixel data from the given file.
// TIFF files are imported as a single grayscale image.
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (*Image, error) {
	lExt := strings.ToLower(path.Ext(fileName))
	if lExt == ".tif" || lExt == ".tiff" {
		i := NewImage()
		i.ID = id
		return i, i.ReadTIFF(fileName)
	}
	hdus, err := NewImagesFromFile(fileName, id, logWriter)
	if err != nil {
		return nil, err
	}
	for _, hdu := range hdus {
		if hdu.Pixels > 0 {
			return hdu, nil
		}
	}
	return nil, fmt.Errorf("%d: %s contains no image data", id, fileName)
}

// Reads all header and data units from the given file. Decompresses gzip if .gz or gzip suffix is present.
// The first element is the primary HDU, which may carry no data.
func NewImagesFromFile(fileName string, id int, logWriter io.Writer) (hdus []*Image, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	lExt := strings.ToLower(path.Ext(fileName))
	if lExt == ".gz" || lExt == ".gzip" {
		r, err = gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
	}
	return ReadAll(r, fileName, id, logWriter)
}

// Reads all header and data units from the given reader until EOF
func ReadAll(r io.Reader, fileName string, id int, logWriter io.Writer) (hdus []*Image, err error) {
	for {
		hdu := NewImage()
		hdu.ID, hdu.FileName = id, fileName
		err = hdu.Read(r, true, logWriter)
		if errors.Is(err, io.EOF) && len(hdus) > 0 {
			return hdus, nil
		} else if err != nil {
			return nil, err
		}
		hdus = append(hdus, hdu)
	}
}

func (fits *Image) PopHeaderInt32(key string) (res int32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		fits.Header.Delete(key)
		return int32(val), nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

func (fits *Image) PopHeaderIntOrFloat(key string) (res float64, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		fits.Header.Delete(key)
		return float64(val), nil
	} else if val, ok := fits.Header.Floats[key]; ok {
		fits.Header.Delete(key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

// Name of an image extension, or empty string for the primary HDU
func (fits *Image) ExtName() string {
	return strings.TrimSpace(fits.Header.Strings["EXTNAME"])
}

// Sets the name under which an image extension is stored
func (fits *Image) SetExtName(name string) {
	fits.Header.noteKey("EXTNAME")
	fits.Header.Strings["EXTNAME"] = name
}

// Returns true if this is the primary HDU of a file
func (fits *Image) IsPrimary() bool {
	_, isExt := fits.Header.Strings["XTENSION"]
	return !isExt
}

// Reads one header and data unit. Returns io.EOF if the reader is exhausted before the header starts.
func (fits *Image) Read(f io.Reader, readData bool, logWriter io.Writer) (err error) {
	err = fits.Header.read(f, fits.ID, logWriter)
	if err != nil {
		return err
	}

	// check mandatory fields as per standard
	if xt, isExt := fits.Header.Strings["XTENSION"]; isExt {
		if strings.TrimSpace(xt) != "IMAGE" {
			return fmt.Errorf("%d: Unsupported FITS extension type '%s'", fits.ID, xt)
		}
	} else if !fits.Header.Bools["SIMPLE"] {
		return fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", fits.ID)
	}

	if fits.Bitpix, err = fits.PopHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = fits.PopHeaderInt32("NAXIS"); err != nil {
		return err
	}
	fits.Naxisn = make([]int32, naxis)
	fits.Pixels = int32(0)
	if naxis > 0 {
		fits.Pixels = 1
	}
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = fits.PopHeaderInt32(name); err != nil {
			return err
		}
		fits.Naxisn[i-1] = nai
		fits.Pixels *= nai
	}

	if fits.Bzero, err = fits.PopHeaderIntOrFloat("BZERO"); err != nil {
		fits.Bzero = 0
	}
	if fits.Bscale, err = fits.PopHeaderIntOrFloat("BSCALE"); err != nil {
		fits.Bscale = 1
	}

	if !readData {
		return nil
	}
	return fits.readData(f)
}

// Number of bytes per value for the given BITPIX
func bytesPerValue(bitpix int32) int {
	if bitpix < 0 {
		return int(-bitpix) / 8
	}
	return int(bitpix) / 8
}

// Read image data from file, convert to float64 data type, apply Bzero and Bscale and
// set them to 0 and 1 afterwards. Integer values equal to BLANK become NaN. Skips block padding.
func (fits *Image) readData(r io.Reader) (err error) {
	bpv := bytesPerValue(fits.Bitpix)
	switch fits.Bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return fmt.Errorf("%d: Unknown BITPIX value %d", fits.ID, fits.Bitpix)
	}
	if fits.Pixels == 0 {
		return nil
	}

	blank, hasBlank := fits.Header.Ints["BLANK"]
	fits.Data = make([]float64, int(fits.Pixels))
	buf := make([]byte, bufLen-(bufLen%bpv))
	dataIndex := 0
	for dataIndex < len(fits.Data) {
		bytesToRead := (len(fits.Data) - dataIndex) * bpv
		if bytesToRead > len(buf) {
			bytesToRead = len(buf)
		}
		if _, err := io.ReadFull(r, buf[:bytesToRead]); err != nil {
			return fmt.Errorf("%d: %s", fits.ID, err.Error())
		}
		for i := 0; i < bytesToRead; i += bpv {
			var raw float64
			var ival int64
			isInt := true
			switch fits.Bitpix {
			case 8:
				ival = int64(buf[i])
			case 16:
				ival = int64(int16(binary.BigEndian.Uint16(buf[i:])))
			case 32:
				ival = int64(int32(binary.BigEndian.Uint32(buf[i:])))
			case 64:
				ival = int64(binary.BigEndian.Uint64(buf[i:]))
			case -32:
				raw, isInt = float64(math.Float32frombits(binary.BigEndian.Uint32(buf[i:]))), false
			case -64:
				raw, isInt = math.Float64frombits(binary.BigEndian.Uint64(buf[i:])), false
			}
			if isInt {
				if hasBlank && ival == blank {
					fits.Data[dataIndex] = math.NaN()
					dataIndex++
					continue
				}
				raw = float64(ival)
			}
			if fits.Bscale != 1 || fits.Bzero != 0 {
				raw = raw*fits.Bscale + fits.Bzero
			}
			fits.Data[dataIndex] = raw
			dataIndex++
		}
	}
	fits.Bzero, fits.Bscale = 0, 1 // reflect that data values incorporate these now

	// skip padding up to the next block boundary
	if rem := (len(fits.Data) * bpv) % fitsBlockSize; rem != 0 {
		if _, err := io.CopyN(io.Discard, r, int64(fitsBlockSize-rem)); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%d: %s", fits.ID, err.Error())
		}
	}
	return nil
}

const bufLen int = 16 * 1024 // input buffer length for reading from file

type headerReadState struct {
	continueKey string // string key awaiting a CONTINUE card, if any
}

func (h *Header) read(r io.Reader, id int, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)
	state := headerReadState{}

	for h.Length = 0; !h.End; {
		// read next header unit
		bytesRead, err := io.ReadFull(r, buf)
		if err == io.EOF && h.Length == 0 {
			return io.EOF
		} else if err != nil {
			return fmt.Errorf("%d: %s", id, err.Error())
		}
		h.Length += int32(bytesRead)

		// parse all lines in this header unit
		for lineNo := 0; lineNo < fitsBlockSize/HeaderLineSize && !h.End; lineNo++ {
			line := buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				fmt.Fprintf(logWriter, "%d: Warning:Cannot parse '%s', ignoring\n", id, string(line))
			} else {
				subNames := reParser.SubexpNames()
				h.readLine(subNames, subValues, &state, id, lineNo, logWriter)
			}
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte, state *headerReadState, id, lineNo int, logWriter io.Writer) {
	key := ""
	// ignore index 0 which is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] != nil && len(subNames[i]) == 1 {
			switch c := subNames[i][0]; c {
			case byte('E'): // end line
				h.End = true
			case byte('H'): // history line
				h.History = append(h.History, string(subValues[i]))
			case byte('C'): // comment line
				h.Comments = append(h.Comments, string(subValues[i]))
			case byte('k'): // key
				key = string(subValues[i])
			case byte('K'): // long or lowercase key, HIERARCH convention
				key = strings.TrimSpace(string(subValues[i]))
			case byte('b'): // boolean
				if len(subValues[i]) > 0 {
					v := subValues[i][0]
					h.noteKey(key)
					h.Bools[key] = v == byte('t') || v == byte('T')
				}
			case byte('i'): // int
				val, err := strconv.ParseInt(string(subValues[i]), 10, 64)
				if err == nil {
					h.noteKey(key)
					h.Ints[key] = val
				}
			case byte('f'): // float
				val, err := strconv.ParseFloat(strings.Replace(string(subValues[i]), "D", "E", 1), 64)
				if err == nil {
					h.noteKey(key)
					h.Floats[key] = val
				}
			case byte('s'): // string
				val := unescapeString(string(subValues[i]))
				h.noteKey(key)
				state.continueKey = ""
				if strings.HasSuffix(val, "&") {
					state.continueKey = key
				}
				h.Strings[key] = val
			case byte('n'): // string continuation
				val := unescapeString(string(subValues[i]))
				if state.continueKey == "" {
					fmt.Fprintf(logWriter, "%d:%d:Warning:CONTINUE without preceding long string, ignoring\n", id, lineNo)
					break
				}
				prev := h.Strings[state.continueKey]
				h.Strings[state.continueKey] = strings.TrimSuffix(prev, "&") + val
				if !strings.HasSuffix(val, "&") {
					state.continueKey = ""
				}
			case byte('d'): // date
				h.noteKey(key)
				h.Dates[key] = string(subValues[i])
			case byte('c'): // comment
				// ignore value comments
			default:
				fmt.Fprintf(logWriter, "%d:%d:Warning:Unknown token '%s'\n", id, lineNo, string(c))
			}
		}
	}
}

// Undoes quote escaping and drops the trailing blanks FITS uses for padding
func unescapeString(s string) string {
	return strings.TrimRight(strings.ReplaceAll(s, "''", "'"), " ")
}

func (h *Header) Print(w io.Writer) {
	fmt.Fprintf(w, "Bools   : %v\n", h.Bools)
	fmt.Fprintf(w, "Ints    : %v\n", h.Ints)
	fmt.Fprintf(w, "Floats  : %v\n", h.Floats)
	fmt.Fprintf(w, "Strings : %v\n", h.Strings)
	fmt.Fprintf(w, "Dates   : %v\n", h.Dates)
	fmt.Fprintf(w, "History : %v\n", h.History)
	fmt.Fprintf(w, "Comments: %v\n", h.Comments)
	fmt.Fprintf(w, "End     : %v\n", h.End)
}

// Build regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := "\\s+"
	whiteOpt := "\\s*"
	whiteLine := white

	hist := "HISTORY"
	rest := ".*"
	histLine := hist + white + "(?P<H>" + rest + ")"

	commKey := "COMMENT"
	commLine := commKey + white + "(?P<C>" + rest + ")"

	end := "(?P<E>END)"
	endLine := end + whiteOpt

	key := "(?:HIERARCH" + white + "(?P<K>[^=]+?)|(?P<k>[A-Z0-9_-]+))"
	equals := "="

	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := "(?P<f>[+-]?(?:[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?|[0-9]+[ED][-+]?[0-9]+))"
	stri := "'(?P<s>(?:[^']|'')*)'"
	date := "(?P<d>[0-9]{1,4}-?[012][0-9]-?[0123][0-9]T[012][0-9]:?[0-5][0-9]:?[0-5][0-9].?[0-9]*)"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + "|" + date + ")"

	// missing: complex int: (nr, nr)
	// missing: complex float: (nr, nr)

	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + equals + whiteOpt + val + whiteOpt + commOpt

	contLine := "CONTINUE" + whiteOpt + "'(?P<n>(?:[^']|'')*)'" + whiteOpt + "(?:/.*)?"

	lineRe := "^(?:" + whiteLine + "|" + histLine + "|" + commLine + "|" + contLine + "|" + keyLine + "|" + endLine + ")$"
	return regexp.MustCompile(lineRe)
}
