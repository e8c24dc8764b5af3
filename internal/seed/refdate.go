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

package seed

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mlnoga/insarseed/internal/stack"
	"gonum.org/v1/gonum/floats"
)

// File type of time series datasets
const FileTypeTimeseries = "timeseries"

// Perpendicular baseline attributes holding one value per date
var baselineKeys = []string{"P_BASELINE_TIMESERIES", "P_BASELINE_TOP_TIMESERIES", "P_BASELINE_BOTTOM_TIMESERIES"}

// Normalizes a date to YYYYMMDD. Six digit dates get the century added,
// years above 50 belong to the 1900s
func NormalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if _, err := strconv.Atoi(date); err != nil {
		return "", fmt.Errorf("invalid date '%s'", date)
	}
	switch len(date) {
	case 8:
		return date, nil
	case 6:
		if yy, _ := strconv.Atoi(date[:2]); yy > 50 {
			return "19" + date, nil
		}
		return "20" + date, nil
	default:
		return "", fmt.Errorf("invalid date '%s', expected YYYYMMDD or YYMMDD", date)
	}
}

// Changes the reference date of a time series: subtracts the epoch of the given date
// pixel by pixel from every epoch, and records the date. Returns a new dataset. If the
// date is the current reference date, the data is copied through and noop is true.
func ChangeRefDate(ds *stack.Dataset, date string) (out *stack.Dataset, noop bool, err error) {
	if ds.FileType != FileTypeTimeseries {
		return nil, false, fmt.Errorf("file type %s: %w", ds.FileType, ErrNotTimeseries)
	}
	refDate, err := NormalizeDate(date)
	if err != nil {
		return nil, false, err
	}

	dates := make([]string, len(ds.Epochs))
	for i, e := range ds.Epochs {
		if dates[i], err = NormalizeDate(e.Key); err != nil {
			return nil, false, fmt.Errorf("epoch %s: %s", e.Key, err.Error())
		}
	}
	sort.Strings(dates)
	refIndex := sort.SearchStrings(dates, refDate)
	if refIndex >= len(dates) || dates[refIndex] != refDate {
		return nil, false, fmt.Errorf("%s not in %v: %w", refDate, dates, ErrDateNotFound)
	}

	current := dates[0]
	if ds.Attrs.Has(stack.KeyRefDate) {
		if current, err = NormalizeDate(ds.Attrs[stack.KeyRefDate]); err != nil {
			return nil, false, err
		}
	}
	if current == refDate {
		return ds.Clone(), true, nil
	}

	var refData []float64
	for _, e := range ds.Epochs {
		if d, _ := NormalizeDate(e.Key); d == refDate {
			refData = append([]float64(nil), e.Data...)
			break
		}
	}
	out = ds.Clone()
	for _, e := range out.Epochs {
		floats.Sub(e.Data, refData)
	}

	out.SetAttr(stack.KeyRefDate, refDate)
	for _, key := range baselineKeys {
		shiftBaselines(out.Attrs, key, refIndex)
		for _, e := range out.Epochs {
			shiftBaselines(e.Attrs, key, refIndex)
		}
	}
	return out, false, nil
}

// Re-references a whitespace-separated per-date value list to the value at refIndex.
// Lists which are absent, malformed or too short are left unchanged
func shiftBaselines(attrs stack.Attributes, key string, refIndex int) {
	raw, ok := attrs[key]
	if !ok {
		return
	}
	fields := strings.Fields(raw)
	if refIndex >= len(fields) {
		return
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return
		}
		values[i] = v
	}
	floats.AddConst(-values[refIndex], values)
	for i, v := range values {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	attrs[key] = strings.Join(fields, " ")
}
