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
	"errors"
)

// Errors reported by the seeding engine. Callers test with errors.Is, as errors
// returned by this package wrap them with file and point details
var (
	// No pixel is defined in every epoch and unmasked. Fatal for the file
	ErrEmptyValidity = errors.New("no pixel is valid in all epochs")

	// No pixel meets the minimum quality. The resolver falls through
	ErrNoQualifyingPixel = errors.New("no valid pixel meets the minimum quality")

	// Geographic coordinates cannot be converted to pixels. The resolver falls through
	ErrCoordinateMapping = errors.New("cannot map geographic coordinates to pixels")

	// A candidate point lies outside the grid or on an unusable pixel. The resolver falls through
	ErrOutOfBoundsOrMasked = errors.New("reference point is out of bounds or masked")

	// All candidate strategies failed. Fatal for the file
	ErrNoReferencePoint = errors.New("no reference point found")

	// An externally supplied reference value list does not match the number of epochs. Fatal for the file
	ErrEpochCountMismatch = errors.New("reference value count does not match epoch count")

	// The operator cancelled the interactive pick. Fatal for the file
	ErrManualPickCancelled = errors.New("manual reference pick cancelled")

	// The requested reference date is not an epoch of the time series
	ErrDateNotFound = errors.New("reference date not found")

	// Temporal referencing was requested for a dataset which is not a time series
	ErrNotTimeseries = errors.New("dataset is not a time series")
)
