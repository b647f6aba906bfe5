/*
Copyright © 2025 the GAEZcal authors.
This file is part of GAEZcal.

GAEZcal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GAEZcal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GAEZcal.  If not, see <http://www.gnu.org/licenses/>.
*/

package gaezcal

import "fmt"

// UnrecognizedFamilyError is returned when a variable family does not
// match any known naming scheme. It indicates a configuration or
// programming error and should abort the run.
type UnrecognizedFamilyError struct {
	Family string
}

func (e *UnrecognizedFamilyError) Error() string {
	return fmt.Sprintf("gaezcal: unrecognized variable family %q", e.Family)
}

// LoadErrorKind classifies raster load failures.
type LoadErrorKind int

const (
	// SourceUnavailable means the raster identifier did not resolve to bytes.
	SourceUnavailable LoadErrorKind = iota + 1
	// SourceMalformed means the bytes did not decode to a valid raster.
	SourceMalformed
)

func (k LoadErrorKind) String() string {
	switch k {
	case SourceUnavailable:
		return "source unavailable"
	case SourceMalformed:
		return "source malformed"
	default:
		return fmt.Sprintf("unknown load error kind %d", int(k))
	}
}

// LoadError is returned by the raster loader when a source raster
// cannot be fetched or decoded. It is recoverable per-member in the
// group aggregator's yield-loading step, and fatal when a required
// harvested-area load fails.
type LoadError struct {
	Key  string
	Kind LoadErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("gaezcal: loading %s: %v: %v", e.Key, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NoValidGroupsError is returned when every crop group's harvested-area
// load failed for the given water regime, so no output can be produced.
type NoValidGroupsError struct {
	WaterCode string
}

func (e *NoValidGroupsError) Error() string {
	return fmt.Sprintf("gaezcal: no valid harvested-area layers for water code %s", e.WaterCode)
}
