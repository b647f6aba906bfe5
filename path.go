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

import (
	"fmt"
	"strings"
)

// HarvestedAreaFamily is the static variable family holding harvested
// area per crop group and water-supply regime.
const HarvestedAreaFamily = "RES06-HAR"

// timeDependentPrefixes are the variable family prefixes whose rasters
// are keyed by period, climate model, and scenario in addition to crop
// and water regime.
var timeDependentPrefixes = []string{"RES02", "RES03", "RES04", "RES05"}

// staticPrefixes are the variable family prefixes whose rasters are
// keyed by crop and water regime only.
var staticPrefixes = []string{"RES06"}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// RasterKey deterministically maps a variable tuple to the storage key
// of the raster holding that variable. Time- and scenario-dependent
// families embed all of period, climate model, scenario, crop, and
// water code; static families (harvested area) embed only crop and
// water code. The same input tuple always produces the same key.
func RasterKey(family, period, model, scenario, crop, water string) (string, error) {
	var fname string
	switch {
	case hasAnyPrefix(family, timeDependentPrefixes):
		for _, tok := range []struct{ name, val string }{
			{"period", period}, {"climate model", model}, {"scenario", scenario},
			{"crop", crop}, {"water code", water},
		} {
			if tok.val == "" {
				return "", fmt.Errorf("gaezcal: raster key for family %s: missing %s", family, tok.name)
			}
		}
		fname = fmt.Sprintf("GAEZ-V5.%s.%s.%s.%s.%s.%s.nc", family, period, model, scenario, crop, water)
	case hasAnyPrefix(family, staticPrefixes):
		if crop == "" || water == "" {
			return "", fmt.Errorf("gaezcal: raster key for family %s: missing crop or water code", family)
		}
		fname = fmt.Sprintf("GAEZ-V5.%s.%s.%s.nc", family, crop, water)
	default:
		return "", &UnrecognizedFamilyError{Family: family}
	}
	return family + "/" + fname, nil
}

// AreaKey returns the storage key of the harvested-area raster for the
// given crop group and area water-supply regime.
func AreaKey(group, areaWater string) (string, error) {
	return RasterKey(HarvestedAreaFamily, "", "", "", group, areaWater)
}
