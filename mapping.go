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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Recognized yield water/input regime codes and their harvested-area
// water-supply equivalents.
const (
	HighInputIrrigated = "HILM"
	LowInputIrrigated  = "LILM"
	HighInputRainfed   = "HRLM"
	LowInputRainfed    = "LRLM"

	AreaIrrigated = "WSI"
	AreaRainfed   = "WSR"
)

// AreaWaterCode translates a yield water/input code to the water-supply
// code used by the harvested-area family. It is total over the four
// recognized yield water codes.
func AreaWaterCode(water string) (string, error) {
	switch water {
	case HighInputIrrigated, LowInputIrrigated:
		return AreaIrrigated, nil
	case HighInputRainfed, LowInputRainfed:
		return AreaRainfed, nil
	default:
		return "", fmt.Errorf("gaezcal: unrecognized water code %q", water)
	}
}

// CropGroups maps a Theme-6 crop group code to the sorted member crop
// codes that contribute yield to the group. It is read-only after load.
type CropGroups map[string][]string

// themeColumn selects the crop-code column appropriate to the given
// yield variable family.
func themeColumn(family string) string {
	if family == "RES05-YCX" || family == "RES05-YXX" {
		return "theme5_code"
	}
	return "theme2_code"
}

// csvHeader indexes a CSV header row by column name.
func csvHeader(rec []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(rec))
	for i, name := range rec {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

// ReadCropGroups parses the crop-group membership table. Rows whose
// mapping note is "unmapped" are excluded; codes are whitespace-trimmed
// and upper-cased; rows with an empty group code are rejected; rows
// with no code in the selected theme column are skipped.
func ReadCropGroups(r io.Reader, family string) (CropGroups, error) {
	col := themeColumn(family)
	cr := csv.NewReader(r)
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("gaezcal: reading crop mapping: %w", err)
	}
	if len(recs) < 2 {
		return nil, fmt.Errorf("gaezcal: crop mapping has no data rows")
	}
	idx, err := csvHeader(recs[0], "theme6_code", "mapping_note", col)
	if err != nil {
		return nil, fmt.Errorf("gaezcal: crop mapping: %w", err)
	}

	members := make(map[string]map[string]bool)
	for n, rec := range recs[1:] {
		if strings.EqualFold(strings.TrimSpace(rec[idx["mapping_note"]]), "unmapped") {
			continue
		}
		crop := strings.ToUpper(strings.TrimSpace(rec[idx[col]]))
		if crop == "" {
			continue // crop has no code under this theme
		}
		group := strings.ToUpper(strings.TrimSpace(rec[idx["theme6_code"]]))
		if group == "" {
			return nil, fmt.Errorf("gaezcal: crop mapping row %d: empty theme6_code for crop %s", n+2, crop)
		}
		if members[group] == nil {
			members[group] = make(map[string]bool)
		}
		members[group][crop] = true
	}

	groups := make(CropGroups, len(members))
	for g, set := range members {
		crops := make([]string, 0, len(set))
		for c := range set {
			crops = append(crops, c)
		}
		sort.Strings(crops)
		groups[g] = crops
	}
	return groups, nil
}

// CalorieFactors maps a crop group code to its calorie yield factor in
// kcal per kilogram, unit-scaled to match t/ha yields. Read-only after
// load.
type CalorieFactors map[string]float64

// calorieScale converts the source table's calorie units to kcal/kg
// matching t/ha yield rasters. Preserved from the upstream data
// pipeline; confirm with the data owner before changing.
const calorieScale = 10

// ReadCalorieFactors parses the calorie table, keeping only grain-type
// rows and dropping the FRT group, which has too few members and too
// wide a calorie spread to average meaningfully.
func ReadCalorieFactors(r io.Reader) (CalorieFactors, error) {
	cr := csv.NewReader(r)
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("gaezcal: reading calorie mapping: %w", err)
	}
	if len(recs) < 2 {
		return nil, fmt.Errorf("gaezcal: calorie mapping has no data rows")
	}
	idx, err := csvHeader(recs[0], "gaez_crop_code", "crop_type", "cal_yld")
	if err != nil {
		return nil, fmt.Errorf("gaezcal: calorie mapping: %w", err)
	}

	factors := make(CalorieFactors)
	for n, rec := range recs[1:] {
		if strings.TrimSpace(rec[idx["crop_type"]]) != "grain" {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(rec[idx["gaez_crop_code"]]))
		if code == "" {
			return nil, fmt.Errorf("gaezcal: calorie mapping row %d: empty gaez_crop_code", n+2)
		}
		if code == "FRT" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["cal_yld"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("gaezcal: calorie mapping row %d (%s): parsing cal_yld: %w", n+2, code, err)
		}
		factors[code] = v * calorieScale
	}
	return factors, nil
}

// Groups returns the group codes in sorted order.
func (c CalorieFactors) Groups() []string {
	groups := make([]string, 0, len(c))
	for g := range c {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// ReadCropGroupsFile and ReadCalorieFactorsFile load the static lookup
// tables from local CSV files.
func ReadCropGroupsFile(path, family string) (CropGroups, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gaezcal: opening crop mapping: %w", err)
	}
	defer f.Close()
	return ReadCropGroups(f, family)
}

func ReadCalorieFactorsFile(path string) (CalorieFactors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gaezcal: opening calorie mapping: %w", err)
	}
	defer f.Close()
	return ReadCalorieFactors(f)
}
