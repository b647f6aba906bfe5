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
	"context"
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// SumGroupCalories reduces per-group calorie rasters across all crop
// groups into one output raster for the request. Groups are aggregated
// in sorted group-code order; the first group's grid is the reference
// for the sum. Group-level errors (including harvested-area load
// failures) propagate to the caller; the caller may skip this one
// output and continue with other requests.
func (a *Aggregator) SumGroupCalories(ctx context.Context, groups CropGroups, factors CalorieFactors, req Request) (*Raster, error) {
	var layers []*Raster
	for _, group := range factors.Groups() {
		layer, err := a.GroupCalories(ctx, GroupSpec{
			Group:     group,
			Members:   groups[group],
			KcalPerKg: factors[group],
		}, req)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("gaezcal: %s: no crop groups to aggregate", req.Name())
	}
	return sumSkipNA(req.Name(), layers)
}

// SumGroupAreas reduces per-group harvested-area rasters across the
// given crop groups for one water regime. Groups whose area raster is
// unavailable or malformed are skipped with a warning; if every group
// fails the result is a NoValidGroupsError.
func (a *Aggregator) SumGroupAreas(ctx context.Context, groups []string, water string) (*Raster, error) {
	areaWater, err := AreaWaterCode(water)
	if err != nil {
		return nil, err
	}
	var layers []*Raster
	for _, group := range groups {
		key, err := AreaKey(group, areaWater)
		if err != nil {
			return nil, err
		}
		layer, err := a.Loader.Load(ctx, key)
		if err != nil {
			a.Log.WithFields(logrus.Fields{
				"group": group,
				"water": water,
			}).Warnf("skipping group: %v", err)
			continue
		}
		layers = append(layers, layer)
	}
	if len(layers) == 0 {
		return nil, &NoValidGroupsError{WaterCode: water}
	}
	return sumSkipNA(fmt.Sprintf("har_area_%s", water), layers)
}

// sumSkipNA sums rasters cell-wise onto the first raster's grid,
// treating NaN contributions as zero. A cell is NaN in the output only
// if it is NaN in every layer.
func sumSkipNA(name string, layers []*Raster) (*Raster, error) {
	ref := layers[0].Grid
	sum := sparse.ZerosDense(ref.Ny, ref.Nx)
	present := make([]bool, ref.Ny*ref.Nx)
	for _, l := range layers {
		l, err := Align(ref, l)
		if err != nil {
			return nil, err
		}
		for i, v := range l.Data.Elements {
			if math.IsNaN(v) {
				continue
			}
			sum.Elements[i] += v
			present[i] = true
		}
	}
	for i, p := range present {
		if !p {
			sum.Elements[i] = math.NaN()
		}
	}
	return &Raster{Name: name, Grid: ref, Data: sum}, nil
}
