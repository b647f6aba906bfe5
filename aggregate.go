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

// Request identifies one output raster to produce: a calorie-yield
// aggregation for one variable family, time period, climate model,
// scenario, and water regime.
type Request struct {
	Family   string
	Period   string
	Model    string
	Scenario string
	Water    string
}

// Name returns the deterministic output name for the request.
func (r Request) Name() string {
	return fmt.Sprintf("cal_yld_%s_%s_%s_%s_%s", r.Family, r.Period, r.Model, r.Scenario, r.Water)
}

// GroupSpec describes one crop group to aggregate: its Theme-6 code,
// its member crop codes in order, and its calorie factor.
type GroupSpec struct {
	Group     string
	Members   []string
	KcalPerKg float64
}

// Aggregator combines per-crop source rasters into group- and
// run-level outputs.
type Aggregator struct {
	Loader *Loader
	Log    *logrus.Logger
}

// NewAggregator creates an Aggregator reading through the given Loader.
func NewAggregator(l *Loader) *Aggregator {
	return &Aggregator{Loader: l, Log: logrus.StandardLogger()}
}

// GroupCalories produces the per-cell calorie raster for one crop group
// under one request:
//
//	mean(member yields, skipna) × harvested area × kcal factor
//
// The mean is unweighted across the member yield rasters that loaded
// successfully; members whose source is unavailable or malformed are
// skipped with a warning. The first successfully loaded member defines
// the reference grid, and the group harvested-area raster and remaining
// members are aligned to it. If no member loads, the result is an
// all-zero raster on the harvested-area grid. A harvested-area load
// failure is fatal for the group and propagates.
func (a *Aggregator) GroupCalories(ctx context.Context, spec GroupSpec, req Request) (*Raster, error) {
	areaWater, err := AreaWaterCode(req.Water)
	if err != nil {
		return nil, err
	}
	areaKey, err := AreaKey(spec.Group, areaWater)
	if err != nil {
		return nil, err
	}
	area, err := a.Loader.Load(ctx, areaKey)
	if err != nil {
		return nil, fmt.Errorf("gaezcal: group %s: loading harvested area: %w", spec.Group, err)
	}

	// Phase 1: attempt every member load, keeping successes in member
	// order.
	var yields []*Raster
	for _, crop := range spec.Members {
		key, err := RasterKey(req.Family, req.Period, req.Model, req.Scenario, crop, req.Water)
		if err != nil {
			return nil, err
		}
		y, err := a.Loader.Load(ctx, key)
		if err != nil {
			a.Log.WithFields(logrus.Fields{
				"group": spec.Group,
				"crop":  crop,
				"water": req.Water,
			}).Warnf("skipping member: %v", err)
			continue
		}
		yields = append(yields, y)
	}

	name := "kcal_" + spec.Group
	if len(yields) == 0 {
		// Structurally absent yield series; degraded but defined.
		return Zeros(name, area.Grid), nil
	}

	// Phase 2: the first success defines the reference grid.
	ref := yields[0].Grid
	for i, y := range yields[1:] {
		if yields[i+1], err = Align(ref, y); err != nil {
			return nil, err
		}
	}
	if area, err = Align(ref, area); err != nil {
		return nil, err
	}

	mean := meanSkipNA(yields)
	out := sparse.ZerosDense(ref.Ny, ref.Nx)
	for i, m := range mean.Elements {
		out.Elements[i] = m * area.Data.Elements[i] * spec.KcalPerKg
	}
	return &Raster{Name: name, Grid: ref, Data: out}, nil
}

// meanSkipNA averages the given compatible rasters cell-wise, ignoring
// NaN contributions. A cell where every raster is NaN stays NaN.
func meanSkipNA(layers []*Raster) *sparse.DenseArray {
	g := layers[0].Grid
	sum := sparse.ZerosDense(g.Ny, g.Nx)
	count := make([]int, g.Ny*g.Nx)
	for _, l := range layers {
		for i, v := range l.Data.Elements {
			if math.IsNaN(v) {
				continue
			}
			sum.Elements[i] += v
			count[i]++
		}
	}
	for i := range sum.Elements {
		if count[i] == 0 {
			sum.Elements[i] = math.NaN()
		} else {
			sum.Elements[i] /= float64(count[i])
		}
	}
	return sum
}
