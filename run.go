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
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// ScenarioConfig enumerates the time periods and climate models
// available under one scenario.
type ScenarioConfig struct {
	Periods []string
	Models  []string
}

// RunConfig enumerates the recognized options for a pipeline run. It
// is constructed once per run and never mutated.
type RunConfig struct {
	// YieldVariables are the yield variable families to process.
	YieldVariables []string

	// Scenarios maps each scenario to its valid period/model
	// combinations.
	Scenarios map[string]ScenarioConfig

	// WaterCodes are the yield water/input regime codes to process.
	WaterCodes []string

	// CropMappingFile and CalorieMappingFile are the static lookup
	// tables defining crop-group membership and calorie factors.
	CropMappingFile    string
	CalorieMappingFile string

	// OutputDir is the directory output rasters are written to.
	OutputDir string

	// CacheDir, if nonempty, is a directory for a persistent cache of
	// decoded source rasters.
	CacheDir string

	// Workers is the number of concurrent raster-load workers.
	Workers int

	// Overwrite re-creates outputs that already exist.
	Overwrite bool
}

// DefaultRunConfig returns the standard GAEZ v5 run: the RES05-YCX
// yield family over the historical and SSP scenarios under high-input
// water regimes. Low-input regimes exist for only some crops.
func DefaultRunConfig() RunConfig {
	historical := ScenarioConfig{
		Periods: []string{"HP8100", "HP0120"},
		Models:  []string{"AGERA5"},
	}
	future := ScenarioConfig{
		Periods: []string{"FP2140", "FP4160", "FP6180", "FP8100"},
		Models:  []string{"ENSEMBLE"},
	}
	return RunConfig{
		YieldVariables: []string{"RES05-YCX"},
		Scenarios: map[string]ScenarioConfig{
			"HIST":   historical,
			"SSP126": future,
			"SSP370": future,
			"SSP585": future,
		},
		WaterCodes: []string{HighInputIrrigated, HighInputRainfed},
		OutputDir:  "outputs",
	}
}

// Requests enumerates the aggregation requests for one yield variable
// family in deterministic (sorted-scenario) order.
func (c RunConfig) Requests(family string) []Request {
	scenarios := make([]string, 0, len(c.Scenarios))
	for s := range c.Scenarios {
		scenarios = append(scenarios, s)
	}
	sort.Strings(scenarios)

	var reqs []Request
	for _, scenario := range scenarios {
		sc := c.Scenarios[scenario]
		for _, period := range sc.Periods {
			for _, model := range sc.Models {
				for _, water := range c.WaterCodes {
					reqs = append(reqs, Request{
						Family:   family,
						Period:   period,
						Model:    model,
						Scenario: scenario,
						Water:    water,
					})
				}
			}
		}
	}
	return reqs
}

// Pipeline runs the calorie-yield and harvested-area aggregations for
// a RunConfig against one raster bucket.
type Pipeline struct {
	Config RunConfig
	Agg    *Aggregator
	Log    *logrus.Logger
}

// NewPipeline creates a Pipeline reading source rasters from bucket.
func NewPipeline(cfg RunConfig, bucket *blob.Bucket, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	loader := NewLoader(bucket)
	loader.Log = log
	loader.DiskCachePath = cfg.CacheDir
	if cfg.Workers > 0 {
		loader.Workers = cfg.Workers
	}
	agg := NewAggregator(loader)
	agg.Log = log
	return &Pipeline{Config: cfg, Agg: agg, Log: log}
}

// Run produces one calorie-yield raster per aggregation request,
// skipping outputs that already exist unless Overwrite is set.
// Requests are independent: a failed request is logged and the
// remaining requests still run. Run returns an error only when the
// run cannot be set up at all.
func (p *Pipeline) Run(ctx context.Context) error {
	factors, err := ReadCalorieFactorsFile(p.Config.CalorieMappingFile)
	if err != nil {
		return err
	}
	for _, family := range p.Config.YieldVariables {
		groups, err := ReadCropGroupsFile(p.Config.CropMappingFile, family)
		if err != nil {
			return err
		}
		outDir := filepath.Join(p.Config.OutputDir, family)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("gaezcal: creating output directory: %w", err)
		}

		for _, req := range p.Config.Requests(family) {
			outPath := filepath.Join(outDir, req.Name()+".nc")
			if !p.Config.Overwrite {
				if _, err := os.Stat(outPath); err == nil {
					p.Log.Infof("exists, skipping: %s", outPath)
					continue
				}
			}
			p.Log.Infof("building %s", req.Name())
			total, err := p.Agg.SumGroupCalories(ctx, groups, factors, req)
			if err != nil {
				p.Log.Errorf("failed %s: %v", req.Name(), err)
				continue
			}
			if err := Save(outPath, total, "kcal"); err != nil {
				p.Log.Errorf("failed %s: %v", req.Name(), err)
				continue
			}
			p.Log.Infof("saved %s", outPath)
		}
	}
	return nil
}

// RunArea produces one total harvested-area raster per water regime,
// summed across all crop groups, with the same skip-if-exists and
// continue-on-failure behavior as Run.
func (p *Pipeline) RunArea(ctx context.Context) error {
	factors, err := ReadCalorieFactorsFile(p.Config.CalorieMappingFile)
	if err != nil {
		return err
	}
	groups := factors.Groups()
	outDir := filepath.Join(p.Config.OutputDir, "har_area")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("gaezcal: creating output directory: %w", err)
	}
	p.Log.Infof("processing %d crop groups: %v", len(groups), groups)

	for _, water := range p.Config.WaterCodes {
		name := fmt.Sprintf("har_area_%s", water)
		outPath := filepath.Join(outDir, name+".nc")
		if !p.Config.Overwrite {
			if _, err := os.Stat(outPath); err == nil {
				p.Log.Infof("exists, skipping: %s", outPath)
				continue
			}
		}
		p.Log.Infof("building %s", name)
		total, err := p.Agg.SumGroupAreas(ctx, groups, water)
		if err != nil {
			p.Log.Errorf("failed %s: %v", name, err)
			continue
		}
		if err := Save(outPath, total, "ha"); err != nil {
			p.Log.Errorf("failed %s: %v", name, err)
			continue
		}
		p.Log.Infof("saved %s", outPath)
	}
	return nil
}
