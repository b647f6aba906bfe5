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
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRequestsEnumeration(t *testing.T) {
	cfg := DefaultRunConfig()
	reqs := cfg.Requests("RES05-YCX")
	// HIST has 2 periods × 1 model; each SSP has 4 periods × 1 model;
	// everything is crossed with 2 water codes.
	want := (2 + 3*4) * 2
	if len(reqs) != want {
		t.Fatalf("got %d requests, want %d", len(reqs), want)
	}
	if reqs[0].Scenario != "HIST" {
		t.Errorf("first scenario = %s, want HIST", reqs[0].Scenario)
	}
	last := reqs[len(reqs)-1]
	if last.Scenario != "SSP585" {
		t.Errorf("last scenario = %s, want SSP585", last.Scenario)
	}
	for _, r := range reqs {
		if r.Family != "RES05-YCX" {
			t.Errorf("family = %s, want RES05-YCX", r.Family)
		}
	}
}

// writeRunFixtures creates the blob directory, mapping CSVs, and
// RunConfig for an end-to-end pipeline test with one crop group (BAN,
// member BANA, 39.4 kcal factor after unit scaling), yield 2.0, and
// harvested area 100.
func writeRunFixtures(t *testing.T) (RunConfig, string) {
	t.Helper()
	bucketDir := t.TempDir()
	g := testGrid(t, 2, 2)
	writeYield(t, bucketDir, "BANA", constRaster(t, "yield", g, 2.0))
	writeArea(t, bucketDir, "BAN", constRaster(t, "area", g, 100))

	cfgDir := t.TempDir()
	cropFile := filepath.Join(cfgDir, "crops.csv")
	if err := os.WriteFile(cropFile, []byte(
		"theme6_code,theme2_code,theme5_code,mapping_note\nBAN,BANA,BANA,mapped\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	calFile := filepath.Join(cfgDir, "calories.csv")
	if err := os.WriteFile(calFile, []byte(
		"gaez_crop_code,crop_type,cal_yld\nBAN,grain,3.94\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	return RunConfig{
		YieldVariables: []string{"RES05-YCX"},
		Scenarios: map[string]ScenarioConfig{
			"SSP370": {Periods: []string{"FP2140"}, Models: []string{"ENSEMBLE"}},
		},
		WaterCodes:         []string{HighInputIrrigated},
		CropMappingFile:    cropFile,
		CalorieMappingFile: calFile,
		OutputDir:          filepath.Join(cfgDir, "outputs"),
	}, bucketDir
}

func readOutput(t *testing.T, path string) *Raster {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := decodeRaster(path, f)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestPipelineRun(t *testing.T) {
	cfg, bucketDir := writeRunFixtures(t)
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	p := NewPipeline(cfg, testBucket(t, bucketDir), log)

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(cfg.OutputDir, "RES05-YCX",
		"cal_yld_RES05-YCX_FP2140_ENSEMBLE_SSP370_HILM.nc")
	got := readOutput(t, outPath)
	for i, v := range got.Data.Elements {
		if math.Abs(v-7880) > 1e-3 {
			t.Errorf("element %d = %g, want 7880", i, v)
		}
	}
}

func TestPipelineRunSkipsExisting(t *testing.T) {
	cfg, bucketDir := writeRunFixtures(t)
	outDir := filepath.Join(cfg.OutputDir, "RES05-YCX")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(outDir, "cal_yld_RES05-YCX_FP2140_ENSEMBLE_SSP370_HILM.nc")
	if err := os.WriteFile(outPath, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	p := NewPipeline(cfg, testBucket(t, bucketDir), log)
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "sentinel" {
		t.Error("existing output should not be overwritten without Overwrite")
	}

	// With Overwrite set the sentinel is replaced by a real raster.
	cfg.Overwrite = true
	p = NewPipeline(cfg, testBucket(t, bucketDir), log)
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := readOutput(t, outPath)
	if v := got.Data.Get(0, 0); math.Abs(v-7880) > 1e-3 {
		t.Errorf("cell (0,0) = %g, want 7880", v)
	}
}

func TestPipelineRunArea(t *testing.T) {
	cfg, bucketDir := writeRunFixtures(t)
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	p := NewPipeline(cfg, testBucket(t, bucketDir), log)

	if err := p.RunArea(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := readOutput(t, filepath.Join(cfg.OutputDir, "har_area", "har_area_HILM.nc"))
	for i, v := range got.Data.Elements {
		if v != 100 {
			t.Errorf("element %d = %g, want 100", i, v)
		}
	}
}
