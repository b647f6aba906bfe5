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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
)

// BuildDataset collects the rasters previously written to dir whose
// file names match prefix_*.nc into one multi-variable NetCDF file at
// outPath, one variable per input file. The first file (sorted by
// name) defines the reference grid and the rest are aligned to it.
// Negative values are clamped to zero when clampNegatives is set; the
// sources are sparse and negatives are encoding artifacts.
func BuildDataset(dir, prefix, outPath, units string, clampNegatives bool) error {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"_*.nc"))
	if err != nil {
		return fmt.Errorf("gaezcal: globbing dataset inputs: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("gaezcal: no files matching %s_*.nc in %s", prefix, dir)
	}
	sort.Strings(files)

	var rasters []*Raster
	var ref Grid
	for i, path := range files {
		r, err := loadFile(path)
		if err != nil {
			return err
		}
		if i == 0 {
			ref = r.Grid
		} else if r, err = Align(ref, r); err != nil {
			return err
		}
		if clampNegatives {
			d := sparse.ZerosDense(ref.Ny, ref.Nx)
			for j, v := range r.Data.Elements {
				if v < 0 {
					v = 0
				}
				d.Elements[j] = v
			}
			r = &Raster{Name: r.Name, Grid: ref, Data: d}
		}
		stem := strings.TrimSuffix(filepath.Base(path), ".nc")
		rasters = append(rasters, r.WithName(stem))
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("gaezcal: creating dataset file: %w", err)
	}
	defer f.Close()
	if err := encodeRasters(f, rasters, units); err != nil {
		return fmt.Errorf("gaezcal: writing %s: %w", outPath, err)
	}
	return nil
}

// loadFile decodes a raster from a local NetCDF file.
func loadFile(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Key: path, Kind: SourceUnavailable, Err: err}
	}
	defer f.Close()
	return decodeRaster(path, f)
}
