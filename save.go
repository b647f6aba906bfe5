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
	"math"
	"os"
	"strings"

	"github.com/ctessum/cdf"
)

// SourceTag is the provenance attribute attached to every output.
const SourceTag = "GAEZ v5"

// Save writes the raster to path as a COARDS-style NetCDF file with a
// 32-bit floating point data variable, nodata-aware, tagged with unit
// and provenance metadata.
func Save(path string, r *Raster, units string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gaezcal: creating output file: %w", err)
	}
	defer f.Close()
	if err := encodeRasters(f, []*Raster{r}, units); err != nil {
		return fmt.Errorf("gaezcal: writing %s: %w", path, err)
	}
	return nil
}

// encodeRasters writes one or more rasters sharing a grid as variables
// of a single NetCDF file.
func encodeRasters(f cdf.ReaderWriterAt, rasters []*Raster, units string) error {
	g := rasters[0].Grid
	h := cdf.NewHeader([]string{"lat", "lon"}, []int{g.Ny, g.Nx})

	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "standard_name", "longitude")
	h.AddAttribute("lon", "units", "degrees_east")

	for _, r := range rasters {
		v := variableName(r.Name)
		h.AddVariable(v, []string{"lat", "lon"}, []float32{0})
		h.AddAttribute(v, "_FillValue", []float32{float32(math.NaN())})
		h.AddAttribute(v, "units", units)
		h.AddAttribute(v, "source", SourceTag)
	}
	h.AddAttribute("", "proj4", g.Proj4)
	h.AddAttribute("", "source", SourceTag)
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("defining output header: %v", err)
	}

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	lats, lons := make([]float64, g.Ny), make([]float64, g.Nx)
	for i := range lats {
		_, lats[i] = g.Transform.Center(i, 0)
	}
	for j := range lons {
		lons[j], _ = g.Transform.Center(0, j)
	}
	if err := writeVar(nc, "lat", []int{0}, []int{g.Ny}, lats); err != nil {
		return err
	}
	if err := writeVar(nc, "lon", []int{0}, []int{g.Nx}, lons); err != nil {
		return err
	}

	for _, r := range rasters {
		if !r.Grid.Compatible(g) {
			return fmt.Errorf("raster %s is not on the output grid", r.Name)
		}
		data := make([]float32, len(r.Data.Elements))
		for i, v := range r.Data.Elements {
			data[i] = float32(v)
		}
		if err := writeVar(nc, variableName(r.Name), []int{0, 0}, []int{g.Ny, g.Nx}, data); err != nil {
			return err
		}
	}
	return nil
}

func writeVar(nc *cdf.File, name string, begin, end []int, data interface{}) error {
	w := nc.Writer(name, begin, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing variable %s: %w", name, err)
	}
	return nil
}

// variableName converts a raster name to a legal NetCDF variable name.
func variableName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
