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

	"github.com/ctessum/sparse"
	"github.com/ctessum/geom/proj"
)

// Align puts raster r on the reference grid. If r's grid is already
// compatible with ref, r is returned unchanged; otherwise the raster is
// resampled onto ref with nearest-neighbor lookup, transforming
// coordinates between spatial references where they differ. Reference
// cells that fall outside r, or on nodata in r, are NaN in the result.
// This is the sole mechanism by which rasters of differing provenance
// become arithmetic-compatible.
func Align(ref Grid, r *Raster) (*Raster, error) {
	if r.Grid.Compatible(ref) {
		return r, nil
	}
	const ulp = 3
	var ct proj.Transformer
	if !ref.SR.Equal(r.Grid.SR, ulp) {
		var err error
		ct, err = ref.SR.NewTransform(r.Grid.SR)
		if err != nil {
			return nil, fmt.Errorf("gaezcal: aligning %s: %w", r.Name, err)
		}
	}

	out := sparse.ZerosDense(ref.Ny, ref.Nx)
	for row := 0; row < ref.Ny; row++ {
		for col := 0; col < ref.Nx; col++ {
			x, y := ref.Transform.Center(row, col)
			if ct != nil {
				var err error
				x, y, err = ct(x, y)
				if err != nil {
					// Point has no image in the source projection.
					out.Set(math.NaN(), row, col)
					continue
				}
			}
			rr, cc := r.Grid.Transform.Index(x, y)
			if rr < 0 || rr >= r.Grid.Ny || cc < 0 || cc >= r.Grid.Nx {
				out.Set(math.NaN(), row, col)
				continue
			}
			out.Set(r.Data.Get(rr, cc), row, col)
		}
	}
	return &Raster{Name: r.Name, Grid: ref, Data: out}, nil
}
