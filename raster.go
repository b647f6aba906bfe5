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
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// LongLat is the spatial reference of GAEZ v5 source rasters.
const LongLat = "+proj=longlat +datum=WGS84 +no_defs"

// Transform is a six-coefficient affine transform from cell indices to
// projected coordinates, in GDAL coefficient order:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
//
// where (col, row) is the upper-left corner of the cell.
type Transform [6]float64

// Center returns the projected coordinates of the center of cell
// (row, col).
func (t Transform) Center(row, col int) (x, y float64) {
	c, r := float64(col)+0.5, float64(row)+0.5
	return t[0] + c*t[1] + r*t[2], t[3] + c*t[4] + r*t[5]
}

// Index returns the (row, col) indices of the cell containing the
// projected point (x, y). The result may lie outside the grid extent;
// callers are responsible for bounds checks.
func (t Transform) Index(x, y float64) (row, col int) {
	det := t[1]*t[5] - t[2]*t[4]
	dx, dy := x-t[0], y-t[3]
	c := (dx*t[5] - dy*t[2]) / det
	r := (dy*t[1] - dx*t[4]) / det
	return int(math.Floor(r)), int(math.Floor(c))
}

// Grid describes the spatial indexing of a raster: a spatial reference,
// an affine transform, and a shape of Ny rows by Nx columns.
type Grid struct {
	SR        *proj.SR
	Proj4     string // the Proj4 string SR was parsed from
	Transform Transform
	Ny, Nx    int
}

// NewGrid creates a Grid from a Proj4 spatial reference definition.
func NewGrid(proj4 string, t Transform, ny, nx int) (Grid, error) {
	sr, err := proj.Parse(proj4)
	if err != nil {
		return Grid{}, fmt.Errorf("gaezcal: parsing grid projection %q: %w", proj4, err)
	}
	return Grid{SR: sr, Proj4: proj4, Transform: t, Ny: ny, Nx: nx}, nil
}

// Compatible reports whether two grids have equal spatial references,
// affine transforms, and shapes, the precondition for direct
// element-wise arithmetic.
func (g Grid) Compatible(o Grid) bool {
	const ulp = 3
	return g.Ny == o.Ny && g.Nx == o.Nx &&
		g.Transform == o.Transform &&
		g.SR.Equal(o.SR, ulp)
}

// Bounds returns the grid extent in projected coordinates.
func (g Grid) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, rc := range [4][2]int{{0, 0}, {0, g.Nx}, {g.Ny, 0}, {g.Ny, g.Nx}} {
		c, r := float64(rc[1]), float64(rc[0])
		x := g.Transform[0] + c*g.Transform[1] + r*g.Transform[2]
		y := g.Transform[3] + c*g.Transform[4] + r*g.Transform[5]
		b.Extend(geom.Point{X: x, Y: y}.Bounds())
	}
	return b
}

// Raster is an immutable 2-D gridded variable. Nodata cells hold NaN.
// Transformations produce new Raster values; Data is never mutated
// after construction.
type Raster struct {
	Name string
	Grid Grid
	Data *sparse.DenseArray
}

// NewRaster creates a raster, checking that the data shape matches the
// grid shape.
func NewRaster(name string, g Grid, data *sparse.DenseArray) (*Raster, error) {
	if len(data.Shape) != 2 || data.Shape[0] != g.Ny || data.Shape[1] != g.Nx {
		return nil, fmt.Errorf("gaezcal: raster %s: data shape %v does not match grid %d×%d",
			name, data.Shape, g.Ny, g.Nx)
	}
	return &Raster{Name: name, Grid: g, Data: data}, nil
}

// Zeros returns an all-zero raster on grid g.
func Zeros(name string, g Grid) *Raster {
	return &Raster{Name: name, Grid: g, Data: sparse.ZerosDense(g.Ny, g.Nx)}
}

// WithName returns a raster sharing the receiver's grid and data under
// a new name.
func (r *Raster) WithName(name string) *Raster {
	return &Raster{Name: name, Grid: r.Grid, Data: r.Data}
}

// Scale returns a new raster with every cell multiplied by v.
func (r *Raster) Scale(v float64) *Raster {
	d := r.Data.Copy()
	d.Scale(v)
	return &Raster{Name: r.Name, Grid: r.Grid, Data: d}
}

// Mul returns the element-wise product of two compatible rasters.
// NaN in either operand yields NaN.
func (r *Raster) Mul(o *Raster) (*Raster, error) {
	if !r.Grid.Compatible(o.Grid) {
		return nil, fmt.Errorf("gaezcal: multiplying %s by %s: incompatible grids", r.Name, o.Name)
	}
	d := sparse.ZerosDense(r.Grid.Ny, r.Grid.Nx)
	for i, v := range r.Data.Elements {
		d.Elements[i] = v * o.Data.Elements[i]
	}
	return &Raster{Name: r.Name, Grid: r.Grid, Data: d}, nil
}
