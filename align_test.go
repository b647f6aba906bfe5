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
	"math"
	"testing"
)

func TestAlignIdentity(t *testing.T) {
	g := testGrid(t, 3, 3)
	r := Zeros("a", g)
	out, err := Align(g, r)
	if err != nil {
		t.Fatal(err)
	}
	if out != r {
		t.Error("aligning a compatible raster should return it unchanged")
	}
}

func TestAlignResample(t *testing.T) {
	// Source: one-degree cells covering [0,2]×[0,2].
	src, err := NewGrid(LongLat, Transform{0, 1, 0, 0, 0, 1}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	r := Zeros("a", src)
	copy(r.Data.Elements, []float64{1, 2, 3, 4})

	// Reference: half-degree cells covering the same extent. Each source
	// cell should map onto a 2×2 block of reference cells.
	ref := testGrid(t, 4, 4)
	out, err := Align(ref, r)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	for i, w := range want {
		if out.Data.Elements[i] != w {
			t.Errorf("element %d = %g, want %g", i, out.Data.Elements[i], w)
		}
	}
	if !out.Grid.Compatible(ref) {
		t.Error("aligned raster should be on the reference grid")
	}
}

func TestAlignOutOfExtent(t *testing.T) {
	// Source covers [0,1]×[0,1]; reference covers [0,2]×[0,2], so the
	// outer reference cells have no source image.
	src, err := NewGrid(LongLat, Transform{0, 0.5, 0, 0, 0, 0.5}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	r := Zeros("a", src)
	copy(r.Data.Elements, []float64{1, 2, 3, 4})

	ref, err := NewGrid(LongLat, Transform{0, 1, 0, 0, 0, 1}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Align(ref, r)
	if err != nil {
		t.Fatal(err)
	}
	// Reference cell (0,0) center (0.5,0.5) falls in source cell (1,1).
	if got := out.Data.Get(0, 0); got != 4 {
		t.Errorf("cell (0,0) = %g, want 4", got)
	}
	for _, rc := range [][2]int{{0, 1}, {1, 0}, {1, 1}} {
		if got := out.Data.Get(rc[0], rc[1]); !math.IsNaN(got) {
			t.Errorf("cell (%d,%d) = %g, want NaN", rc[0], rc[1], got)
		}
	}
}
