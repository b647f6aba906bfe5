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
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

// writeTestRaster stores r under key in the directory backing a test
// bucket.
func writeTestRaster(t *testing.T, dir, key string, r *Raster, units string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, r, units); err != nil {
		t.Fatal(err)
	}
}

func testBucket(t *testing.T, dir string) *blob.Bucket {
	t.Helper()
	b, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := testGrid(t, 2, 3)
	r := Zeros("yield", g)
	copy(r.Data.Elements, []float64{1, 2, 3, 4, math.NaN(), 6})

	key, err := RasterKey("RES06-HAR", "", "", "", "MAIZ", "WSI")
	if err != nil {
		t.Fatal(err)
	}
	writeTestRaster(t, dir, key, r, "ha")

	l := NewLoader(testBucket(t, dir))
	got, err := l.Load(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "yield" {
		t.Errorf("name = %s, want yield", got.Name)
	}
	if !got.Grid.Compatible(g) {
		t.Errorf("grid %+v not compatible with original %+v", got.Grid, g)
	}
	for i, want := range r.Data.Elements {
		v := got.Data.Elements[i]
		if math.IsNaN(want) != math.IsNaN(v) || (!math.IsNaN(want) && v != want) {
			t.Errorf("element %d = %g, want %g", i, v, want)
		}
	}
}

func TestLoadMissingKey(t *testing.T) {
	l := NewLoader(testBucket(t, t.TempDir()))
	_, err := l.Load(context.Background(), "RES06-HAR/GAEZ-V5.RES06-HAR.MAIZ.WSI.nc")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("want LoadError, got %v", err)
	}
	if le.Kind != SourceUnavailable {
		t.Errorf("kind = %v, want %v", le.Kind, SourceUnavailable)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	const key = "RES06-HAR/garbage.nc"
	path := filepath.Join(dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("this is not a NetCDF file"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(testBucket(t, dir))
	_, err := l.Load(context.Background(), key)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("want LoadError, got %v", err)
	}
	if le.Kind != SourceMalformed {
		t.Errorf("kind = %v, want %v", le.Kind, SourceMalformed)
	}
}

func TestLoadDiskCache(t *testing.T) {
	dir := t.TempDir()
	g := testGrid(t, 2, 2)
	r := Zeros("x", g)
	copy(r.Data.Elements, []float64{1, 2, 3, 4})
	key, err := AreaKey("WHE", AreaIrrigated)
	if err != nil {
		t.Fatal(err)
	}
	writeTestRaster(t, dir, key, r, "ha")

	l := NewLoader(testBucket(t, dir))
	l.DiskCachePath = filepath.Join(t.TempDir(), "cache")
	for i := 0; i < 2; i++ {
		got, err := l.Load(context.Background(), key)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		for j, want := range r.Data.Elements {
			if got.Data.Elements[j] != want {
				t.Errorf("load %d element %d = %g, want %g", i, j, got.Data.Elements[j], want)
			}
		}
	}
}

func TestRasterGobRoundTrip(t *testing.T) {
	g := testGrid(t, 2, 2)
	r := Zeros("round_trip", g)
	copy(r.Data.Elements, []float64{1.5, 0, math.NaN(), -3})

	b, err := marshalRaster(r)
	if err != nil {
		t.Fatal(err)
	}
	v, err := unmarshalRaster(b)
	if err != nil {
		t.Fatal(err)
	}
	got := v.(*Raster)
	if got.Name != r.Name || !got.Grid.Compatible(r.Grid) {
		t.Errorf("got %s %+v, want %s %+v", got.Name, got.Grid, r.Name, r.Grid)
	}
	for i, want := range r.Data.Elements {
		v := got.Data.Elements[i]
		if math.IsNaN(want) != math.IsNaN(v) || (!math.IsNaN(want) && v != want) {
			t.Errorf("element %d = %g, want %g", i, v, want)
		}
	}
}
