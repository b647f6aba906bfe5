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
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ctessum/sparse"
	"github.com/cenkalti/backoff"
	"github.com/ctessum/cdf"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Loader fetches rasters from blob storage by key and decodes them to
// Raster values. Loads are deduplicated and cached; fetches use HTTP
// range reads so that reading metadata or a subset of a large object
// does not require downloading the whole object.
type Loader struct {
	// Bucket is the blob store holding the source rasters.
	Bucket *blob.Bucket

	// Workers is the number of concurrent load workers. The default is 1.
	Workers int

	// MemCacheEntries is the number of decoded rasters to hold in the
	// in-memory cache. The default is 50.
	MemCacheEntries int

	// DiskCachePath, if nonempty, specifies a directory for a persistent
	// second-tier cache of decoded rasters.
	DiskCachePath string

	Log *logrus.Logger

	cache *requestcache.Cache
	once  sync.Once
}

// NewLoader creates a Loader reading from the given bucket.
func NewLoader(bucket *blob.Bucket) *Loader {
	return &Loader{
		Bucket:          bucket,
		Workers:         1,
		MemCacheEntries: 50,
		Log:             logrus.StandardLogger(),
	}
}

func (l *Loader) init() {
	if l.DiskCachePath == "" {
		l.cache = requestcache.NewCache(l.load, l.Workers,
			requestcache.Deduplicate(), requestcache.Memory(l.MemCacheEntries))
		return
	}
	l.cache = requestcache.NewCache(l.load, l.Workers,
		requestcache.Deduplicate(), requestcache.Memory(l.MemCacheEntries),
		requestcache.Disk(l.DiskCachePath, marshalRaster, unmarshalRaster))
}

// Load fetches and decodes the raster stored under key. It returns a
// *LoadError with kind SourceUnavailable when the key does not resolve
// to bytes and SourceMalformed when the bytes do not decode to a valid
// 2-D raster.
func (l *Loader) Load(ctx context.Context, key string) (*Raster, error) {
	l.once.Do(l.init)
	req := l.cache.NewRequest(ctx, key, key)
	v, err := req.Result()
	if err != nil {
		return nil, err
	}
	return v.(*Raster), nil
}

// load is the requestcache worker which performs the fetch and decode.
// Transient fetch errors are retried with exponential backoff; missing
// keys and undecodable bytes are permanent.
func (l *Loader) load(ctx context.Context, payload interface{}) (interface{}, error) {
	key := payload.(string)
	var r *Raster
	op := func() error {
		exists, err := l.Bucket.Exists(ctx, key)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return backoff.Permanent(&LoadError{Key: key, Kind: SourceUnavailable, Err: err})
			}
			return err // transient; retry
		}
		if !exists {
			return backoff.Permanent(&LoadError{Key: key, Kind: SourceUnavailable,
				Err: errors.New("no such key")})
		}
		r, err = decodeRaster(key, &blobReaderAt{ctx: ctx, bucket: l.Bucket, key: key})
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	err := backoff.RetryNotify(op,
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3),
		func(err error, d time.Duration) {
			l.Log.WithField("key", key).Warnf("retrying load in %v: %v", d, err)
		})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// blobReaderAt adapts a blob bucket object to io.ReaderAt using range
// reads, and satisfies cdf.ReaderWriterAt for read-only use.
type blobReaderAt struct {
	ctx    context.Context
	bucket *blob.Bucket
	key    string
}

func (b *blobReaderAt) ReadAt(p []byte, off int64) (int, error) {
	r, err := b.bucket.NewRangeReader(b.ctx, b.key, off, int64(len(p)), nil)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n, err := io.ReadFull(r, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (b *blobReaderAt) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("gaezcal: blob %s is read-only", b.key)
}

// decodeRaster decodes a COARDS-compliant NetCDF raster: the single 2-D
// floating-point variable with (lat, lon) or (y, x) dimensions,
// squeezed to two spatial dimensions, normalized to nodata-as-NaN, with
// the affine transform derived from the coordinate vectors and the
// spatial reference from the global proj4 attribute.
func decodeRaster(key string, ra cdf.ReaderWriterAt) (*Raster, error) {
	nc, err := cdf.Open(ra)
	if err != nil {
		return nil, &LoadError{Key: key, Kind: SourceMalformed, Err: err}
	}

	varName, yDim, xDim := rasterVariable(nc)
	if varName == "" {
		return nil, &LoadError{Key: key, Kind: SourceMalformed,
			Err: errors.New("no 2-D floating-point variable found")}
	}

	data, err := readFloatVar(nc, varName)
	if err != nil {
		return nil, &LoadError{Key: key, Kind: SourceMalformed, Err: err}
	}
	if fv := nc.Header.GetAttribute(varName, "_FillValue"); fv != nil {
		if nodata, ok := attrFloat(fv); ok {
			for i, v := range data {
				if v == nodata {
					data[i] = math.NaN()
				}
			}
		}
	}

	ys, err := readFloatVar(nc, yDim)
	if err != nil {
		return nil, &LoadError{Key: key, Kind: SourceMalformed, Err: err}
	}
	xs, err := readFloatVar(nc, xDim)
	if err != nil {
		return nil, &LoadError{Key: key, Kind: SourceMalformed, Err: err}
	}
	if len(ys) < 2 || len(xs) < 2 || len(ys)*len(xs) != len(data) {
		return nil, &LoadError{Key: key, Kind: SourceMalformed,
			Err: fmt.Errorf("inconsistent dimensions: %d×%d coordinates for %d cells",
				len(ys), len(xs), len(data))}
	}

	proj4 := LongLat
	if a := nc.Header.GetAttribute("", "proj4"); a != nil {
		if s, ok := a.(string); ok && s != "" {
			proj4 = s
		}
	}
	dx, dy := xs[1]-xs[0], ys[1]-ys[0]
	g, err := NewGrid(proj4,
		Transform{xs[0] - dx/2, dx, 0, ys[0] - dy/2, 0, dy},
		len(ys), len(xs))
	if err != nil {
		return nil, &LoadError{Key: key, Kind: SourceMalformed, Err: err}
	}

	arr := sparse.ZerosDense(g.Ny, g.Nx)
	copy(arr.Elements, data)
	return &Raster{Name: varName, Grid: g, Data: arr}, nil
}

// rasterVariable finds the data variable: the first variable with
// exactly two dimensions named (lat, lon) or (y, x).
func rasterVariable(nc *cdf.File) (name, yDim, xDim string) {
	for _, v := range nc.Header.Variables() {
		dims := nc.Header.Dimensions(v)
		if len(dims) != 2 {
			continue
		}
		if (dims[0] == "lat" && dims[1] == "lon") || (dims[0] == "y" && dims[1] == "x") {
			return v, dims[0], dims[1]
		}
	}
	return "", "", ""
}

// readFloatVar reads a float32 or float64 variable in full, widening
// to float64.
func readFloatVar(nc *cdf.File, v string) ([]float64, error) {
	if len(nc.Header.Lengths(v)) == 0 {
		return nil, fmt.Errorf("variable %s not in file", v)
	}
	r := nc.Reader(v, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %w", v, err)
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		data := make([]float64, len(b))
		for i, v := range b {
			data[i] = float64(v)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("variable %s is not floating point", v)
	}
}

func attrFloat(a interface{}) (float64, bool) {
	switch v := a.(type) {
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// rasterGob is the serialized form of a Raster for the disk cache tier.
// The spatial reference round-trips through its Proj4 definition.
type rasterGob struct {
	Name      string
	Proj4     string
	Transform Transform
	Ny, Nx    int
	Elements  []float64
}

func marshalRaster(v interface{}) ([]byte, error) {
	r := v.(*Raster)
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(rasterGob{
		Name:      r.Name,
		Proj4:     r.Grid.Proj4,
		Transform: r.Grid.Transform,
		Ny:        r.Grid.Ny,
		Nx:        r.Grid.Nx,
		Elements:  r.Data.Elements,
	})
	return buf.Bytes(), err
}

func unmarshalRaster(b []byte) (interface{}, error) {
	var g rasterGob
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&g); err != nil {
		return nil, err
	}
	grid, err := NewGrid(g.Proj4, g.Transform, g.Ny, g.Nx)
	if err != nil {
		return nil, err
	}
	arr := sparse.ZerosDense(g.Ny, g.Nx)
	copy(arr.Elements, g.Elements)
	return &Raster{Name: g.Name, Grid: grid, Data: arr}, nil
}
