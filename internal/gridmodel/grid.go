// Package gridmodel implements the regular longitude/latitude grid spatial
// submodel (spec §4.4): bilinear interpolation over a dense nlon×nlat
// lattice, loaded from the binary cache when available or streamed from its
// source CSV otherwise.
package gridmodel

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/geocrust/defmodel/internal/csvschema"
	"github.com/geocrust/defmodel/internal/deformlist"
	"github.com/geocrust/defmodel/internal/dmerrors"
)

// Cache is the subset of the binary cache a Grid needs: a fingerprinted
// get/set over flat float64 arrays, keyed by logical path.
type Cache interface {
	Get(path, fingerprint string) ([]float64, bool)
	Set(path, fingerprint string, data []float64)
}

// Grid is a lazily-loaded regular lon/lat lattice.
type Grid struct {
	Name                             string
	GridFile                        string
	MinLon, MaxLon, MinLat, MaxLat   float64
	NLon, NLat                       int
	DLon, DLat                       float64
	Columns                          []int

	data   *deformlist.List
	loaded bool
}

// New validates the grid geometry and allocates its backing node array.
// name is used in error messages; gridFile is the source CSV's logical path
// (and cache key).
func New(name, gridFile string, minLon, maxLon, minLat, maxLat float64, nlon, nlat int, columns []int) (*Grid, error) {
	if nlon < 2 || nlat < 2 {
		return nil, dmerrors.NewDefinition("invalid number of grid rows or columns in deformation model definition for %s", name)
	}
	if maxLon < minLon {
		return nil, dmerrors.NewDefinition("invalid longitude range %v - %v in deformation model definition for %s", minLon, maxLon, name)
	}
	if maxLat < minLat {
		return nil, dmerrors.NewDefinition("invalid latitude range %v - %v in deformation model definition for %s", minLat, maxLat, name)
	}

	g := &Grid{
		Name: name, GridFile: gridFile,
		MinLon: minLon, MaxLon: maxLon, MinLat: minLat, MaxLat: maxLat,
		NLon: nlon, NLat: nlat,
		DLon: (maxLon - minLon) / float64(nlon-1),
		DLat: (maxLat - minLat) / float64(nlat-1),
		Columns: columns,
	}
	g.data = deformlist.New(columns, nlon*nlat)
	return g, nil
}

// Loaded reports whether the node array has been populated.
func (g *Grid) Loaded() bool { return g.loaded }

// Schema builds the csvschema.Schema expected of a grid CSV carrying these
// columns: header "lon, lat, <col>..." with each data column value-optional
// (a blank cell is a hole, loaded as NaN) and grouped under "data" in
// canonical column order.
func Schema(columns []int) (csvschema.Schema, error) {
	fields := []csvschema.FieldSpec{
		csvschema.FloatField("lon"),
		csvschema.FloatField("lat"),
	}
	for _, canon := range columns {
		fields = append(fields, csvschema.FloatField(deformlist.ColumnName(canon)).Optional().Grouped("data"))
	}
	return csvschema.NewSchema(fields...)
}

// fingerprintMetadata is the caller-supplied part of the cache fingerprint:
// counts and column set, so a changed grid shape never hits a stale entry.
func (g *Grid) fingerprintMetadata() string {
	return fmt.Sprintf("%d:%d:%v", g.NLon, g.NLat, g.Columns)
}

// Load populates the grid from the binary cache (keyed on fingerprint, which
// the caller builds from source file mtimes plus fingerprintMetadata), or by
// streaming rows read from src otherwise. src is only consulted on a cache
// miss; the k-th row read from it must equal the lattice point
// (min_lon + (k mod nlon)·dlon, min_lat + (k div nlon)·dlat) within
// dlon/10000, dlat/10000 tolerance.
func (g *Grid) Load(fingerprint string, cache Cache, openSource func() (*csvschema.Reader, error)) error {
	if g.loaded {
		return nil
	}
	defer func() { g.loaded = true }()

	if cache != nil {
		if cached, ok := cache.Get(g.GridFile, fingerprint); ok {
			g.data.SetRaw(cached)
			return nil
		}
	}

	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	lonTol := g.DLon / 10000.0
	latTol := g.DLat / 10000.0

	row := 0
	xc, yc := g.MinLon-g.DLon, g.MinLat
	col := -1
	for {
		rec, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		col++
		xc += g.DLon
		if col >= g.NLon {
			col = 0
			xc = g.MinLon
			row++
			yc += g.DLat
			if row >= g.NLat {
				return dmerrors.NewDefinition("too many grid points in %s", g.Name)
			}
		}

		lon, _ := rec.Get("lon")
		lat, _ := rec.Get("lat")
		lonVal, _ := lon.Float()
		latVal, _ := lat.Float()
		if math.Abs(lonVal-xc) > lonTol || math.Abs(latVal-yc) > latTol {
			return dmerrors.NewDefinition(
				"grid latitude/longitude out of sequence: (%v,%v) should be (%v,%v) in %s",
				lonVal, latVal, xc, yc, g.Name)
		}

		group := rec.Group("data")
		if len(group) != len(g.Columns) {
			return dmerrors.NewDefinition("incorrect number of components at data point in %s", g.Name)
		}
		values := make([]float64, len(group))
		for i, v := range group {
			if v.IsNull() {
				values[i] = math.NaN()
				continue
			}
			f, _ := v.Float()
			values[i] = f
		}
		g.data.Set(row*g.NLon+col, values)
	}

	g.data.Finalize()
	if cache != nil {
		cache.Set(g.GridFile, fingerprint, g.data.Raw())
	}
	return nil
}

// CalcDeformation interpolates the four surrounding nodes at (x, y):
// wraps x eastward until ≥ MinLon, fails with OutOfRange if still outside
// the bounding box, then bilinearly blends the surrounding lattice cell.
func (g *Grid) CalcDeformation(x, y float64) ([deformlist.NumCanonical]float64, error) {
	var zero [deformlist.NumCanonical]float64
	if !g.loaded {
		return zero, dmerrors.NewDefinition("grid %s used before Load", g.Name)
	}

	x0 := x
	for x < g.MinLon {
		x += 360
	}
	if x > g.MaxLon || y < g.MinLat || y > g.MaxLat {
		return zero, dmerrors.NewOutOfRange("%v,%v is out of range of grid in %s", x0, y, g.Name)
	}

	wx := (x - g.MinLon) / g.DLon
	wy := (y - g.MinLat) / g.DLat
	nx := int(wx)
	ny := int(wy)
	if nx >= g.NLon-1 {
		nx = g.NLon - 2
	}
	if ny >= g.NLat-1 {
		ny = g.NLat - 2
	}
	wx -= float64(nx)
	wy -= float64(ny)
	base := ny*g.NLon + nx

	rows := []int{base, base + 1, base + g.NLon, base + g.NLon + 1}
	factors := []float64{
		(1 - wx) * (1 - wy),
		wx * (1 - wy),
		(1 - wx) * wy,
		wx * wy,
	}
	return g.data.CalcDeformation(rows, factors)
}
