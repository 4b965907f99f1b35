// Package cache implements the binary cache (spec §4.7): a NetCDF4 container
// that stores already-finalized grid node arrays keyed by logical source
// path and a fingerprint built from that source's file metadata, so a
// changed source file or shape never serves a stale array.
//
// The cache degrades gracefully: if the file cannot be opened for writing it
// falls back to read-only (serving existing entries, silently dropping
// writes), and if it cannot be opened at all Open returns a disabled cache
// that always misses and never panics.
package cache

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/sirupsen/logrus"
)

// Cache wraps a NetCDF4 dataset holding, per cached logical path, one
// top-level variable named "v_" plus the path with every character outside
// [A-Za-z0-9_] replaced by "_", carrying a "fingerprint" text attribute.
type Cache struct {
	ds       netcdf.Dataset
	open     bool
	writable bool
}

var varNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

func varName(path string) string {
	return "v_" + varNameSanitizer.ReplaceAllString(path, "_")
}

// Open opens path as the binary cache. The file is opened read-write when
// possible; if that fails and no file exists at path, a fresh NetCDF4
// container is created; otherwise it is opened read-only. If none of these
// succeed, Open returns a disabled
// Cache rather than an error: the caller always has a usable (if inert)
// cache to pass down to submodel loaders.
func Open(path string) *Cache {
	if ds, err := netcdf.OpenFile(path, netcdf.WRITE); err == nil {
		return &Cache{ds: ds, open: true, writable: true}
	}
	if _, err := os.Stat(path); err != nil {
		if ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4); err == nil {
			return &Cache{ds: ds, open: true, writable: true}
		}
	}
	if ds, err := netcdf.OpenFile(path, netcdf.NOWRITE); err == nil {
		logrus.WithField("path", path).Warn("deformation model cache opened read-only")
		return &Cache{ds: ds, open: true, writable: false}
	}
	logrus.WithField("path", path).Warn("deformation model cache unavailable, continuing without it")
	return &Cache{}
}

// Close releases the underlying NetCDF file handle. A no-op on a disabled
// cache.
func (c *Cache) Close() error {
	if !c.open {
		return nil
	}
	return c.ds.Close()
}

// Get returns the cached array for path if an entry exists and its stored
// fingerprint matches exactly.
func (c *Cache) Get(path, fingerprint string) ([]float64, bool) {
	if !c.open {
		return nil, false
	}
	name := varName(path)
	v, err := c.ds.Var(name)
	if err != nil {
		return nil, false
	}

	fp := v.Attr("fingerprint")
	n, err := fp.Len()
	if err != nil || n == 0 {
		return nil, false
	}
	buf := make([]byte, n)
	if err := fp.ReadBytes(buf); err != nil {
		return nil, false
	}
	if string(buf) != fingerprint {
		return nil, false
	}

	dims, err := v.Dims()
	if err != nil || len(dims) != 1 {
		return nil, false
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, false
	}
	data := make([]float64, length)
	if err := v.ReadFloat64s(data); err != nil {
		return nil, false
	}
	return data, true
}

// Set stores data under path keyed by fingerprint. A no-op on a disabled or
// read-only cache. NetCDF classic variables cannot change shape once
// defined, so a path whose array length changed (its source grew or
// shrank) is logged and skipped rather than corrupting the existing entry;
// the caller will simply recompute it from source on every run until the
// cache file is regenerated.
func (c *Cache) Set(path, fingerprint string, data []float64) {
	if !c.open || !c.writable {
		return
	}
	name := varName(path)

	if v, err := c.ds.Var(name); err == nil {
		dims, err := v.Dims()
		if err != nil || len(dims) != 1 {
			return
		}
		length, err := dims[0].Len()
		if err != nil || length != uint64(len(data)) {
			logrus.WithField("path", path).Warn("deformation model cache entry changed shape, skipping update")
			return
		}
		if err := v.WriteFloat64s(data); err != nil {
			logrus.WithError(err).WithField("path", path).Warn("failed writing deformation model cache entry")
			return
		}
		v.Attr("fingerprint").WriteBytes([]byte(fingerprint))
		return
	}

	dim, err := c.ds.AddDim(name+"_n", uint64(len(data)))
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("failed creating deformation model cache dimension")
		return
	}
	v, err := c.ds.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{dim})
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("failed creating deformation model cache variable")
		return
	}
	if err := v.WriteFloat64s(data); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("failed writing deformation model cache entry")
		return
	}
	v.Attr("fingerprint").WriteBytes([]byte(fingerprint))
}

// Fingerprint builds the cache key for a source made up of one or more
// files, each contributing "name:mtimeUnix", plus any caller-supplied shape
// metadata (e.g. a grid's row/column counts and canonical column set) so a
// changed file or a changed submodel definition never hits a stale entry.
func Fingerprint(files []FileStamp, metadata string) string {
	parts := make([]string, 0, len(files)+1)
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s:%d", f.Name, f.ModTimeUnix))
	}
	parts = append(parts, metadata)
	return strings.Join(parts, "|")
}

// FileStamp is one file's contribution to a Fingerprint: its logical name
// and modification time, as seconds since the epoch.
type FileStamp struct {
	Name        string
	ModTimeUnix int64
}

// Stat builds a FileStamp from a file on disk.
func Stat(name string) (FileStamp, error) {
	info, err := os.Stat(name)
	if err != nil {
		return FileStamp{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return FileStamp{Name: name, ModTimeUnix: info.ModTime().Unix()}, nil
}
