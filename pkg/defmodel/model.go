package defmodel

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/geocrust/defmodel/internal/cache"
	"github.com/geocrust/defmodel/internal/csvschema"
	"github.com/geocrust/defmodel/internal/deformlist"
	"github.com/geocrust/defmodel/internal/dmerrors"
	"github.com/geocrust/defmodel/internal/ellipsoid"
	"github.com/geocrust/defmodel/internal/gridmodel"
	"github.com/geocrust/defmodel/internal/tinmodel"
	"github.com/geocrust/defmodel/internal/timefunc"
	"github.com/geocrust/defmodel/internal/timeval"
)

// SubmodelInfo describes one row of a model's model.csv: a named national or
// patch submodel directory and the version window it was introduced in.
type SubmodelInfo struct {
	Name           string
	Description    string
	VersionAdded   string
	VersionRevoked string
	ReversePatch   bool
}

// Model is an opened deformation model directory: its metadata, version
// table, submodel list, and the live component set driving CalcDeformation.
//
// A Model is not safe for concurrent use (spec §5): its per-date and
// per-point memoisation is mutated on every query, so callers that need
// concurrent evaluation should Open one Model per goroutine.
type Model struct {
	Dir        string
	Metadata   ModelMetadata
	Ellipsoid  ellipsoid.Ellipsoid
	DatumEpoch timeval.Time
	Versions   []VersionRecord
	Submodels  []SubmodelInfo

	components []*Component
	active     []*Component

	currentVersion     string
	currentBaseVersion string

	minDate, maxDate timeval.Time

	cache *cache.Cache
	log   *logrus.Entry

	lastDate, lastBaseDate timeval.Time
	haveDate               bool
	timeRangeErr           error
}

// Open loads a model directory: metadata.csv, version.csv, model.csv, and
// every matching submodel's component.csv, building the pooled spatial
// submodels and time functions each component references (spec §4.10).
func Open(dir string, opts OpenOptions) (*Model, error) {
	md, err := loadMetadata(filepath.Join(dir, "metadata.csv"))
	if err != nil {
		return nil, err
	}
	versions, err := loadVersions(filepath.Join(dir, "version.csv"))
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	if len(versions) > 0 {
		latest := versions[len(versions)-1].Version
		if md.Version != latest {
			return nil, dmerrors.NewDefinition(
				"metadata.csv version %q does not match the latest version in version.csv (%q)", md.Version, latest)
		}
	}

	submodelRows, err := loadModelRows(filepath.Join(dir, "model.csv"))
	if err != nil {
		return nil, err
	}

	ellipsoidA, err := strconv.ParseFloat(md.EllipsoidA, 64)
	if err != nil {
		return nil, dmerrors.NewDefinition("metadata.csv ellipsoid_a is not numeric: %s", err)
	}
	ellipsoidRf, err := strconv.ParseFloat(md.EllipsoidRf, 64)
	if err != nil {
		return nil, dmerrors.NewDefinition("metadata.csv ellipsoid_rf is not numeric: %s", err)
	}
	datumEpoch, err := timeval.Parse(md.DatumEpoch)
	if err != nil {
		return nil, dmerrors.NewDefinition("metadata.csv datum_epoch is not a valid date: %s", err)
	}

	var binCache *cache.Cache
	if opts.UseCache {
		cachePath := filepath.Join(dir, "cache.h5")
		if opts.ClearCache {
			os.Remove(cachePath)
		}
		binCache = cache.Open(cachePath)
	} else {
		binCache = &cache.Cache{}
	}

	m := &Model{
		Dir:        dir,
		Metadata:   md,
		Ellipsoid:  ellipsoid.New(ellipsoidA, ellipsoidRf),
		DatumEpoch: datumEpoch,
		Versions:   versions,
		cache:      binCache,
		log:        logrus.WithField("model", md.ModelName),
	}

	if err := m.loadSubmodels(dir, submodelRows, opts); err != nil {
		binCache.Close()
		return nil, err
	}

	version := opts.Version
	if version == "" && len(versions) > 0 {
		version = versions[len(versions)-1].Version
	}
	if version != "" {
		if err := m.SetVersion(version, ""); err != nil {
			binCache.Close()
			return nil, err
		}
	}

	return m, nil
}

func (m *Model) loadSubmodels(dir string, submodelRows []modelRow, opts OpenOptions) error {
	filter := ParseSubmodelFilter(opts.SubmodelFilter)
	spatialPool := make(map[string]*pooledSpatial)
	timeFuncPool := make(map[string]*timefunc.TimeFunction)

	for _, sr := range submodelRows {
		m.Submodels = append(m.Submodels, SubmodelInfo{
			Name: sr.Submodel, Description: sr.Description,
			VersionAdded: sr.VersionAdded, VersionRevoked: sr.VersionRevoked,
			ReversePatch: sr.ReversePatch,
		})
		if sr.VersionAdded != "" && !m.versionExists(sr.VersionAdded) {
			return dmerrors.NewDefinition("submodel %s: version_added %q is not in version.csv", sr.Submodel, sr.VersionAdded)
		}
		if sr.VersionRevoked != "0" && !m.versionExists(sr.VersionRevoked) {
			return dmerrors.NewDefinition("submodel %s: version_revoked %q is not in version.csv", sr.Submodel, sr.VersionRevoked)
		}
		if !filter.Matches(sr.Submodel) {
			continue
		}

		submodelDir := filepath.Join(dir, sr.Submodel)
		rows, err := loadComponentRows(filepath.Join(submodelDir, "component.csv"))
		if err != nil {
			return err
		}

		sets := make(map[int]*SpatialModelSet)
		for _, row := range rows {
			if row.VersionAdded != "" && !m.versionExists(row.VersionAdded) {
				return dmerrors.NewDefinition("%s component.csv: version_added %q is not in version.csv", sr.Submodel, row.VersionAdded)
			}
			if row.VersionRevoked != "0" && !m.versionExists(row.VersionRevoked) {
				return dmerrors.NewDefinition("%s component.csv: version_revoked %q is not in version.csv", sr.Submodel, row.VersionRevoked)
			}
			if row.MinDate.Present() && (!m.minDate.Present() || row.MinDate.Before(m.minDate)) {
				m.minDate = row.MinDate
			}
			if row.MaxDate.Present() && (!m.maxDate.Present() || row.MaxDate.After(m.maxDate)) {
				m.maxDate = row.MaxDate
			}

			spatial, err := m.getOrBuildSpatialModel(spatialPool, submodelDir, row)
			if err != nil {
				return err
			}

			tf, tfKey, err := m.getOrBuildTimeFunc(timeFuncPool, row)
			if err != nil {
				return err
			}
			groupKey := fmt.Sprintf("%s|%s|%s|%s|%s", row.VersionAdded, row.VersionRevoked, row.DisplacementType, row.ErrorType, tfKey)

			var set *SpatialModelSet
			if row.ComponentID == 0 {
				set = NewSpatialModelSet(sr.Submodel)
				if err := set.Add(spatial, row.Priority, groupKey); err != nil {
					return err
				}
			} else {
				existing, ok := sets[row.ComponentID]
				if !ok {
					existing = NewSpatialModelSet(fmt.Sprintf("%s#%d", sr.Submodel, row.ComponentID))
					sets[row.ComponentID] = existing
				}
				if err := existing.Add(spatial, row.Priority, groupKey); err != nil {
					return err
				}
				set = existing
			}

			m.components = append(m.components, &Component{
				SubmodelName:   sr.Submodel,
				ComponentID:    row.ComponentID,
				Description:    row.Description,
				VersionAdded:   row.VersionAdded,
				VersionRevoked: row.VersionRevoked,
				spatial:        set,
				timeFunc:       tf,
			})
		}
	}

	if opts.LoadAll {
		// Safe to parallelize: nothing outside Open can be querying this
		// model's components yet, so the single-threaded-use rule for
		// CalcDeformation doesn't apply here.
		if errs := loadAllParallel(spatialPool, opts.Workers); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

func (m *Model) getOrBuildSpatialModel(pool map[string]*pooledSpatial, submodelDir string, row componentRow) (*pooledSpatial, error) {
	columns, err := columnsFor(row.DisplacementType, row.ErrorType)
	if err != nil {
		return nil, err
	}
	b := Bounds{MinLon: row.MinLon, MaxLon: row.MaxLon, MinLat: row.MinLat, MaxLat: row.MaxLat}

	switch row.SpatialModel {
	case "llgrid":
		file1 := filepath.Join(submodelDir, row.File1)
		key := "grid|" + file1
		if p, ok := pool[key]; ok {
			if !p.agrees(b, row.SpatialComplete, row.NPoints1, row.NPoints2, row.DisplacementType, row.ErrorType, row.Description) {
				return nil, dmerrors.NewDefinition("inconsistent usage of grid file %s", row.File1)
			}
			return p, nil
		}
		g, err := gridmodel.New(row.File1, file1, row.MinLon, row.MaxLon, row.MinLat, row.MaxLat, row.NPoints1, row.NPoints2, columns)
		if err != nil {
			return nil, err
		}
		p := &pooledSpatial{
			Key: key, Bounds: b, SpatialComplete: row.SpatialComplete,
			NPoints1: row.NPoints1, NPoints2: row.NPoints2,
			DisplacementType: row.DisplacementType, ErrorType: row.ErrorType, Description: row.Description,
			eval: g,
		}
		p.load = func() error {
			schema, err := gridmodel.Schema(columns)
			if err != nil {
				return err
			}
			stamp, err := cache.Stat(file1)
			if err != nil {
				return err
			}
			fp := cache.Fingerprint([]cache.FileStamp{stamp}, fmt.Sprintf("%d:%d:%v", row.NPoints1, row.NPoints2, columns))
			return g.Load(fp, m.cache, func() (*csvschema.Reader, error) {
				return csvschema.Open(file1, schema)
			})
		}
		pool[key] = p
		return p, nil

	case "lltin":
		file1 := filepath.Join(submodelDir, row.File1)
		file2 := filepath.Join(submodelDir, row.File2)
		key := "tin|" + file1 + "|" + file2
		if p, ok := pool[key]; ok {
			if !p.agrees(b, row.SpatialComplete, row.NPoints1, row.NPoints2, row.DisplacementType, row.ErrorType, row.Description) {
				return nil, dmerrors.NewDefinition("inconsistent usage of TIN file %s", row.File1)
			}
			return p, nil
		}
		t, err := tinmodel.New(row.File1, file1, file2, row.MinLon, row.MaxLon, row.MinLat, row.MaxLat, row.NPoints1, row.NPoints2, columns)
		if err != nil {
			return nil, err
		}
		p := &pooledSpatial{
			Key: key, Bounds: b, SpatialComplete: row.SpatialComplete,
			NPoints1: row.NPoints1, NPoints2: row.NPoints2,
			DisplacementType: row.DisplacementType, ErrorType: row.ErrorType, Description: row.Description,
			eval: t,
		}
		p.load = func() error {
			pointsSchema, err := tinmodel.PointsSchema(columns)
			if err != nil {
				return err
			}
			trianglesSchema, err := tinmodel.TrianglesSchema()
			if err != nil {
				return err
			}
			return t.Load(
				func() (*csvschema.Reader, error) { return csvschema.Open(file1, pointsSchema) },
				func() (*csvschema.Reader, error) { return csvschema.Open(file2, trianglesSchema) },
			)
		}
		pool[key] = p
		return p, nil

	default:
		return nil, dmerrors.NewDefinition("unknown spatial_model %q", row.SpatialModel)
	}
}

// getOrBuildTimeFunc returns the pooled TimeFunction for row's temporal
// signature, alongside the hash key identifying that signature — also used
// by loadSubmodels to build the cross-row groupKey for spec §3 invariant 2.
func (m *Model) getOrBuildTimeFunc(pool map[string]*timefunc.TimeFunction, row componentRow) (*timefunc.TimeFunction, string, error) {
	var shape timefunc.Shape
	switch row.TimeFunction {
	case "velocity":
		shape = timefunc.Velocity
	case "step":
		shape = timefunc.Step
	case "ramp":
		shape = timefunc.Ramp
	case "decay":
		shape = timefunc.Decay
	default:
		return nil, "", dmerrors.NewDefinition("unknown time_function %q", row.TimeFunction)
	}

	params := timefunc.Params{
		Shape:        shape,
		Factor0:      row.Factor0,
		Factor0Set:   row.Factor0Set,
		Time0:        row.Time0,
		Factor1:      row.Factor1,
		Factor1Set:   row.Factor1Set,
		Time1:        row.Time1,
		Decay:        row.Decay,
		DecaySet:     row.DecaySet,
		MinDate:      row.MinDate,
		MaxDate:      row.MaxDate,
		TimeComplete: row.TimeComplete,
	}
	key := timefunc.HashKey(params)
	if tf, ok := pool[key]; ok {
		return tf, key, nil
	}
	tf, err := timefunc.New(params)
	if err != nil {
		return nil, "", err
	}
	pool[key] = tf
	return tf, key, nil
}

// columnsFor maps a component row's displacement_type/error_type into the
// canonical deformlist column set, in canonical ascending order.
func columnsFor(displacement, errType string) ([]int, error) {
	var cols []int
	switch displacement {
	case "horizontal":
		cols = append(cols, deformlist.DE, deformlist.DN)
	case "vertical":
		cols = append(cols, deformlist.DU)
	case "3d":
		cols = append(cols, deformlist.DE, deformlist.DN, deformlist.DU)
	case "none", "":
	default:
		return nil, dmerrors.NewDefinition("unknown displacement_type %q", displacement)
	}
	switch errType {
	case "horizontal":
		cols = append(cols, deformlist.EH)
	case "vertical":
		cols = append(cols, deformlist.EV)
	case "3d":
		cols = append(cols, deformlist.EH, deformlist.EV)
	case "none", "":
	default:
		return nil, dmerrors.NewDefinition("unknown error_type %q", errType)
	}
	if len(cols) == 0 {
		return nil, dmerrors.NewDefinition("component has displacement_type and error_type both none")
	}
	return cols, nil
}

// loadAllParallel forces every pooled spatial submodel to load, spreading
// the work over a bounded worker pool (adapted from the teacher's chart
// worker-pool pattern: a buffered jobs channel, a fixed set of goroutines
// draining it, and a WaitGroup closing the results channel).
func loadAllParallel(pool map[string]*pooledSpatial, workers int) []error {
	items := make([]*pooledSpatial, 0, len(pool))
	for _, p := range pool {
		items = append(items, p)
	}
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultLoadWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	type outcome struct {
		index int
		err   error
	}
	jobs := make(chan int, len(items))
	results := make(chan outcome, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- outcome{index: idx, err: items[idx].ensureLoaded()}
			}
		}()
	}
	for i := range items {
		jobs <- i
	}
	close(jobs)
	go func() { wg.Wait(); close(results) }()

	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", items[r.index].Key, r.err))
		}
	}
	return errs
}

// Close releases the binary cache file handle, if one was opened.
func (m *Model) Close() error {
	return m.cache.Close()
}

// CurrentVersion returns the version most recently set by SetVersion (or
// Open's OpenOptions.Version / latest version), and the base version it was
// paired with.
func (m *Model) CurrentVersion() (version, baseVersion string) {
	return m.currentVersion, m.currentBaseVersion
}

func (m *Model) versionExists(v string) bool {
	for _, r := range m.Versions {
		if r.Version == v {
			return true
		}
	}
	return false
}

// SetVersion selects the component set active for subsequent
// CalcDeformation/ApplyTo calls. With baseVersion empty, every component
// added at or before version and not yet revoked contributes with factor +1.
// With baseVersion set, a component contributes +1 if only version includes
// it, -1 if only baseVersion does, and is dropped if both or neither do —
// turning CalcDeformation into the net displacement between two versions.
func (m *Model) SetVersion(version, baseVersion string) error {
	if version == "" {
		if len(m.Versions) == 0 {
			return dmerrors.NewDefinition("model has no versions defined")
		}
		version = m.Versions[len(m.Versions)-1].Version
	}
	if !m.versionExists(version) {
		return dmerrors.NewDefinition("unknown model version %q", version)
	}
	if baseVersion != "" && !m.versionExists(baseVersion) {
		return dmerrors.NewDefinition("unknown base model version %q", baseVersion)
	}

	m.currentVersion, m.currentBaseVersion = version, baseVersion
	m.active = m.active[:0]
	for _, c := range m.components {
		c.setFactor(version, baseVersion)
		if c.factor != 0 {
			m.active = append(m.active, c)
		}
	}
	m.haveDate = false
	m.timeRangeErr = nil
	return nil
}

// CalcDeformation evaluates every active component at (x, y) for the
// (date, baseDate) pair and sums their contributions, then takes the square
// root of the summed error variances to turn them back into standard
// deviations (spec §4.10 evaluation steps).
func (m *Model) CalcDeformation(x, y float64, date, baseDate timeval.Time) ([deformlist.NumCanonical]float64, error) {
	if !m.haveDate || date != m.lastDate || baseDate != m.lastBaseDate {
		m.haveDate = true
		m.lastDate, m.lastBaseDate = date, baseDate
		m.timeRangeErr = nil
		for _, c := range m.active {
			if err := c.setDate(date, baseDate); err != nil {
				m.timeRangeErr = err
				break
			}
		}
	}
	if m.timeRangeErr != nil {
		return zeroDeformation, m.timeRangeErr
	}

	var acc [deformlist.NumCanonical]float64
	for _, c := range m.active {
		v, err := c.calcDeformation(x, y)
		if err != nil {
			return zeroDeformation, err
		}
		for i := range acc {
			acc[i] += v[i]
		}
	}
	acc[deformlist.EH] = sqrtAbs(acc[deformlist.EH])
	acc[deformlist.EV] = sqrtAbs(acc[deformlist.EV])
	return acc, nil
}

func sqrtAbs(v float64) float64 {
	if v < 0 {
		v = -v
	}
	return math.Sqrt(v)
}

// ApplyTo displaces a geodetic coordinate by the model's deformation at
// (lon, lat) between baseDate and date, converting the east/north
// components from metres to degrees using the local ellipsoidal scale.
// subtract reverses the sign, for undoing a previously-applied patch.
func (m *Model) ApplyTo(lon, lat, hgt float64, date, baseDate timeval.Time, subtract bool) (float64, float64, float64, error) {
	v, err := m.CalcDeformation(lon, lat, date, baseDate)
	if err != nil {
		return lon, lat, hgt, err
	}
	dedln, dndlt := m.Ellipsoid.MetresPerDegree(lon, lat)
	sign := 1.0
	if subtract {
		sign = -1.0
	}
	return lon + sign*v[deformlist.DE]/dedln, lat + sign*v[deformlist.DN]/dndlt, hgt + sign*v[deformlist.DU], nil
}

// ApplyToPoints applies ApplyTo across a batch of points, each either
// [lon, lat] or [lon, lat, hgt]. Returns as soon as any point fails.
func (m *Model) ApplyToPoints(points [][]float64, date, baseDate timeval.Time, subtract bool) ([][]float64, error) {
	out := make([][]float64, len(points))
	for i, p := range points {
		hgt := 0.0
		if len(p) > 2 {
			hgt = p[2]
		}
		lon, lat, h, err := m.ApplyTo(p[0], p[1], hgt, date, baseDate, subtract)
		if err != nil {
			return nil, err
		}
		if len(p) > 2 {
			out[i] = []float64{lon, lat, h}
		} else {
			out[i] = []float64{lon, lat}
		}
	}
	return out, nil
}

// CalcLLHFunc returns a closure over a fixed geodetic point that, given a
// date, returns the point as displaced from the model's reference epoch.
func (m *Model) CalcLLHFunc(lon, lat, hgt float64) func(date timeval.Time) (float64, float64, float64, error) {
	return func(date timeval.Time) (float64, float64, float64, error) {
		return m.ApplyTo(lon, lat, hgt, date, timeval.Time{}, false)
	}
}

// CalcXYZFunc returns the geocentric-coordinate equivalent of CalcLLHFunc:
// it converts (x, y, z) to geodetic once, then on each call displaces it and
// converts back to geocentric coordinates on the model's ellipsoid.
func (m *Model) CalcXYZFunc(x, y, z float64) func(date timeval.Time) (float64, float64, float64, error) {
	lon, lat, hgt := m.Ellipsoid.Geodetic(x, y, z)
	return func(date timeval.Time) (float64, float64, float64, error) {
		nlon, nlat, nhgt, err := m.ApplyTo(lon, lat, hgt, date, timeval.Time{}, false)
		if err != nil {
			return 0, 0, 0, err
		}
		nx, ny, nz := m.Ellipsoid.XYZ(nlon, nlat, nhgt)
		return nx, ny, nz, nil
	}
}

// ReversePatchEntry is one component's signed contribution to the reverse
// patch applied when a version introduces a discontinuity (version.csv's
// reverse_patch flag).
type ReversePatchEntry struct {
	SubmodelName string
	ComponentID  int
	Factor       float64
}

// ReversePatchComponents returns the signed list of components that
// participate in the reverse patch for version v: a component contributes
// -1 if it was added at v, +1 if it was revoked at v, scaled by its time
// function evaluated at the model's datum epoch. Zero-factor entries (a
// component whose time function is zero at the epoch) are dropped.
func (m *Model) ReversePatchComponents(v string) []ReversePatchEntry {
	var out []ReversePatchEntry
	for _, c := range m.components {
		var base float64
		switch {
		case c.VersionAdded == v:
			base = -1
		case c.VersionRevoked == v:
			base = 1
		default:
			continue
		}
		tf, _, err := c.timeFunc.Eval(m.DatumEpoch, timeval.Time{})
		if err != nil {
			continue
		}
		factor := base * tf
		if factor == 0 {
			continue
		}
		out = append(out, ReversePatchEntry{SubmodelName: c.SubmodelName, ComponentID: c.ComponentID, Factor: factor})
	}
	return out
}

// DatumCode, DatumName, DatumEpsgSrid and Description expose the
// corresponding metadata.csv fields directly off the Model, matching how
// callers ask for a model's identity without reaching into Metadata.
func (m *Model) DatumCode() string     { return m.Metadata.DatumCode }
func (m *Model) DatumName() string     { return m.Metadata.DatumName }
func (m *Model) DatumEpsgSrid() string { return m.Metadata.DatumEpsgSrid }
func (m *Model) Description() string   { return m.Metadata.Description }

// MinDateRange and MaxDateRange report the earliest min_date and the latest
// max_date over every component row loaded by Open (the union of their
// validity windows), whether or not the row is time_complete or active for
// the current version. Each is absent when no loaded row sets that bound.
func (m *Model) MinDateRange() timeval.Time { return m.minDate }
func (m *Model) MaxDateRange() timeval.Time { return m.maxDate }

// --- model.csv ---

type modelRow struct {
	Submodel       string
	Description    string
	VersionAdded   string
	VersionRevoked string
	ReversePatch   bool
}

func modelCSVSchema() (csvschema.Schema, error) {
	return csvschema.NewSchema(
		csvschema.StrField("submodel"),
		csvschema.StrField("description").Optional(),
		csvschema.StrField("version_added"),
		csvschema.StrField("version_revoked").Optional(),
		csvschema.BoolField("reverse_patch"),
	)
}

func loadModelRows(path string) ([]modelRow, error) {
	schema, err := modelCSVSchema()
	if err != nil {
		return nil, err
	}
	r, err := csvschema.Open(path, schema)
	if err != nil {
		return nil, dmerrors.NewDefinition("opening model.csv: %s", err)
	}

	var out []modelRow
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		submodelVal, _ := rec.Get("submodel")
		submodel, _ := submodelVal.Str()
		descVal, _ := rec.Get("description")
		desc, _ := descVal.Str()
		addedVal, _ := rec.Get("version_added")
		added, _ := addedVal.Str()
		revokedVal, _ := rec.Get("version_revoked")
		revoked, _ := revokedVal.Str()
		reversePatchVal, _ := rec.Get("reverse_patch")
		reversePatch, _ := reversePatchVal.Bool()

		out = append(out, modelRow{
			Submodel: submodel, Description: desc,
			VersionAdded: added, VersionRevoked: revoked,
			ReversePatch: reversePatch,
		})
	}
	return out, nil
}

// --- component.csv ---

type componentRow struct {
	VersionAdded   string
	VersionRevoked string
	ReversePatch   bool
	ComponentID    int
	Priority       int

	MinLon, MaxLon, MinLat, MaxLat float64
	SpatialComplete                bool

	TimeComplete     bool
	MinDate, MaxDate timeval.Time

	NPoints1, NPoints2 int
	DisplacementType   string
	ErrorType          string
	MaxDisplacement    float64
	SpatialModel       string

	TimeFunction           string
	Time0                  timeval.Time
	Factor0                float64
	Factor0Set             bool
	Time1                  timeval.Time
	Factor1                float64
	Factor1Set             bool
	Decay                  float64
	DecaySet               bool

	File1, File2 string
	Description  string
}

func componentCSVSchema() (csvschema.Schema, error) {
	return csvschema.NewSchema(
		csvschema.StrField("version_added"),
		csvschema.StrField("version_revoked").Optional(),
		csvschema.BoolField("reverse_patch"),
		csvschema.IntField("component"),
		csvschema.IntField("priority").Optional(),
		csvschema.FloatField("min_lon"),
		csvschema.FloatField("max_lon"),
		csvschema.FloatField("min_lat"),
		csvschema.FloatField("max_lat"),
		csvschema.BoolField("spatial_complete"),
		csvschema.BoolField("time_complete"),
		csvschema.DateTimeField("min_date").Optional(),
		csvschema.DateTimeField("max_date").Optional(),
		csvschema.IntField("npoints1"),
		csvschema.IntField("npoints2").Optional(),
		csvschema.RegexField("displacement_type", `^(horizontal|vertical|3d|none)$`).Optional(),
		csvschema.RegexField("error_type", `^(horizontal|vertical|3d|none)$`).Optional(),
		csvschema.FloatField("max_displacement"),
		csvschema.RegexField("spatial_model", `^(llgrid|lltin)$`),
		csvschema.RegexField("time_function", `^(velocity|step|ramp|decay)$`),
		csvschema.DateTimeField("time0").Optional(),
		csvschema.FloatField("factor0").Optional(),
		csvschema.DateTimeField("time1").Optional(),
		csvschema.FloatField("factor1").Optional(),
		csvschema.FloatField("decay").Optional(),
		csvschema.StrField("file1"),
		csvschema.StrField("file2").Optional(),
		csvschema.StrField("description").Optional(),
	)
}

func loadComponentRows(path string) ([]componentRow, error) {
	schema, err := componentCSVSchema()
	if err != nil {
		return nil, err
	}
	r, err := csvschema.Open(path, schema)
	if err != nil {
		return nil, dmerrors.NewDefinition("opening component.csv: %s", err)
	}

	var out []componentRow
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		addedVal, _ := rec.Get("version_added")
		added, _ := addedVal.Str()
		revokedVal, _ := rec.Get("version_revoked")
		revoked, _ := revokedVal.Str()
		reversePatchVal, _ := rec.Get("reverse_patch")
		reversePatch, _ := reversePatchVal.Bool()

		componentVal, _ := rec.Get("component")
		component, _ := componentVal.Int()
		priorityVal, _ := rec.Get("priority")
		priority, _ := priorityVal.Int()

		minLonVal, _ := rec.Get("min_lon")
		minLon, _ := minLonVal.Float()
		maxLonVal, _ := rec.Get("max_lon")
		maxLon, _ := maxLonVal.Float()
		minLatVal, _ := rec.Get("min_lat")
		minLat, _ := minLatVal.Float()
		maxLatVal, _ := rec.Get("max_lat")
		maxLat, _ := maxLatVal.Float()

		spatialCompleteVal, _ := rec.Get("spatial_complete")
		spatialComplete, _ := spatialCompleteVal.Bool()
		timeCompleteVal, _ := rec.Get("time_complete")
		timeComplete, _ := timeCompleteVal.Bool()

		var minDate, maxDate timeval.Time
		if v, ok := rec.Get("min_date"); ok && !v.IsNull() {
			minDate, _ = v.Time()
		}
		if v, ok := rec.Get("max_date"); ok && !v.IsNull() {
			maxDate, _ = v.Time()
		}

		npoints1Val, _ := rec.Get("npoints1")
		npoints1, _ := npoints1Val.Int()
		var npoints2 int64
		if v, ok := rec.Get("npoints2"); ok && !v.IsNull() {
			npoints2, _ = v.Int()
		}

		var displacementType, errorType string
		if v, ok := rec.Get("displacement_type"); ok && !v.IsNull() {
			displacementType, _ = v.Str()
		}
		if v, ok := rec.Get("error_type"); ok && !v.IsNull() {
			errorType, _ = v.Str()
		}
		maxDisplacementVal, _ := rec.Get("max_displacement")
		maxDisplacement, _ := maxDisplacementVal.Float()

		spatialModelVal, _ := rec.Get("spatial_model")
		spatialModel, _ := spatialModelVal.Str()
		timeFunctionVal, _ := rec.Get("time_function")
		timeFunction, _ := timeFunctionVal.Str()

		var time0, time1 timeval.Time
		var factor0, factor1, decay float64
		var factor0Set, factor1Set, decaySet bool
		if v, ok := rec.Get("time0"); ok && !v.IsNull() {
			time0, _ = v.Time()
		}
		if v, ok := rec.Get("factor0"); ok && !v.IsNull() {
			factor0, _ = v.Float()
			factor0Set = true
		}
		if v, ok := rec.Get("time1"); ok && !v.IsNull() {
			time1, _ = v.Time()
		}
		if v, ok := rec.Get("factor1"); ok && !v.IsNull() {
			factor1, _ = v.Float()
			factor1Set = true
		}
		if v, ok := rec.Get("decay"); ok && !v.IsNull() {
			decay, _ = v.Float()
			decaySet = true
		}

		file1Val, _ := rec.Get("file1")
		file1, _ := file1Val.Str()
		var file2 string
		if v, ok := rec.Get("file2"); ok && !v.IsNull() {
			file2, _ = v.Str()
		}
		var description string
		if v, ok := rec.Get("description"); ok && !v.IsNull() {
			description, _ = v.Str()
		}

		out = append(out, componentRow{
			VersionAdded: added, VersionRevoked: revoked, ReversePatch: reversePatch,
			ComponentID: int(component), Priority: int(priority),
			MinLon: minLon, MaxLon: maxLon, MinLat: minLat, MaxLat: maxLat,
			SpatialComplete: spatialComplete,
			TimeComplete:    timeComplete, MinDate: minDate, MaxDate: maxDate,
			NPoints1: int(npoints1), NPoints2: int(npoints2),
			DisplacementType: displacementType, ErrorType: errorType, MaxDisplacement: maxDisplacement,
			SpatialModel: spatialModel,
			TimeFunction: timeFunction,
			Time0:        time0, Factor0: factor0, Factor0Set: factor0Set,
			Time1: time1, Factor1: factor1, Factor1Set: factor1Set,
			Decay: decay, DecaySet: decaySet,
			File1: file1, File2: file2, Description: description,
		})
	}
	return out, nil
}
