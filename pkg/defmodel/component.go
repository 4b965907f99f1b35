package defmodel

import (
	"errors"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/geocrust/defmodel/internal/deformlist"
	"github.com/geocrust/defmodel/internal/dmerrors"
	"github.com/geocrust/defmodel/internal/timefunc"
	"github.com/geocrust/defmodel/internal/timeval"
)

var zeroDeformation [deformlist.NumCanonical]float64

// spatialEvaluator is the subset of gridmodel.Grid / tinmodel.TIN a component
// needs: both already expose exactly this method.
type spatialEvaluator interface {
	CalcDeformation(x, y float64) ([deformlist.NumCanonical]float64, error)
}

// pooledSpatial is one shared, lazily-loaded spatial submodel instance (a
// grid or a TIN). Two component rows across different submodels that name
// the same file(s) and spatial_model type share one pooledSpatial (spec §3
// invariant 2), so its array is only ever read and held once.
//
// NPoints1, NPoints2, DisplacementType, ErrorType and Description are kept
// alongside Bounds/SpatialComplete purely so a second row naming the same
// file(s) can be checked for agreement with the first (spec §3 invariant 3);
// they play no further part in evaluation.
type pooledSpatial struct {
	Key              string
	Bounds           Bounds
	SpatialComplete  bool
	NPoints1         int
	NPoints2         int
	DisplacementType string
	ErrorType        string
	Description      string

	eval   spatialEvaluator
	load   func() error
	loaded bool
}

// agrees reports whether a second component.csv row naming the same
// file(s)/spatial_model as p declares the same bounding box, completeness
// flag, point counts, displacement/error types and description (spec §3
// invariant 3).
func (p *pooledSpatial) agrees(b Bounds, spatialComplete bool, npoints1, npoints2 int, displacementType, errorType, description string) bool {
	return p.Bounds == b &&
		p.SpatialComplete == spatialComplete &&
		p.NPoints1 == npoints1 &&
		p.NPoints2 == npoints2 &&
		p.DisplacementType == displacementType &&
		p.ErrorType == errorType &&
		p.Description == description
}

func (p *pooledSpatial) ensureLoaded() error {
	if p.loaded {
		return nil
	}
	if err := p.load(); err != nil {
		return err
	}
	p.loaded = true
	return nil
}

func (p *pooledSpatial) calcDeformation(x, y float64) ([deformlist.NumCanonical]float64, error) {
	if err := p.ensureLoaded(); err != nil {
		return zeroDeformation, err
	}
	return p.eval.CalcDeformation(x, y)
}

// setMember is one pooledSpatial's entry in a SpatialModelSet's R-tree,
// carrying the priority used to order candidates once a query narrows the
// R-tree hits down to the members actually covering a point.
type setMember struct {
	bounds   rtreego.Rect
	priority int
	model    *pooledSpatial
}

func (m *setMember) Bounds() rtreego.Rect { return m.bounds }

const rectEpsilon = 1e-9

func boundsRect(b Bounds) rtreego.Rect {
	w := b.MaxLon - b.MinLon
	h := b.MaxLat - b.MinLat
	if w <= 0 {
		w = rectEpsilon
	}
	if h <= 0 {
		h = rectEpsilon
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.MinLon, b.MinLat}, []float64{w, h})
	if err != nil {
		// Degenerate bounds already validated at load time; this is
		// unreachable outside of that guarantee, but rtreego still wants a
		// usable rect rather than a panic deep in Insert.
		rect, _ = rtreego.NewRect(rtreego.Point{b.MinLon, b.MinLat}, []float64{rectEpsilon, rectEpsilon})
	}
	return rect
}

// SpatialModelSet resolves one or more nested spatial submodels sharing a
// component id (spec §4.8): a standalone row is a singleton set; rows that
// share a positive component id form a priority-ordered family of
// progressively finer grids or TINs nested inside one another, such as a
// national low-resolution grid overlaid with high-resolution local patches.
//
// A query tries members from highest to lowest priority. The first member
// that evaluates successfully wins. A spatial_complete member that reports
// out-of-range contributes zero and the search continues to the next
// priority; a non-spatial_complete member's out-of-range (or any other)
// error is propagated immediately. If every member is spatial_complete and
// none covers the point, the set evaluates to zero.
type SpatialModelSet struct {
	Name     string
	tree     *rtreego.Rtree
	members  []*setMember
	groupKey string

	haveLast bool
	lastX    float64
	lastY    float64
	lastVal  [deformlist.NumCanonical]float64
	lastErr  error
}

// NewSpatialModelSet builds an empty set named name; members are added with
// Add. Members of equal priority are tried in no defined order
// (component.csv priority values are expected to be distinct within one set).
func NewSpatialModelSet(name string) *SpatialModelSet {
	return &SpatialModelSet{
		Name: name,
		tree: rtreego.NewTree(2, 2, 8),
	}
}

// Add inserts model into the set at the given priority (higher wins).
// groupKey identifies the (version_added, version_revoked, displacement_type,
// error_type, time-function signature) a row sharing this set's positive
// component id must agree on (spec §3 invariant 2); members after the first
// must carry the same groupKey or Add fails instead of silently accepting an
// incoherent nested-grid definition.
func (s *SpatialModelSet) Add(model *pooledSpatial, priority int, groupKey string) error {
	if len(s.members) > 0 && groupKey != s.groupKey {
		return dmerrors.NewDefinition(
			"component %q: nested spatial models disagree on version, displacement/error type or time function", s.Name)
	}
	s.groupKey = groupKey
	m := &setMember{bounds: boundsRect(model.Bounds), priority: priority, model: model}
	s.members = append(s.members, m)
	s.tree.Insert(m)
	return nil
}

func (s *SpatialModelSet) candidatesAt(x, y float64) []*setMember {
	point := rtreego.Point{x, y}
	rect, err := rtreego.NewRect(point, []float64{rectEpsilon, rectEpsilon})
	if err != nil {
		return nil
	}
	hits := s.tree.SearchIntersect(rect)
	if len(hits) == 0 {
		// Grids wrap eastward (spec §4.4); retry the index lookup wrapped the
		// same way so a query just west of a grid's min_lon still finds it.
		rect, err = rtreego.NewRect(rtreego.Point{x + 360, y}, []float64{rectEpsilon, rectEpsilon})
		if err == nil {
			hits = s.tree.SearchIntersect(rect)
		}
	}
	out := make([]*setMember, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*setMember))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].priority > out[j].priority })
	return out
}

// CalcDeformation evaluates the set at (x, y), memoising the last query so
// repeated calls at the same point (common across successive dates) skip the
// R-tree search and member walk entirely.
func (s *SpatialModelSet) CalcDeformation(x, y float64) ([deformlist.NumCanonical]float64, error) {
	if s.haveLast && s.lastX == x && s.lastY == y {
		return s.lastVal, s.lastErr
	}

	val, err := s.evaluate(x, y)

	s.haveLast, s.lastX, s.lastY = true, x, y
	s.lastVal, s.lastErr = val, err
	return val, err
}

func (s *SpatialModelSet) evaluate(x, y float64) ([deformlist.NumCanonical]float64, error) {
	for _, m := range s.candidatesAt(x, y) {
		v, err := m.model.calcDeformation(x, y)
		if err == nil {
			return v, nil
		}
		var oor *dmerrors.OutOfRangeError
		if errors.As(err, &oor) && m.model.SpatialComplete {
			continue
		}
		return zeroDeformation, err
	}
	// No candidate covered the point (or every covering member was
	// spatial_complete and out of range): a non-spatial_complete member that
	// does not cover it makes the query out of range rather than zero.
	for _, m := range s.members {
		if !m.model.SpatialComplete {
			return zeroDeformation, dmerrors.NewOutOfRange("%v,%v is out of range of %s", x, y, s.Name)
		}
	}
	return zeroDeformation, nil
}

// Component is one row of a submodel's component.csv: a spatial submodel (or
// nested set), a shared time function, and the version window that
// determines whether it contributes at all (spec §4.9).
type Component struct {
	SubmodelName   string
	ComponentID    int
	Description    string
	VersionAdded   string
	VersionRevoked string

	spatial  *SpatialModelSet
	timeFunc *timefunc.TimeFunction

	factor float64 // -1, 0 or +1, set by Model.SetVersion

	t0, t1  float64
	timeErr error
}

// appliesAt reports whether this component is part of the model definition
// at version v: added at or before v, and either never revoked (the spec's
// "0" sentinel) or revoked strictly after v.
func (c *Component) appliesAt(v string) bool {
	if v < c.VersionAdded {
		return false
	}
	if c.VersionRevoked != "0" && v >= c.VersionRevoked {
		return false
	}
	return true
}

// setFactor sets the signed contribution factor for a (version, baseVersion)
// evaluation: +1 if only version includes this component, -1 if only
// baseVersion does, 0 if both or neither do.
func (c *Component) setFactor(version, baseVersion string) {
	var f float64
	if c.appliesAt(version) {
		f++
	}
	if c.appliesAt(baseVersion) {
		f--
	}
	c.factor = f
}

// setDate asks the shared time function for (factor, errorFactor) at
// (date, baseDate) and scales both by this component's version factor.
func (c *Component) setDate(date, baseDate timeval.Time) error {
	f, ef, err := c.timeFunc.Eval(date, baseDate)
	if err != nil {
		c.t0, c.t1, c.timeErr = 0, 0, err
		return err
	}
	c.t0 = f * c.factor
	c.t1 = ef * c.factor
	c.timeErr = nil
	return nil
}

// calcDeformation returns this component's contribution at (x, y), short
// circuiting to zero without touching the spatial submodel at all when the
// time factor is zero (the component doesn't apply to this version, or its
// date window collapsed it to zero).
func (c *Component) calcDeformation(x, y float64) ([deformlist.NumCanonical]float64, error) {
	if c.t0 == 0 && c.t1 == 0 {
		return zeroDeformation, nil
	}
	v, err := c.spatial.CalcDeformation(x, y)
	if err != nil {
		return zeroDeformation, err
	}
	var out [deformlist.NumCanonical]float64
	out[deformlist.DE] = v[deformlist.DE] * c.t0
	out[deformlist.DN] = v[deformlist.DN] * c.t0
	out[deformlist.DU] = v[deformlist.DU] * c.t0
	out[deformlist.EH] = v[deformlist.EH] * c.t1
	out[deformlist.EV] = v[deformlist.EV] * c.t1
	return out, nil
}
