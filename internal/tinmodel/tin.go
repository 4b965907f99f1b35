// Package tinmodel implements the triangulated irregular network (TIN)
// spatial submodel (spec §4.5): barycentric interpolation with a
// walk-based triangle locator, built over a 1-based point list (sentinel
// zero at index 0) and a triangle list with precomputed adjacency.
package tinmodel

import (
	"errors"
	"io"
	"math"

	"github.com/geocrust/defmodel/internal/csvschema"
	"github.com/geocrust/defmodel/internal/deformlist"
	"github.com/geocrust/defmodel/internal/dmerrors"
)

type point struct{ lon, lat float64 }

func sub(a, b point) point { return point{a.lon - b.lon, a.lat - b.lat} }

// cross2 is the scalar (z-component) cross product of two 2D vectors.
func cross2(a, b point) float64 { return a.lon*b.lat - a.lat*b.lon }

// TIN is a lazily-loaded triangulated network.
type TIN struct {
	Name                           string
	PointsFile, TrianglesFile      string
	MinLon, MaxLon, MinLat, MaxLat float64
	NPt, NTrg                      int
	Columns                        []int

	points    []point  // length NPt+1; index 0 is the unused sentinel
	triangles [][3]int // 1-based point ids, length NTrg
	centroids []point
	edgeVec   [][3]point // per triangle, 3 edge vectors scaled by inverse signed area
	adjacent  [][3]int   // per triangle, per edge opposite vertex i; -1 if boundary

	data   *deformlist.List
	loaded bool
}

// New validates the TIN's geometry and allocates its backing node array.
func New(name, pointsFile, trianglesFile string, minLon, maxLon, minLat, maxLat float64, npt, ntrg int, columns []int) (*TIN, error) {
	if npt < 2 || ntrg < 1 {
		return nil, dmerrors.NewDefinition("invalid number of triangulation points or triangles in deformation model definition for %s", name)
	}
	if minLon >= maxLon {
		return nil, dmerrors.NewDefinition("invalid longitude range %v - %v in deformation model definition for %s", minLon, maxLon, name)
	}
	if minLat >= maxLat {
		return nil, dmerrors.NewDefinition("invalid latitude range %v - %v in deformation model definition for %s", minLat, maxLat, name)
	}
	t := &TIN{
		Name: name, PointsFile: pointsFile, TrianglesFile: trianglesFile,
		MinLon: minLon, MaxLon: maxLon, MinLat: minLat, MaxLat: maxLat,
		NPt: npt, NTrg: ntrg, Columns: columns,
	}
	t.data = deformlist.New(columns, npt+1)
	return t, nil
}

// PointsSchema is the csvschema.Schema for a TIN points CSV:
// "id, lon, lat, <col>...".
func PointsSchema(columns []int) (csvschema.Schema, error) {
	fields := []csvschema.FieldSpec{
		csvschema.IntField("id"),
		csvschema.FloatField("lon"),
		csvschema.FloatField("lat"),
	}
	for _, canon := range columns {
		fields = append(fields, csvschema.FloatField(deformlist.ColumnName(canon)).Grouped("data"))
	}
	return csvschema.NewSchema(fields...)
}

// TrianglesSchema is the csvschema.Schema for a TIN triangles CSV:
// "id1, id2, id3" referencing point ids.
func TrianglesSchema() (csvschema.Schema, error) {
	return csvschema.NewSchema(
		csvschema.IntField("id1").Grouped("ids"),
		csvschema.IntField("id2").Grouped("ids"),
		csvschema.IntField("id3").Grouped("ids"),
	)
}

// Load reads the points and triangles CSVs (a TIN does not use the binary
// cache; its sources are read on every load), then precomputes orientation, adjacency, the boundary cycle and the
// barycentric edge-vector basis used by CalcDeformation.
func (t *TIN) Load(openPoints, openTriangles func() (*csvschema.Reader, error)) error {
	if t.loaded {
		return nil
	}
	defer func() { t.loaded = true }()

	t.points = make([]point, t.NPt+1) // index 0 sentinel (0,0)
	t.data.Set(0, make([]float64, len(t.Columns)))

	if err := t.loadPoints(openPoints); err != nil {
		return err
	}
	t.data.Finalize()

	if err := t.loadTriangles(openTriangles); err != nil {
		return err
	}

	return t.setupTriangulation()
}

func (t *TIN) loadPoints(open func() (*csvschema.Reader, error)) error {
	src, err := open()
	if err != nil {
		return err
	}
	defer src.Close()

	npt := 0
	for {
		rec, err := src.Next()
		if err != nil {
			if isEOF(err) {
				break
			}
			return err
		}
		npt++
		if npt > t.NPt {
			return dmerrors.NewDefinition("too many points in triangulation model for %s", t.Name)
		}
		idVal, _ := rec.Get("id")
		id, _ := idVal.Int()
		if int(id) != npt {
			return dmerrors.NewDefinition("TIN point id out of sequence: %d for %s", id, t.Name)
		}
		lonVal, _ := rec.Get("lon")
		latVal, _ := rec.Get("lat")
		lon, _ := lonVal.Float()
		lat, _ := latVal.Float()
		if lon < t.MinLon || lon > t.MaxLon || lat < t.MinLat || lat > t.MaxLat {
			return dmerrors.NewDefinition("TIN latitude/longitude out of range: (%v,%v) for %s", lon, lat, t.Name)
		}

		group := rec.Group("data")
		values := make([]float64, len(group))
		for i, v := range group {
			if v.IsNull() {
				values[i] = math.NaN()
				continue
			}
			f, _ := v.Float()
			values[i] = f
		}
		t.data.Set(npt, values)
		t.points[npt] = point{lon, lat}
	}
	if npt != t.NPt {
		return dmerrors.NewDefinition("not enough points in triangulation model - expected %d found %d for %s", t.NPt, npt, t.Name)
	}
	return nil
}

func (t *TIN) loadTriangles(open func() (*csvschema.Reader, error)) error {
	src, err := open()
	if err != nil {
		return err
	}
	defer src.Close()

	t.triangles = make([][3]int, 0, t.NTrg)
	for {
		rec, err := src.Next()
		if err != nil {
			if isEOF(err) {
				break
			}
			return err
		}
		if len(t.triangles) >= t.NTrg {
			return dmerrors.NewDefinition("too many triangles in triangulation model for %s", t.Name)
		}
		group := rec.Group("ids")
		if len(group) != 3 {
			return dmerrors.NewDefinition("triangle row does not have 3 point ids for %s", t.Name)
		}
		var ids [3]int
		for i, v := range group {
			n, _ := v.Int()
			if n < 1 || int(n) > t.NPt {
				return dmerrors.NewDefinition("invalid triangle point id %d for %s", n, t.Name)
			}
			ids[i] = int(n)
		}
		t.triangles = append(t.triangles, ids)
	}
	if len(t.triangles) != t.NTrg {
		return dmerrors.NewDefinition("not enough triangle definitions in trig file - expected %d found %d for %s", t.NTrg, len(t.triangles), t.Name)
	}
	return nil
}

type edgeKey [2]int

func (t *TIN) setupTriangulation() error {
	n := len(t.triangles)
	areas := make([]float64, n)
	for i, tri := range t.triangles {
		p0, p1, p2 := t.points[tri[0]], t.points[tri[1]], t.points[tri[2]]
		areas[i] = cross2(sub(p1, p0), sub(p2, p0))
		if areas[i] < 0 {
			return dmerrors.NewDefinition("triangle %d is clockwise (ids %v, area %v) in %s", i, tri, areas[i], t.Name)
		}
	}

	t.adjacent = make([][3]int, n)
	for i := range t.adjacent {
		t.adjacent[i] = [3]int{-1, -1, -1}
	}

	edges := make(map[edgeKey][2]int, 3*n) // (from,to) -> (triangle, edge index)
	boundary := make(map[int]int)
	for ti, tri := range t.triangles {
		for i := 0; i < 3; i++ {
			from, to := tri[(i+1)%3], tri[(i+2)%3]
			key := edgeKey{from, to}
			if _, dup := edges[key]; dup {
				return dmerrors.NewDefinition("edge %d %d repeated in triangulation definition for %s", from, to, t.Name)
			}
			edges[key] = [2]int{ti, i}
		}
	}

	nedge := 0
	start := 0
	for key, te := range edges {
		rev := edgeKey{key[1], key[0]}
		if other, ok := edges[rev]; ok {
			t.adjacent[te[0]][te[1]] = other[0]
		} else {
			nedge++
			boundary[key[0]] = key[1]
			start = key[0]
		}
	}

	if nedge > 0 {
		nloop := 0
		p0 := start
		for {
			p1, ok := boundary[p0]
			if !ok {
				return dmerrors.NewDefinition("triangle boundary error at node %d in %s", p0, t.Name)
			}
			p2, ok := boundary[p1]
			if !ok {
				return dmerrors.NewDefinition("triangle boundary error at node %d in %s", p1, t.Name)
			}
			area := cross2(sub(t.points[p1], t.points[p2]), sub(t.points[p1], t.points[p0]))
			if area < 0 {
				return dmerrors.NewDefinition("triangulation boundary concave at node %d in %s", p1, t.Name)
			}
			p0 = p1
			nloop++
			if p0 == start {
				break
			}
			if nloop >= nedge {
				return dmerrors.NewDefinition("invalid triangulation boundary in %s", t.Name)
			}
		}
		if nloop < nedge {
			return dmerrors.NewDefinition("triangulation is not a single convex polygon in %s", t.Name)
		}
	}

	t.centroids = make([]point, n)
	t.edgeVec = make([][3]point, n)
	for i, tri := range t.triangles {
		p0, p1, p2 := t.points[tri[0]], t.points[tri[1]], t.points[tri[2]]
		t.centroids[i] = point{(p0.lon + p1.lon + p2.lon) / 3, (p0.lat + p1.lat + p2.lat) / 3}
		area := areas[i]
		t.edgeVec[i] = [3]point{
			scale(sub(p2, p1), 1/area),
			scale(sub(p0, p2), 1/area),
			scale(sub(p1, p0), 1/area),
		}
	}
	return nil
}

func scale(p point, f float64) point { return point{p.lon * f, p.lat * f} }

// CalcDeformation locates the triangle containing (x, y) by walking from the
// triangle whose centroid is nearest, then interpolates its three vertex
// rows by barycentric weight.
func (t *TIN) CalcDeformation(x, y float64) ([deformlist.NumCanonical]float64, error) {
	var zero [deformlist.NumCanonical]float64
	if !t.loaded {
		return zero, dmerrors.NewDefinition("TIN %s used before Load", t.Name)
	}

	x0 := x
	for x < t.MinLon {
		x += 360
	}
	if x < t.MinLon || x > t.MaxLon || y < t.MinLat || y > t.MaxLat {
		return zero, dmerrors.NewOutOfRange("%v,%v is out of range of TIN for %s", x0, y, t.Name)
	}

	tri, weights, err := t.findTriangle(x, y)
	if err != nil {
		return zero, err
	}
	ids := t.triangles[tri]
	rows := []int{ids[0], ids[1], ids[2]}
	return t.data.CalcDeformation(rows, weights[:])
}

func (t *TIN) findTriangle(x, y float64) (int, [3]float64, error) {
	pt := point{x, y}

	start := 0
	best := math.MaxFloat64
	for i, c := range t.centroids {
		d := math.Hypot(c.lon-x, c.lat-y)
		if d < best {
			best = d
			start = i
		}
	}

	visited := make(map[int]bool)
	for {
		visited[start] = true
		var weights [3]float64
		rel := sub(pt, t.centroids[start])
		worst := -1
		for i := 0; i < 3; i++ {
			weights[i] = cross2(t.edgeVec[start][i], rel) + 1.0/3.0
			if weights[i] < 0 && (worst == -1 || weights[i] < weights[worst]) {
				worst = i
			}
		}
		next := -1
		if worst != -1 {
			next = t.adjacent[start][worst]
		}
		if next < 0 {
			if weightsAllNonNegative(weights) {
				return start, weights, nil
			}
			return 0, weights, dmerrors.NewOutOfRange("%v,%v is out of range of triangulation for %s", x, y, t.Name)
		}
		if visited[next] {
			return 0, weights, dmerrors.NewOutOfRange("%v,%v is out of range of triangulation for %s", x, y, t.Name)
		}
		start = next
	}
}

func weightsAllNonNegative(w [3]float64) bool {
	return w[0] >= 0 && w[1] >= 0 && w[2] >= 0
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
