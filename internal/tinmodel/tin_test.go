package tinmodel

import (
	"strings"
	"testing"

	"github.com/geocrust/defmodel/internal/csvschema"
	"github.com/geocrust/defmodel/internal/deformlist"
)

// A 2x2 unit square split into two counter-clockwise triangles:
//
//	3----4
//	|  / |
//	| /  |
//	1----2
func newSquareTIN(t *testing.T) *TIN {
	t.Helper()
	columns := []int{deformlist.DE, deformlist.DN}
	tn, err := New("sq", "pts.csv", "trg.csv", 0, 1, 0, 1, 4, 2, columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pointsCSV := "id,lon,lat,de,dn\n" +
		"1,0,0,0.0,0.0\n" +
		"2,1,0,1.0,0.0\n" +
		"3,0,1,0.0,1.0\n" +
		"4,1,1,1.0,1.0\n"
	pointsSchema, err := PointsSchema(columns)
	if err != nil {
		t.Fatalf("PointsSchema: %v", err)
	}
	openPoints := func() (*csvschema.Reader, error) {
		return csvschema.NewReader(strings.NewReader(pointsCSV), "pts.csv", pointsSchema)
	}

	trianglesCSV := "id1,id2,id3\n" +
		"1,2,3\n" +
		"2,4,3\n"
	trianglesSchema, err := TrianglesSchema()
	if err != nil {
		t.Fatalf("TrianglesSchema: %v", err)
	}
	openTriangles := func() (*csvschema.Reader, error) {
		return csvschema.NewReader(strings.NewReader(trianglesCSV), "trg.csv", trianglesSchema)
	}

	if err := tn.Load(openPoints, openTriangles); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tn
}

func TestTINInterpolatesInteriorPoint(t *testing.T) {
	tn := newSquareTIN(t)
	acc, err := tn.CalcDeformation(0.5, 0.25)
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	// Linear field de == lon, dn == lat over this mesh.
	if diff := acc[deformlist.DE] - 0.5; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("de = %v, want 0.5", acc[deformlist.DE])
	}
	if diff := acc[deformlist.DN] - 0.25; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("dn = %v, want 0.25", acc[deformlist.DN])
	}
}

func TestTINVertexReturnsNodalValue(t *testing.T) {
	tn := newSquareTIN(t)
	acc, err := tn.CalcDeformation(1.0, 1.0)
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	if diff := acc[deformlist.DE] - 1.0; diff < -1e-6 || diff > 1e-6 {
		t.Errorf("de at (1,1) = %v, want 1.0", acc[deformlist.DE])
	}
}

func TestTINOutOfRange(t *testing.T) {
	tn := newSquareTIN(t)
	if _, err := tn.CalcDeformation(2.0, 2.0); err == nil {
		t.Fatal("expected OutOfRangeError outside bounding box")
	}
}

func TestTINRejectsClockwiseTriangle(t *testing.T) {
	columns := []int{deformlist.DE}
	tn, err := New("bad", "pts.csv", "trg.csv", 0, 1, 0, 1, 3, 1, columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pointsCSV := "id,lon,lat,de\n1,0,0,0.0\n2,1,0,0.0\n3,0,1,0.0\n"
	pointsSchema, _ := PointsSchema(columns)
	openPoints := func() (*csvschema.Reader, error) {
		return csvschema.NewReader(strings.NewReader(pointsCSV), "pts.csv", pointsSchema)
	}
	// 1,3,2 visits the same three points in clockwise order: negative area.
	trianglesCSV := "id1,id2,id3\n1,3,2\n"
	trianglesSchema, _ := TrianglesSchema()
	openTriangles := func() (*csvschema.Reader, error) {
		return csvschema.NewReader(strings.NewReader(trianglesCSV), "trg.csv", trianglesSchema)
	}
	if err := tn.Load(openPoints, openTriangles); err == nil {
		t.Fatal("expected ModelDefinitionError for clockwise triangle")
	}
}
