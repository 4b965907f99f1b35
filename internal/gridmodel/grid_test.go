package gridmodel

import (
	"strings"
	"testing"

	"github.com/geocrust/defmodel/internal/csvschema"
	"github.com/geocrust/defmodel/internal/deformlist"
)

type fakeCache struct {
	store map[string][]float64
}

func (c *fakeCache) Get(path, fingerprint string) ([]float64, bool) {
	v, ok := c.store[path+"#"+fingerprint]
	return v, ok
}

func (c *fakeCache) Set(path, fingerprint string, data []float64) {
	if c.store == nil {
		c.store = map[string][]float64{}
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	c.store[path+"#"+fingerprint] = cp
}

func open2x2(t *testing.T) (*Grid, func() (*csvschema.Reader, error)) {
	t.Helper()
	columns := []int{deformlist.DE, deformlist.DN, deformlist.DU}
	g, err := New("ndm", "ndm.csv", 170, 172, -42, -40, 2, 2, columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := "lon,lat,de,dn,du\n" +
		"170,-42,0.0,0.01,0.0\n" +
		"172,-42,0.0,0.01,0.0\n" +
		"170,-40,0.0,0.01,0.0\n" +
		"172,-40,0.0,0.01,0.0\n"
	schema, err := Schema(columns)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	open := func() (*csvschema.Reader, error) {
		return csvschema.NewReader(strings.NewReader(data), "ndm.csv", schema)
	}
	return g, open
}

func TestGridLoadAndInteriorInterpolation(t *testing.T) {
	g, open := open2x2(t)
	if err := g.Load("fp1", nil, open); err != nil {
		t.Fatalf("Load: %v", err)
	}

	acc, err := g.CalcDeformation(171.0, -41.0)
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	if diff := acc[deformlist.DN] - 0.01; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("dn = %v, want 0.01", acc[deformlist.DN])
	}
}

func TestGridCornerReturnsNodalValue(t *testing.T) {
	g, open := open2x2(t)
	if err := g.Load("fp1", nil, open); err != nil {
		t.Fatalf("Load: %v", err)
	}
	acc, err := g.CalcDeformation(170.0, -42.0)
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	if diff := acc[deformlist.DN] - 0.01; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("corner dn = %v, want 0.01", acc[deformlist.DN])
	}
}

func TestGridOutOfRangeEast(t *testing.T) {
	g, open := open2x2(t)
	if err := g.Load("fp1", nil, open); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := g.CalcDeformation(173.0, -41.0); err == nil {
		t.Fatal("expected OutOfRangeError for x > max_lon")
	}
}

func TestGridWrapsAroundWest(t *testing.T) {
	columns := []int{deformlist.DE, deformlist.DN, deformlist.DU}
	g, err := New("ndm", "ndm.csv", 170, 172, -42, -40, 2, 2, columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := "lon,lat,de,dn,du\n" +
		"170,-42,0.0,0.01,0.0\n" +
		"172,-42,0.0,0.01,0.0\n" +
		"170,-40,0.0,0.01,0.0\n" +
		"172,-40,0.0,0.01,0.0\n"
	schema, err := Schema(columns)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	open := func() (*csvschema.Reader, error) {
		return csvschema.NewReader(strings.NewReader(data), "ndm.csv", schema)
	}
	if err := g.Load("fp1", nil, open); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 170 - 360 + epsilon should wrap back to the west edge of the grid.
	x := 170.0 - 360 + 1e-6
	if _, err := g.CalcDeformation(x, -41.0); err != nil {
		t.Errorf("wrap-around query failed: %v", err)
	}
}

func TestGridCachedLoadSkipsCSV(t *testing.T) {
	columns := []int{deformlist.DE, deformlist.DN, deformlist.DU}
	cache := &fakeCache{}
	g1, open1 := open2x2(t)
	if err := g1.Load("fp1", cache, open1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	g2, err := New("ndm", "ndm.csv", 170, 172, -42, -40, 2, 2, columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	openPanics := func() (*csvschema.Reader, error) {
		t.Fatal("should not open CSV source on cache hit")
		return nil, nil
	}
	if err := g2.Load("fp1", cache, openPanics); err != nil {
		t.Fatalf("Load from cache: %v", err)
	}
	acc, err := g2.CalcDeformation(171.0, -41.0)
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	if diff := acc[deformlist.DN] - 0.01; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("dn from cached load = %v, want 0.01", acc[deformlist.DN])
	}
}
