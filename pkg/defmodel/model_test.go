package defmodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/geocrust/defmodel/internal/timeval"
)

// newVelocityModel builds the model from spec §8's end-to-end scenario
// table: a single velocity submodel "ndm", a 2x2 grid spanning
// lon in {170, 172}, lat in {-42, -40}, every node carrying a
// (0.0, 0.01, 0.0) m/yr displacement, reference epoch 2000-01-01, one
// version "20000101".
func newVelocityModel(t *testing.T) *Model {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "metadata.csv"), ""+
		"item,value\n"+
		"model_name,ndm\n"+
		"description,test national deformation model\n"+
		"version,20000101\n"+
		"datum_code,TEST2000\n"+
		"datum_name,Test Datum 2000\n"+
		"datum_epoch,2000-01-01\n"+
		"datum_epsg_srid,9999\n"+
		"ellipsoid_a,6378137.0\n"+
		"ellipsoid_rf,298.257222101\n"+
		"authority,Test Authority\n"+
		"authority_website,https://example.test\n"+
		"authority_address,1 Test Street\n"+
		"authority_email,geodesy@example.test\n"+
		"source_url,https://example.test/ndm\n")

	writeFile(t, filepath.Join(dir, "version.csv"), ""+
		"version,release_date,reverse_patch,reason\n"+
		"20000101,2000-01-01,N,initial release\n")

	writeFile(t, filepath.Join(dir, "model.csv"), ""+
		"submodel,description,version_added,version_revoked,reverse_patch\n"+
		"ndm,national deformation model,20000101,0,N\n")

	submodelDir := filepath.Join(dir, "ndm")
	if err := os.Mkdir(submodelDir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	writeFile(t, filepath.Join(submodelDir, "component.csv"), ""+
		"version_added,version_revoked,reverse_patch,component,priority,min_lon,max_lon,min_lat,max_lat,"+
		"spatial_complete,time_complete,min_date,max_date,npoints1,npoints2,"+
		"displacement_type,error_type,max_displacement,spatial_model,time_function,"+
		"time0,factor0,time1,factor1,decay,file1,file2,description\n"+
		"20000101,0,N,0,0,170,172,-42,-40,N,Y,,,2,2,3d,none,0.01,llgrid,velocity,2000-01-01,,,,,grid.csv,,ndm velocity grid\n")

	writeFile(t, filepath.Join(submodelDir, "grid.csv"), ""+
		"lon,lat,de,dn,du\n"+
		"170,-42,0.0,0.01,0.0\n"+
		"172,-42,0.0,0.01,0.0\n"+
		"170,-40,0.0,0.01,0.0\n"+
		"172,-40,0.0,0.01,0.0\n")

	m, err := Open(dir, DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

// velocityFactor mirrors timefunc's day/365.2425 scaling, so expectations
// here track the same convention CalcDeformation actually uses rather than
// assuming a calendar year is exactly 365.2425 days (it isn't, across a leap
// day).
func velocityFactor(t *testing.T, date, time0 string) float64 {
	t.Helper()
	d, err := timeval.Parse(date)
	if err != nil {
		t.Fatalf("Parse %s: %v", date, err)
	}
	t0, err := timeval.Parse(time0)
	if err != nil {
		t.Fatalf("Parse %s: %v", time0, err)
	}
	return d.DaysAfter(t0) / 365.2425
}

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// Scenario 1: calcDeformation(171, -41, 2001-01-01) -> (0, factor*0.01, 0, 0, 0)
func TestScenario1_CalcDeformationNoBaseDate(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")

	v, err := m.CalcDeformation(171.0, -41.0, date, timeval.Time{})
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	factor := velocityFactor(t, "2001-01-01", "2000-01-01")
	want := 0.01 * factor
	if !approxEqual(v[1], want, 1e-9) {
		t.Errorf("dn = %v, want %v", v[1], want)
	}
	for _, i := range []int{0, 2, 3, 4} {
		if !approxEqual(v[i], 0, 1e-9) {
			t.Errorf("component %d = %v, want 0", i, v[i])
		}
	}
}

// Scenario 2: calcDeformation(171, -41, 2001-01-01, baseDate=2000-01-01) ==
// scenario 1, since baseDate = time0 contributes f(time0) = 0.
func TestScenario2_CalcDeformationWithBaseDateAtEpoch(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")
	base, _ := timeval.Parse("2000-01-01")

	withBase, err := m.CalcDeformation(171.0, -41.0, date, base)
	if err != nil {
		t.Fatalf("CalcDeformation with base: %v", err)
	}

	m2 := newVelocityModel(t)
	withoutBase, err := m2.CalcDeformation(171.0, -41.0, date, timeval.Time{})
	if err != nil {
		t.Fatalf("CalcDeformation without base: %v", err)
	}

	for i := range withBase {
		if !approxEqual(withBase[i], withoutBase[i], 1e-9) {
			t.Errorf("component %d: with base=%v without base=%v", i, withBase[i], withoutBase[i])
		}
	}
}

// Scenario 3: calcDeformation(171, -41, 2000-01-01) == zero 5-vector, the
// query date equals the velocity's reference epoch.
func TestScenario3_CalcDeformationAtEpochIsZero(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2000-01-01")

	v, err := m.CalcDeformation(171.0, -41.0, date, timeval.Time{})
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	for i, x := range v {
		if !approxEqual(x, 0, 1e-12) {
			t.Errorf("component %d = %v, want 0", i, x)
		}
	}
}

// Scenario 4: a query just west of min_lon wraps eastward by 360 and still
// misses the grid, raising OutOfRange.
func TestScenario4_QueryJustWestOfMinLonIsOutOfRange(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")

	_, err := m.CalcDeformation(169.9999, -41.0, date, timeval.Time{})
	if !IsOutOfRange(err) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
}

// Scenario 5: applyTo converts the north displacement from metres to
// degrees using the local ellipsoidal scale; east is unaffected since de=0.
func TestScenario5_ApplyToShiftsLatitudeOnly(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")

	lon, lat, hgt, err := m.ApplyTo(171.0, -41.0, 0.0, date, timeval.Time{}, false)
	if err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}
	if !approxEqual(lon, 171.0, 1e-9) {
		t.Errorf("lon = %v, want unchanged 171.0", lon)
	}
	if hgt != 0 {
		t.Errorf("hgt = %v, want unchanged 0", hgt)
	}

	_, dndlt := m.Ellipsoid.MetresPerDegree(171.0, -41.0)
	factor := velocityFactor(t, "2001-01-01", "2000-01-01")
	wantLat := -41.0 + (0.01*factor)/dndlt
	if !approxEqual(lat, wantLat, 1e-9) {
		t.Errorf("lat = %v, want %v", lat, wantLat)
	}
}

// Scenario 6: setVersion(v, v) drops every component to factor 0, so any
// subsequent query evaluates to the zero 5-vector without touching the
// spatial submodel.
func TestScenario6_SetVersionToItselfYieldsZero(t *testing.T) {
	m := newVelocityModel(t)
	if err := m.SetVersion("20000101", "20000101"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if len(m.active) != 0 {
		t.Fatalf("expected no active components, got %d", len(m.active))
	}

	date, _ := timeval.Parse("2001-01-01")
	v, err := m.CalcDeformation(171.0, -41.0, date, timeval.Time{})
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	for i, x := range v {
		if x != 0 {
			t.Errorf("component %d = %v, want 0", i, x)
		}
	}
}

// A corner query returns the nodal value exactly, unblended by
// interpolation weights.
func TestGridCornerQueryReturnsNodalValue(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")

	v, err := m.CalcDeformation(170.0, -42.0, date, timeval.Time{})
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	factor := velocityFactor(t, "2001-01-01", "2000-01-01")
	want := 0.01 * factor
	if !approxEqual(v[1], want, 1e-9) {
		t.Errorf("corner dn = %v, want %v", v[1], want)
	}
}

// applyTo(subtract=false) followed by applyTo(subtract=true) at the same
// date returns the original coordinate, since the two calls use the same
// local metres-per-degree scale (the round-trip is numerical because the
// scale is actually evaluated at the displaced point in general; here the
// east displacement is zero so the point doesn't move in longitude).
func TestApplyToRoundTrip(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")

	lon, lat, hgt, err := m.ApplyTo(171.0, -41.0, 10.0, date, timeval.Time{}, false)
	if err != nil {
		t.Fatalf("ApplyTo forward: %v", err)
	}
	backLon, backLat, backHgt, err := m.ApplyTo(lon, lat, hgt, date, timeval.Time{}, true)
	if err != nil {
		t.Fatalf("ApplyTo reverse: %v", err)
	}
	if !approxEqual(backLon, 171.0, 1e-9) {
		t.Errorf("round-trip lon = %v, want 171.0", backLon)
	}
	if !approxEqual(backLat, -41.0, 1e-9) {
		t.Errorf("round-trip lat = %v, want -41.0", backLat)
	}
	if !approxEqual(backHgt, 10.0, 1e-4) {
		t.Errorf("round-trip hgt = %v, want 10.0", backHgt)
	}
}

func TestCalcLLHFuncMatchesApplyTo(t *testing.T) {
	m := newVelocityModel(t)
	date, _ := timeval.Parse("2001-01-01")

	toDate := m.CalcLLHFunc(171.0, -41.0, 5.0)
	lon, lat, hgt, err := toDate(date)
	if err != nil {
		t.Fatalf("CalcLLHFunc closure: %v", err)
	}
	wantLon, wantLat, wantHgt, err := m.ApplyTo(171.0, -41.0, 5.0, date, timeval.Time{}, false)
	if err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}
	if lon != wantLon || lat != wantLat || hgt != wantHgt {
		t.Errorf("CalcLLHFunc = (%v,%v,%v), want (%v,%v,%v)", lon, lat, hgt, wantLon, wantLat, wantHgt)
	}
}

func TestSetVersionRejectsUnknownVersion(t *testing.T) {
	m := newVelocityModel(t)
	if err := m.SetVersion("99999999", ""); !IsDefinitionError(err) {
		t.Fatalf("expected DefinitionError for unknown version, got %v", err)
	}
}

func TestSubmodelFilterExcludesEverySubmodel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "metadata.csv"), ""+
		"item,value\n"+
		"model_name,ndm\n"+
		"description,test\n"+
		"version,20000101\n"+
		"datum_code,TEST2000\n"+
		"datum_name,Test Datum 2000\n"+
		"datum_epoch,2000-01-01\n"+
		"datum_epsg_srid,9999\n"+
		"ellipsoid_a,6378137.0\n"+
		"ellipsoid_rf,298.257222101\n"+
		"authority,Test Authority\n"+
		"authority_website,https://example.test\n"+
		"authority_address,1 Test Street\n"+
		"authority_email,geodesy@example.test\n"+
		"source_url,https://example.test/ndm\n")
	writeFile(t, filepath.Join(dir, "version.csv"), ""+
		"version,release_date,reverse_patch,reason\n"+
		"20000101,2000-01-01,N,initial release\n")
	writeFile(t, filepath.Join(dir, "model.csv"), ""+
		"submodel,description,version_added,version_revoked,reverse_patch\n"+
		"ndm,national deformation model,20000101,0,N\n")

	opts := DefaultOpenOptions()
	opts.SubmodelFilter = "-ndm"
	m, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()
	if len(m.components) != 0 {
		t.Fatalf("expected no components loaded, got %d", len(m.components))
	}
	if len(m.Submodels) != 1 {
		t.Fatalf("expected model.csv's submodel still enumerated, got %d", len(m.Submodels))
	}
}

func TestSqrtAbsNegativeInput(t *testing.T) {
	if got := sqrtAbs(-4); !approxEqual(got, 2, 1e-12) {
		t.Errorf("sqrtAbs(-4) = %v, want 2", got)
	}
}

func TestColumnsForUnknownDisplacementType(t *testing.T) {
	if _, err := columnsFor("bogus", "none"); !IsDefinitionError(err) {
		t.Fatalf("expected DefinitionError, got %v", err)
	}
}

// A model whose single submodel is a TIN rather than a grid, exercising the
// lltin dispatch branch of getOrBuildSpatialModel end to end: a 2x2 unit
// square split into two counter-clockwise triangles, carrying a linear
// de == lon, dn == lat field under a velocity time function.
func newTINModel(t *testing.T) *Model {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "metadata.csv"), ""+
		"item,value\n"+
		"model_name,tinmod\n"+
		"description,test TIN deformation model\n"+
		"version,20000101\n"+
		"datum_code,TEST2000\n"+
		"datum_name,Test Datum 2000\n"+
		"datum_epoch,2000-01-01\n"+
		"datum_epsg_srid,9999\n"+
		"ellipsoid_a,6378137.0\n"+
		"ellipsoid_rf,298.257222101\n"+
		"authority,Test Authority\n"+
		"authority_website,https://example.test\n"+
		"authority_address,1 Test Street\n"+
		"authority_email,geodesy@example.test\n"+
		"source_url,https://example.test/tin\n")
	writeFile(t, filepath.Join(dir, "version.csv"), ""+
		"version,release_date,reverse_patch,reason\n"+
		"20000101,2000-01-01,N,initial release\n")
	writeFile(t, filepath.Join(dir, "model.csv"), ""+
		"submodel,description,version_added,version_revoked,reverse_patch\n"+
		"patch_tin,tin patch,20000101,0,N\n")

	submodelDir := filepath.Join(dir, "patch_tin")
	if err := os.Mkdir(submodelDir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	writeFile(t, filepath.Join(submodelDir, "component.csv"), ""+
		"version_added,version_revoked,reverse_patch,component,priority,min_lon,max_lon,min_lat,max_lat,"+
		"spatial_complete,time_complete,min_date,max_date,npoints1,npoints2,"+
		"displacement_type,error_type,max_displacement,spatial_model,time_function,"+
		"time0,factor0,time1,factor1,decay,file1,file2,description\n"+
		"20000101,0,N,0,0,0,1,0,1,N,Y,,,4,2,horizontal,none,1.0,lltin,velocity,2000-01-01,,,,,pts.csv,trg.csv,tin patch grid\n")

	writeFile(t, filepath.Join(submodelDir, "pts.csv"), ""+
		"id,lon,lat,de,dn\n"+
		"1,0,0,0.0,0.0\n"+
		"2,1,0,1.0,0.0\n"+
		"3,0,1,0.0,1.0\n"+
		"4,1,1,1.0,1.0\n")
	writeFile(t, filepath.Join(submodelDir, "trg.csv"), ""+
		"id1,id2,id3\n"+
		"1,2,3\n"+
		"2,4,3\n")

	m, err := Open(dir, DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestTINModelInterpolatesInteriorPoint(t *testing.T) {
	m := newTINModel(t)
	date, _ := timeval.Parse("2001-01-01")

	v, err := m.CalcDeformation(0.5, 0.25, date, timeval.Time{})
	if err != nil {
		t.Fatalf("CalcDeformation: %v", err)
	}
	factor := velocityFactor(t, "2001-01-01", "2000-01-01")
	if !approxEqual(v[0], 0.5*factor, 1e-9) {
		t.Errorf("de = %v, want %v", v[0], 0.5*factor)
	}
	if !approxEqual(v[1], 0.25*factor, 1e-9) {
		t.Errorf("dn = %v, want %v", v[1], 0.25*factor)
	}
}

func TestTINModelOutOfRange(t *testing.T) {
	m := newTINModel(t)
	date, _ := timeval.Parse("2001-01-01")

	if _, err := m.CalcDeformation(2.0, 2.0, date, timeval.Time{}); !IsOutOfRange(err) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
}
