// Package defmodel evaluates geodetic crustal-deformation models: the
// accumulated tectonic displacement and velocity fields that relate a
// historical datum realization to the present day (or between any two named
// model versions).
//
// # Basic Usage
//
//	model, err := defmodel.Open("/data/ndm", defmodel.DefaultOpenOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	date, _ := timeval.Parse("2021-06-15")
//	deformation, err := model.CalcDeformation(172.5, -41.2, date, timeval.Time{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("east=%v north=%v up=%v\n", deformation[0], deformation[1], deformation[2])
//
// # Opening a Model
//
// A model directory carries metadata.csv, version.csv, model.csv, and one
// subdirectory per submodel with its own component.csv and grid/TIN source
// files. OpenOptions controls which submodels load, whether every spatial
// submodel is read eagerly or left lazy, and whether the binary cache is
// used:
//
//	opts := defmodel.DefaultOpenOptions()
//	opts.SubmodelFilter = "ndm+patch_1"
//	opts.UseCache = true
//	model, err := defmodel.Open("/data/ndm", opts)
//
// # Versions and Reverse Patches
//
// A model evolves over named versions as patches are added or retired.
// SetVersion selects the active component set; passing a base version turns
// subsequent queries into the net displacement between the two versions —
// the correction a coordinate computed under one version needs to become
// valid under another:
//
//	model.SetVersion("20180101", "")
//	after, _, _, _ := model.ApplyTo(lon, lat, hgt, date, timeval.Time{}, false)
//
//	model.SetVersion("20180101", "20100101")
//	patch, err := model.CalcDeformation(lon, lat, date, timeval.Time{})
//
// # Applying Deformation to Coordinates
//
// ApplyTo and ApplyToPoints convert the east/north deformation components
// from metres to degrees using the model's ellipsoid before adding them to a
// geodetic coordinate. CalcLLHFunc and CalcXYZFunc bind a fixed point and
// return a closure of date, for repeated evaluation against a time series:
//
//	toDate := model.CalcLLHFunc(lon, lat, hgt)
//	for _, d := range epochs {
//	    lon, lat, hgt, err := toDate(d)
//	}
//
// # Error Handling
//
// Every evaluation call can fail with one of four categories (see errors.go
// for the full taxonomy): a DefinitionError from Open means the model
// directory itself is malformed; InvalidValueError means one CSV cell
// didn't parse; OutOfRangeError means the query point or date fell outside
// a non-complete submodel's coverage; UndefinedValueError means the nearest
// contributing grid nodes were themselves undefined. Use IsOutOfRange and
// IsUndefinedValue rather than type-asserting directly, since OutOfRange is
// a refinement of UndefinedValue.
package defmodel
