package defmodel

import (
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/geocrust/defmodel/internal/csvschema"
	"github.com/geocrust/defmodel/internal/dmerrors"
	"github.com/geocrust/defmodel/internal/timeval"
)

var metadataValidate = validator.New()

// ModelMetadata holds the mandatory descriptive fields every model directory
// must carry in its metadata.csv, plus any extra item/value pairs the file
// defines beyond the required set.
type ModelMetadata struct {
	ModelName        string `validate:"required"`
	Description      string `validate:"required"`
	Version          string `validate:"required"`
	DatumCode        string `validate:"required"`
	DatumName        string `validate:"required"`
	DatumEpoch       string `validate:"required"`
	DatumEpsgSrid    string `validate:"required"`
	EllipsoidA       string `validate:"required"`
	EllipsoidRf      string `validate:"required"`
	Authority        string `validate:"required"`
	AuthorityWebsite string `validate:"required"`
	AuthorityAddress string `validate:"required"`
	AuthorityEmail   string `validate:"required"`
	SourceURL        string `validate:"required"`

	items map[string]string
}

// Item returns the raw value of an arbitrary metadata.csv key, including
// ones beyond the fourteen mandatory fields.
func (m ModelMetadata) Item(key string) (string, bool) {
	v, ok := m.items[key]
	return v, ok
}

func metadataCSVSchema() (csvschema.Schema, error) {
	return csvschema.NewSchema(
		csvschema.StrField("item"),
		csvschema.StrField("value").Optional(),
	)
}

// loadMetadata reads metadata.csv and validates that every mandatory key is
// present and non-empty.
func loadMetadata(path string) (ModelMetadata, error) {
	schema, err := metadataCSVSchema()
	if err != nil {
		return ModelMetadata{}, err
	}
	r, err := csvschema.Open(path, schema)
	if err != nil {
		return ModelMetadata{}, dmerrors.NewDefinition("opening metadata.csv: %s", err)
	}

	raw := make(map[string]string)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ModelMetadata{}, err
		}
		itemVal, _ := rec.Get("item")
		item, _ := itemVal.Str()
		valueVal, _ := rec.Get("value")
		value, _ := valueVal.Str()
		raw[item] = value
	}

	md := ModelMetadata{
		ModelName:        raw["model_name"],
		Description:      raw["description"],
		Version:          raw["version"],
		DatumCode:        raw["datum_code"],
		DatumName:        raw["datum_name"],
		DatumEpoch:       raw["datum_epoch"],
		DatumEpsgSrid:    raw["datum_epsg_srid"],
		EllipsoidA:       raw["ellipsoid_a"],
		EllipsoidRf:      raw["ellipsoid_rf"],
		Authority:        raw["authority"],
		AuthorityWebsite: raw["authority_website"],
		AuthorityAddress: raw["authority_address"],
		AuthorityEmail:   raw["authority_email"],
		SourceURL:        raw["source_url"],
		items:            raw,
	}
	if err := metadataValidate.Struct(md); err != nil {
		return ModelMetadata{}, dmerrors.NewDefinition("metadata.csv is missing one or more mandatory keys: %s", err)
	}
	return md, nil
}

// VersionRecord is one row of version.csv: a named version of the model,
// the date it was released, and whether adopting it requires a reverse
// patch to be applied to coordinates computed under the previous version.
type VersionRecord struct {
	Version      string `validate:"required"`
	ReleaseDate  timeval.Time
	ReversePatch bool
	Reason       string
}

func versionCSVSchema() (csvschema.Schema, error) {
	return csvschema.NewSchema(
		csvschema.StrField("version"),
		csvschema.DateTimeField("release_date"),
		csvschema.BoolField("reverse_patch"),
		csvschema.StrField("reason").Optional(),
	)
}

func loadVersions(path string) ([]VersionRecord, error) {
	schema, err := versionCSVSchema()
	if err != nil {
		return nil, err
	}
	r, err := csvschema.Open(path, schema)
	if err != nil {
		return nil, dmerrors.NewDefinition("opening version.csv: %s", err)
	}

	var out []VersionRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		versionVal, _ := rec.Get("version")
		version, _ := versionVal.Str()
		releaseVal, _ := rec.Get("release_date")
		release, _ := releaseVal.Time()
		reversePatchVal, _ := rec.Get("reverse_patch")
		reversePatch, _ := reversePatchVal.Bool()
		reasonVal, _ := rec.Get("reason")
		reason, _ := reasonVal.Str()

		v := VersionRecord{
			Version:      version,
			ReleaseDate:  release,
			ReversePatch: reversePatch,
			Reason:       reason,
		}
		if err := metadataValidate.Struct(v); err != nil {
			return nil, dmerrors.NewDefinition("version.csv record %d: %s", len(out)+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
