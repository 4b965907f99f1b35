// Package csvschema implements the field-typed, header-validated tabular
// reader used to load model.csv, version.csv, metadata.csv and every
// component.csv/grid CSV in a deformation model directory.
//
// A Schema is an ordered list of typed fields. Fields may be value-optional
// (a blank cell parses to null rather than failing), column-optional (the
// header may be entirely absent from a given file), or grouped (several
// fields collect their values, in field order, under one attribute name).
package csvschema

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/geocrust/defmodel/internal/dmerrors"
)

var validate = validator.New()

// FieldType identifies how a column's text is parsed.
type FieldType int

const (
	Int FieldType = iota
	Float
	Str
	DateTime
	Bool
	Regex
)

// FieldSpec describes one schema column.
type FieldSpec struct {
	Name           string
	Type           FieldType
	Pattern        *regexp.Regexp // only for Type == Regex
	ValueOptional  bool           // blank cell -> null instead of error
	ColumnOptional bool           // header may be absent from the file entirely
	GroupAlias     string         // non-empty: value is appended to this grouped attribute
}

func field(name string, t FieldType) FieldSpec {
	return FieldSpec{Name: name, Type: t}
}

// IntField declares a required integer column.
func IntField(name string) FieldSpec { return field(name, Int) }

// FloatField declares a required float column.
func FloatField(name string) FieldSpec { return field(name, Float) }

// StrField declares a required string column.
func StrField(name string) FieldSpec { return field(name, Str) }

// DateTimeField declares a required date/time column (parsed via timeval.Parse).
func DateTimeField(name string) FieldSpec { return field(name, DateTime) }

// BoolField declares a required Y/N boolean column.
func BoolField(name string) FieldSpec { return field(name, Bool) }

// RegexField declares a required column whose text must match pattern.
func RegexField(name, pattern string) FieldSpec {
	return FieldSpec{Name: name, Type: Regex, Pattern: regexp.MustCompile(pattern)}
}

// Optional marks the field's value as optional: a blank cell parses to null
// instead of raising InvalidValue.
func (f FieldSpec) Optional() FieldSpec {
	f.ValueOptional = true
	return f
}

// OptionalColumn marks the field's header as optional: the column may be
// absent from the file entirely.
func (f FieldSpec) OptionalColumn() FieldSpec {
	f.ColumnOptional = true
	return f
}

// Grouped collects this field's parsed value, in schema field order, under a
// single attribute named alias shared by every field that groups into it.
func (f FieldSpec) Grouped(alias string) FieldSpec {
	f.GroupAlias = alias
	return f
}

// Schema is an ordered list of typed fields.
type Schema struct {
	Fields []FieldSpec
}

type fieldNameDTO struct {
	Name string `validate:"required"`
}

// NewSchema builds a Schema from the given fields, in header order. It
// validates that every field carries a name and that no two non-grouped
// fields share one, before any file is opened against it.
func NewSchema(fields ...FieldSpec) (Schema, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := validate.Struct(fieldNameDTO{Name: f.Name}); err != nil {
			return Schema{}, dmerrors.NewDefinition("schema field has no name: %v", err)
		}
		if f.GroupAlias != "" {
			continue // grouped fields intentionally share a name/alias
		}
		if seen[f.Name] {
			return Schema{}, dmerrors.NewDefinition("duplicate schema field name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return Schema{Fields: fields}, nil
}
