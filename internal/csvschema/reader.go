package csvschema

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/geocrust/defmodel/internal/dmerrors"
	"github.com/geocrust/defmodel/internal/timeval"
)

// Kind identifies the Go-side representation a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindStr
	KindTime
	KindBool
)

// Value is a single parsed cell, tagged by Kind. The zero Value is KindNull.
type Value struct {
	Kind Kind
	i    int64
	f    float64
	s    string
	tm   timeval.Time
	b    bool
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) Int() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Float() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) Str() (string, bool) {
	if v.Kind != KindStr {
		return "", false
	}
	return v.s, true
}

func (v Value) Time() (timeval.Time, bool) {
	if v.Kind != KindTime {
		return timeval.Time{}, false
	}
	return v.tm, true
}

func (v Value) Bool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Record is one parsed data row: a value per non-grouped field name, and a
// slice per grouped alias, in schema field order.
type Record struct {
	File   string
	Num    int
	values map[string]Value
	groups map[string][]Value
}

// Get returns the value for a non-grouped field, and whether it was present
// in the schema at all (not whether it is null — check IsNull for that).
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Group returns the ordered values collected under a grouped alias.
func (r *Record) Group(alias string) []Value {
	return r.groups[alias]
}

// headerLabel is the literal text expected in the file's header row for f.
// Grouping a field under an alias only changes how its parsed value is
// collected on Record (see Group); the header text itself is always just
// the field's own name.
func headerLabel(f FieldSpec) string {
	name := f.Name
	if f.ColumnOptional {
		name += "?"
	}
	return name
}

// Reader reads CSV records against a fixed Schema, reconciling the file's
// header row against the schema's field order once at open time.
type Reader struct {
	schema    Schema
	csv       *csv.Reader
	file      string
	positions []int // per schema field index: column index in file, or -1 if absent
	num       int
	closer    io.Closer
}

// Open opens path and builds a Reader validated against schema.
func Open(path string, schema Schema) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r, err := NewReader(f, path, schema)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader builds a Reader over an already-open io.Reader, reconciling the
// first row against schema by positional matching.
func NewReader(src io.Reader, file string, schema Schema) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", file, err)
	}

	positions := make([]int, len(schema.Fields))
	fileIdx := 0
	for schemaIdx, f := range schema.Fields {
		label := headerLabel(f)
		if fileIdx < len(header) && header[fileIdx] == label {
			positions[schemaIdx] = fileIdx
			fileIdx++
			continue
		}
		if f.ColumnOptional {
			positions[schemaIdx] = -1
			continue
		}
		return nil, dmerrors.NewDefinition(
			"%s: header mismatch at position %d: expected %q, found %q",
			file, fileIdx, label, headerAt(header, fileIdx))
	}
	if fileIdx != len(header) {
		return nil, dmerrors.NewDefinition(
			"%s: header mismatch at position %d: unexpected extra column %q",
			file, fileIdx, headerAt(header, fileIdx))
	}

	return &Reader{schema: schema, csv: cr, file: file, positions: positions}, nil
}

func headerAt(header []string, i int) string {
	if i < 0 || i >= len(header) {
		return "<end of row>"
	}
	return header[i]
}

// Close releases the underlying file, if Reader was built via Open.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Next reads and parses the next data record, skipping blank lines. It
// returns io.EOF once the file is exhausted.
func (r *Reader) Next() (*Record, error) {
	for {
		row, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s, record %d: %w", r.file, r.num+1, err)
		}
		r.num++
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue // blank line
		}
		return r.parseRow(row)
	}
}

func (r *Reader) parseRow(row []string) (*Record, error) {
	rec := &Record{
		File:   r.file,
		Num:    r.num,
		values: make(map[string]Value, len(r.schema.Fields)),
		groups: make(map[string][]Value),
	}

	for schemaIdx, f := range r.schema.Fields {
		pos := r.positions[schemaIdx]
		raw := ""
		if pos >= 0 && pos < len(row) {
			raw = row[pos]
		}
		raw = strings.TrimSpace(raw)

		val, err := r.parseCell(f, raw)
		if err != nil {
			return nil, err
		}

		if f.GroupAlias != "" {
			rec.groups[f.GroupAlias] = append(rec.groups[f.GroupAlias], val)
		} else {
			rec.values[f.Name] = val
		}
	}
	return rec, nil
}

func (r *Reader) parseCell(f FieldSpec, raw string) (Value, error) {
	if raw == "" {
		if f.ValueOptional || f.ColumnOptional {
			return Value{Kind: KindNull}, nil
		}
		return Value{}, &dmerrors.InvalidValueError{
			File: r.file, Record: r.num, Field: f.Name, Value: raw,
			Reason: "required field is blank",
		}
	}

	switch f.Type {
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, &dmerrors.InvalidValueError{
				File: r.file, Record: r.num, Field: f.Name, Value: raw, Reason: "not an integer",
			}
		}
		return Value{Kind: KindInt, i: n}, nil

	case Float:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, &dmerrors.InvalidValueError{
				File: r.file, Record: r.num, Field: f.Name, Value: raw, Reason: "not a float",
			}
		}
		return Value{Kind: KindFloat, f: x}, nil

	case Str:
		return Value{Kind: KindStr, s: raw}, nil

	case DateTime:
		t, err := timeval.Parse(raw)
		if err != nil {
			return Value{}, &dmerrors.InvalidValueError{
				File: r.file, Record: r.num, Field: f.Name, Value: raw, Reason: err.Error(),
			}
		}
		return Value{Kind: KindTime, tm: t}, nil

	case Bool:
		switch raw {
		case "Y", "y":
			return Value{Kind: KindBool, b: true}, nil
		case "N", "n":
			return Value{Kind: KindBool, b: false}, nil
		default:
			return Value{}, &dmerrors.InvalidValueError{
				File: r.file, Record: r.num, Field: f.Name, Value: raw, Reason: "not Y or N",
			}
		}

	case Regex:
		if !f.Pattern.MatchString(raw) {
			return Value{}, &dmerrors.InvalidValueError{
				File: r.file, Record: r.num, Field: f.Name, Value: raw,
				Reason: fmt.Sprintf("does not match pattern %s", f.Pattern.String()),
			}
		}
		return Value{Kind: KindStr, s: raw}, nil

	default:
		return Value{}, dmerrors.NewDefinition("unknown field type for %q", f.Name)
	}
}
