package defmodel

import (
	"errors"

	"github.com/geocrust/defmodel/internal/dmerrors"
)

// The four failure categories a caller can see out of this package. They are
// aliases of the internal taxonomy rather than new types, so errors.As works
// identically whether a caller imports defmodel or walks down into the
// submodel packages directly.
type (
	// DefinitionError reports a structural problem discovered while opening
	// a model: a missing file, a bad header, a non-sequential grid node, a
	// clockwise TIN triangle, or two component rows that share a spatial
	// submodel file but disagree about its shape.
	DefinitionError = dmerrors.DefinitionError

	// InvalidValueError reports a CSV cell that failed to parse against its
	// declared schema type.
	InvalidValueError = dmerrors.InvalidValueError

	// UndefinedValueError reports that evaluation produced no usable value —
	// a NaN grid node, an expired time function with no fallback.
	UndefinedValueError = dmerrors.UndefinedValueError

	// OutOfRangeError reports that a query point or date fell outside a
	// submodel's coverage. It is a refinement of UndefinedValueError:
	// errors.As against *UndefinedValueError also matches an
	// *OutOfRangeError.
	OutOfRangeError = dmerrors.OutOfRangeError
)

// IsOutOfRange reports whether err is, or wraps, an OutOfRangeError.
func IsOutOfRange(err error) bool {
	var oor *OutOfRangeError
	return errors.As(err, &oor)
}

// IsUndefinedValue reports whether err is, or wraps, an UndefinedValueError
// (which includes every OutOfRangeError).
func IsUndefinedValue(err error) bool {
	var uv *UndefinedValueError
	return errors.As(err, &uv)
}

// IsDefinitionError reports whether err is a DefinitionError raised while
// opening a model.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}
