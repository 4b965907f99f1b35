// Package dmerrors defines the four disjoint failure categories used
// throughout the deformation model evaluator: definition errors discovered
// while loading a model, invalid CSV cell values, out-of-range queries, and
// undefined (NaN-producing) interpolation results.
package dmerrors

import "fmt"

// DefinitionError reports a structural or invariant violation discovered
// while loading a model (bad header, missing file, non-sequential grid node,
// clockwise triangle, inconsistent shared submodel, etc). Definition errors
// are fatal to the load.
type DefinitionError struct {
	Message string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("model definition error: %s", e.Message)
}

// NewDefinition builds a DefinitionError with a formatted message.
func NewDefinition(format string, args ...any) *DefinitionError {
	return &DefinitionError{Message: fmt.Sprintf(format, args...)}
}

// InvalidValueError reports a CSV cell that cannot be parsed into its
// declared schema type. Always carries the file and record number, matching
// the teacher's file+record error convention.
type InvalidValueError struct {
	File   string
	Record int
	Field  string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value in %s, record %d, field %q: %q: %s",
		e.File, e.Record, e.Field, e.Value, e.Reason)
}

// UndefinedValueError reports that a grid node contributing to interpolation
// was NaN (the submodel has a hole at that location).
type UndefinedValueError struct {
	Message string
}

func (e *UndefinedValueError) Error() string {
	return fmt.Sprintf("undefined value: %s", e.Message)
}

// NewUndefined builds an UndefinedValueError with a formatted message.
func NewUndefined(format string, args ...any) *UndefinedValueError {
	return &UndefinedValueError{Message: fmt.Sprintf(format, args...)}
}

// OutOfRangeError reports that a query point lies outside a grid/TIN
// bounding box for a non-spatial_complete submodel, or a query date lies
// outside [min_date, max_date] for a non-time_complete time function.
//
// OutOfRange is a refinement of UndefinedValue: errors.As against
// *UndefinedValueError also matches an *OutOfRangeError via Unwrap.
type OutOfRangeError struct {
	Message string
	cause   *UndefinedValueError
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("out of range: %s", e.Message)
}

// Unwrap exposes the underlying UndefinedValueError so errors.As/errors.Is
// treat OutOfRange as a kind of UndefinedValue, per spec.
func (e *OutOfRangeError) Unwrap() error {
	return e.cause
}

// NewOutOfRange builds an OutOfRangeError with a formatted message.
func NewOutOfRange(format string, args ...any) *OutOfRangeError {
	msg := fmt.Sprintf(format, args...)
	return &OutOfRangeError{Message: msg, cause: &UndefinedValueError{Message: msg}}
}
