// Package deformlist implements the dense N×D node array shared by grid and
// TIN spatial submodels: D ≤ 5 columns drawn from the canonical deformation
// slots [de, dn, du, eh, ev], squared error columns after load, and the
// weighted-sum projection used by every interpolation scheme.
package deformlist

import (
	"math"

	"github.com/geocrust/defmodel/internal/dmerrors"
)

// Canonical column indices within a 5-slot deformation result.
const (
	DE = 0
	DN = 1
	DU = 2
	EH = 3
	EV = 4
)

// NumCanonical is the width of a fully-populated deformation result.
const NumCanonical = 5

var canonicalNames = [NumCanonical]string{"de", "dn", "du", "eh", "ev"}

// ColumnName returns the CSV column name for a canonical slot index.
func ColumnName(canon int) string { return canonicalNames[canon] }

// List is an N×D array of float64 values, where each of the D columns maps
// to one of the five canonical slots via Columns.
type List struct {
	Columns   []int // canonical slot per stored column, ascending, len == D
	rows      int
	cols      int
	data      []float64
	finalized bool
}

// New allocates a List for n rows with the given canonical columns (e.g.
// []int{DE, DN, DU} for a displacement-only, no-error submodel).
func New(columns []int, n int) *List {
	cols := make([]int, len(columns))
	copy(cols, columns)
	return &List{
		Columns: cols,
		rows:    n,
		cols:    len(cols),
		data:    make([]float64, n*len(cols)),
	}
}

// Rows reports the number of nodes.
func (l *List) Rows() int { return l.rows }

// Set stores the raw (pre-finalisation) column values for row.
func (l *List) Set(row int, values []float64) {
	if len(values) != l.cols {
		panic("deformlist: Set: column count mismatch")
	}
	copy(l.data[row*l.cols:(row+1)*l.cols], values)
}

// SetRaw bulk-loads an already-finalized flat array (nrows*ncols), as
// returned from the binary cache — the cached array was squared once by the
// Finalize call that produced it, so it must not be squared again.
func (l *List) SetRaw(flat []float64) {
	if len(flat) != l.rows*l.cols {
		panic("deformlist: SetRaw: data the wrong shape")
	}
	copy(l.data, flat)
	l.finalized = true
}

// Raw returns the flat backing array, suitable for writing to the binary
// cache once Finalize has run.
func (l *List) Raw() []float64 { return l.data }

// At returns the raw value stored at (row, storageCol).
func (l *List) At(row, storageCol int) float64 {
	return l.data[row*l.cols+storageCol]
}

// Finalize squares the eh/ev columns in place, turning error magnitudes into
// variances so that subsequent weighted sums combine correctly. Idempotent
// guards are intentionally absent: callers must call this exactly once,
// immediately after every row has been Set.
func (l *List) Finalize() {
	for _, canon := range uniqueErrorStorageColumns(l.Columns) {
		for row := 0; row < l.rows; row++ {
			idx := row*l.cols + canon
			l.data[idx] *= l.data[idx]
		}
	}
	l.finalized = true
}

func uniqueErrorStorageColumns(columns []int) []int {
	var out []int
	for storageCol, canon := range columns {
		if canon == EH || canon == EV {
			out = append(out, storageCol)
		}
	}
	return out
}

// CalcDeformation computes Σ factors[i]·data[rows[i]], projected into the
// canonical 5-slot order [de, dn, du, eh, ev]; columns this list does not
// carry contribute 0.0. Fails with UndefinedValueError if any accumulated
// slot is NaN.
func (l *List) CalcDeformation(rows []int, factors []float64) ([NumCanonical]float64, error) {
	if len(rows) != len(factors) {
		panic("deformlist: CalcDeformation: rows/factors length mismatch")
	}
	var acc [NumCanonical]float64
	for i, row := range rows {
		factor := factors[i]
		for storageCol, canon := range l.Columns {
			acc[canon] += factor * l.At(row, storageCol)
		}
	}
	for _, v := range acc {
		if math.IsNaN(v) {
			return acc, dmerrors.NewUndefined("deformation list: NaN accumulated from node(s) %v", rows)
		}
	}
	return acc, nil
}
