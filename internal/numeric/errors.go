// Package numeric provides the linear algebra, polynomial and interpolation
// kernels used by the optical engine and the optimisers.
//
// Kernels are single threaded and allocation-light. Programmer errors
// (mismatched slice lengths) panic; numeric failures are returned as errors
// that match ErrSingular through errors.Is.
package numeric

import (
	"errors"
	"fmt"
	"math"
)

// Eps is the machine epsilon for float64.
const Eps = 2.220446049250313e-16

var (
	// ErrSingular is returned when a pivot falls below the epsilon-relative threshold.
	ErrSingular = errors.New("numeric: singular matrix")

	// ErrNotMonotonic is returned when monotonic data is required but not supplied.
	ErrNotMonotonic = errors.New("numeric: data is not strictly monotonic")

	// ErrOutOfRange is returned when a value lies outside the tabulated range.
	ErrOutOfRange = errors.New("numeric: value out of range")

	// ErrTooFewPoints is returned when an interpolant needs more abscissae.
	ErrTooFewPoints = errors.New("numeric: too few points")
)

// MatrixError describes a failed factorization or elimination.
type MatrixError struct {
	Op    string  // kernel that failed, e.g. "GaussJordan"
	Pivot float64 // scaled value of the rejected pivot
	Err   error
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("%s: %v (scaled pivot %g)", e.Op, e.Err, e.Pivot)
}

func (e *MatrixError) Unwrap() error { return e.Err }

func singular(op string, pivot float64) error {
	return &MatrixError{Op: op, Pivot: pivot, Err: ErrSingular}
}

func hypot(a, b float64) float64 { return math.Hypot(a, b) }
