package dispersion

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for mixture numbers or indices outside a mixture's range.
	ErrOutOfRange = errors.New("dispersion: value out of range")

	// ErrNotMonotonic is returned when a mixture's real index does not increase with X.
	ErrNotMonotonic = errors.New("dispersion: mixture is not monotonic")

	// ErrKind is returned when an operation does not apply to the material kind.
	ErrKind = errors.New("dispersion: operation not supported for material kind")

	// ErrInvalid is returned for malformed model parameters.
	ErrInvalid = errors.New("dispersion: invalid model parameters")
)

// RangeError reports a mixture number or index outside [Min, Max].
type RangeError struct {
	Material string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("dispersion: %s: %g outside [%g, %g]", e.Material, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// MonotonicityError reports the first wavelength at which a mixture's real
// index fails to increase strictly with the mixture number.
type MonotonicityError struct {
	Material   string
	Wavelength float64
}

func (e *MonotonicityError) Error() string {
	return fmt.Sprintf("dispersion: %s is not monotonic at %g nm", e.Material, e.Wavelength)
}

func (e *MonotonicityError) Unwrap() error { return ErrNotMonotonic }
