package film

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a filter is already being calculated or modified.
	ErrBusy = errors.New("film: filter is busy")

	// ErrLayer is returned for an invalid side or layer position.
	ErrLayer = errors.New("film: no such layer")

	// ErrThickness is returned for a negative or non-finite thickness.
	ErrThickness = errors.New("film: invalid thickness")

	// ErrPolarization is returned when a quantity needs pure s or p light.
	ErrPolarization = errors.New("film: quantity requires s or p polarization")

	// ErrNotMixture is returned when an index is set on a non-mixture layer.
	ErrNotMixture = errors.New("film: layer material is not a mixture")

	// ErrWavelength is returned for a target wavelength outside the design range.
	ErrWavelength = errors.New("film: wavelength outside the design range")

	// ErrTarget is returned for a malformed target.
	ErrTarget = errors.New("film: invalid target")

	// ErrMaterial is returned when medium or substrate are missing or are mixtures.
	ErrMaterial = errors.New("film: medium and substrate must be regular materials")
)

// TargetError reports a target the calculation cannot serve.
type TargetError struct {
	Index      int     // position in the target list
	Wavelength float64 // offending wavelength, 0 if not wavelength specific
	Err        error
}

func (e *TargetError) Error() string {
	if e.Wavelength != 0 {
		return fmt.Sprintf("film: target %d at %g nm: %v", e.Index, e.Wavelength, e.Err)
	}
	return fmt.Sprintf("film: target %d: %v", e.Index, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }
