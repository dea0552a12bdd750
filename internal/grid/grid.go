// Package grid holds the immutable wavelength sets that every spectrum is
// evaluated on.
package grid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmpty is returned for a wavelength set without wavelengths.
	ErrEmpty = errors.New("grid: empty wavelength set")

	// ErrNotIncreasing is returned when wavelengths are not strictly increasing.
	ErrNotIncreasing = errors.New("grid: wavelengths must be strictly increasing")

	// ErrInvalid is returned for non-positive or non-finite wavelengths.
	ErrInvalid = errors.New("grid: wavelengths must be positive and finite")
)

// Wavelengths is an ordered, read-only set of wavelengths in nm. A set is
// shared by pointer between all spectra of one calculation; caches keyed on
// Key are valid for every set holding the same values.
type Wavelengths struct {
	nm  []float64
	key uint64
}

// New copies nm into a wavelength set.
func New(nm []float64) (*Wavelengths, error) {
	if len(nm) == 0 {
		return nil, ErrEmpty
	}
	for i, v := range nm {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("wavelength %d (%g): %w", i, v, ErrInvalid)
		}
		if i > 0 && !(v > nm[i-1]) {
			return nil, fmt.Errorf("wavelength %d (%g): %w", i, v, ErrNotIncreasing)
		}
	}
	w := &Wavelengths{nm: append([]float64(nil), nm...)}
	w.key = fingerprint(w.nm)
	return w, nil
}

// Linear returns n wavelengths evenly spaced from from to to inclusive.
func Linear(from, to float64, n int) (*Wavelengths, error) {
	switch {
	case n <= 0:
		return nil, ErrEmpty
	case n == 1:
		return New([]float64{from})
	}
	return New(floats.Span(make([]float64, n), from, to))
}

// MustLinear is Linear for literal ranges known to be valid.
func MustLinear(from, to float64, n int) *Wavelengths {
	w, err := Linear(from, to, n)
	if err != nil {
		panic(err)
	}
	return w
}

// Single is a set holding one wavelength.
func Single(nm float64) (*Wavelengths, error) {
	return New([]float64{nm})
}

func fingerprint(nm []float64) uint64 {
	buf := make([]byte, 8*len(nm))
	for i, v := range nm {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return xxhash.Sum64(buf)
}

// Len is the number of wavelengths.
func (w *Wavelengths) Len() int { return len(w.nm) }

// At returns the i-th wavelength.
func (w *Wavelengths) At(i int) float64 { return w.nm[i] }

// Values returns a copy of the wavelengths.
func (w *Wavelengths) Values() []float64 { return append([]float64(nil), w.nm...) }

// Key is a fingerprint of the wavelength values.
func (w *Wavelengths) Key() uint64 { return w.key }

// Range returns the first and last wavelength.
func (w *Wavelengths) Range() (float64, float64) { return w.nm[0], w.nm[len(w.nm)-1] }

// Equal reports whether both sets hold the same wavelengths.
func (w *Wavelengths) Equal(o *Wavelengths) bool {
	if w == o {
		return true
	}
	if w == nil || o == nil || w.key != o.key || len(w.nm) != len(o.nm) {
		return false
	}
	return floats.Equal(w.nm, o.nm)
}

// Index returns the position of nm in the set. Wavelengths match within a
// relative tolerance of 1e-9.
func (w *Wavelengths) Index(nm float64) (int, bool) {
	i := sort.SearchFloat64s(w.nm, nm)
	tol := 1e-9 * math.Abs(nm)
	for _, j := range []int{i - 1, i} {
		if j >= 0 && j < len(w.nm) && math.Abs(w.nm[j]-nm) <= tol {
			return j, true
		}
	}
	return 0, false
}

// Omega returns the angular frequencies 2πc/λ in rad/fs.
func (w *Wavelengths) Omega() []float64 {
	out := make([]float64, len(w.nm))
	for i, v := range w.nm {
		out[i] = 2 * math.Pi * SpeedOfLight / v
	}
	return out
}

// SpeedOfLight in nm/fs.
const SpeedOfLight = 299.792458
