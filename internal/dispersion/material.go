// Package dispersion evaluates complex refractive index spectra of
// materials, N = n − ik, including mixtures parameterized by a mixture
// number X.
package dispersion

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/thinfilm/internal/grid"
	"github.com/cwbudde/thinfilm/internal/numeric"
)

// Kind distinguishes regular materials from mixtures.
type Kind int

const (
	Regular Kind = iota
	Mixture
)

func (k Kind) String() string {
	if k == Mixture {
		return "mixture"
	}
	return "regular"
}

// MixtureRow is the dispersion of a mixture at one mixture number.
type MixtureRow struct {
	X      float64
	Params Params
}

// Material is a named dispersion model. It is safe for concurrent use.
type Material struct {
	name   string
	kind   Kind
	params Params
	rows   []MixtureRow

	mu    sync.Mutex
	cache map[uint64]*mixtureTable
}

// New returns a regular material.
func New(name string, p Params) (*Material, error) {
	if p == nil {
		return nil, fmt.Errorf("material %q has no model: %w", name, ErrInvalid)
	}
	return &Material{name: name, kind: Regular, params: p}, nil
}

// NewMixture returns a mixture defined at two or more strictly increasing
// mixture numbers. All rows must use the same model.
func NewMixture(name string, rows []MixtureRow) (*Material, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("mixture %q needs at least two rows: %w", name, ErrInvalid)
	}
	for i, r := range rows {
		if r.Params == nil {
			return nil, fmt.Errorf("mixture %q row %d has no model: %w", name, i, ErrInvalid)
		}
	}
	model := rows[0].Params.Model()
	for i, r := range rows {
		if r.Params.Model() != model {
			return nil, fmt.Errorf("mixture %q row %d mixes %s with %s: %w",
				name, i, r.Params.Model(), model, ErrInvalid)
		}
		if i > 0 && !(r.X > rows[i-1].X) {
			return nil, fmt.Errorf("mixture %q row %d: X must increase: %w", name, i, ErrInvalid)
		}
	}
	return &Material{
		name:  name,
		kind:  Mixture,
		rows:  append([]MixtureRow(nil), rows...),
		cache: make(map[uint64]*mixtureTable),
	}, nil
}

// Name of the material.
func (m *Material) Name() string { return m.name }

// Kind of the material.
func (m *Material) Kind() Kind { return m.kind }

// Model of the material or of its mixture rows.
func (m *Material) Model() Model {
	if m.kind == Mixture {
		return m.rows[0].Params.Model()
	}
	return m.params.Model()
}

// Params returns the model of a regular material.
func (m *Material) Params() Params { return m.params }

// Rows returns a copy of the mixture rows.
func (m *Material) Rows() []MixtureRow { return append([]MixtureRow(nil), m.rows...) }

// IsMixture reports whether the material depends on a mixture number.
func (m *Material) IsMixture() bool { return m.kind == Mixture }

// Index returns N at every wavelength of a regular material.
func (m *Material) Index(w *grid.Wavelengths) ([]complex128, error) {
	if m.kind != Regular {
		return nil, fmt.Errorf("index of %s without mixture number: %w", m.name, ErrKind)
	}
	out := make([]complex128, w.Len())
	for i := range out {
		out[i] = m.params.eval(w.At(i))
	}
	return out, nil
}

// IndexAt returns N of a regular material at a single wavelength.
func (m *Material) IndexAt(nm float64) (complex128, error) {
	if m.kind != Regular {
		return 0, fmt.Errorf("index of %s without mixture number: %w", m.name, ErrKind)
	}
	return m.params.eval(nm), nil
}

// XRange returns the mixture numbers of the first and last row.
func (m *Material) XRange() (float64, float64) {
	if m.kind != Mixture {
		return 0, 0
	}
	return m.rows[0].X, m.rows[len(m.rows)-1].X
}

func (m *Material) checkX(x float64) error {
	if m.kind != Mixture {
		return fmt.Errorf("mixture number for %s: %w", m.name, ErrKind)
	}
	lo, hi := m.XRange()
	if x < lo || x > hi {
		return &RangeError{Material: m.name, Value: x, Min: lo, Max: hi}
	}
	return nil
}

// MixtureIndex returns N(λ, x) at every wavelength.
func (m *Material) MixtureIndex(w *grid.Wavelengths, x float64) ([]complex128, error) {
	if err := m.checkX(x); err != nil {
		return nil, err
	}
	t := m.table(w)
	out := make([]complex128, w.Len())
	for i := range out {
		out[i] = complex(t.re[i].Eval(x), t.im[i].Eval(x))
	}
	return out, nil
}

// MixtureDerivative returns dN/dX at every wavelength.
func (m *Material) MixtureDerivative(w *grid.Wavelengths, x float64) ([]complex128, error) {
	if err := m.checkX(x); err != nil {
		return nil, err
	}
	t := m.table(w)
	out := make([]complex128, w.Len())
	for i := range out {
		out[i] = complex(t.re[i].Derivative(x), t.im[i].Derivative(x))
	}
	return out, nil
}

// CheckMonotonicity verifies that the real index increases strictly with
// the mixture number at every wavelength of w. Regular materials always pass.
func (m *Material) CheckMonotonicity(w *grid.Wavelengths) error {
	if m.kind != Mixture {
		return nil
	}
	for i := 0; i < w.Len(); i++ {
		nm := w.At(i)
		prev := real(m.rows[0].Params.eval(nm))
		for _, r := range m.rows[1:] {
			n := real(r.Params.eval(nm))
			if !(n > prev) {
				return &MonotonicityError{Material: m.name, Wavelength: nm}
			}
			prev = n
		}
	}
	return nil
}

// IndexRange returns the real index at the lowest and highest mixture
// number at wavelength nm.
func (m *Material) IndexRange(nm float64) (float64, float64) {
	if m.kind != Mixture {
		n := real(m.params.eval(nm))
		return n, n
	}
	return real(m.rows[0].Params.eval(nm)), real(m.rows[len(m.rows)-1].Params.eval(nm))
}

func (m *Material) realInterp(nm float64) (*numeric.PCHIP, error) {
	x := make([]float64, len(m.rows))
	n := make([]float64, len(m.rows))
	for i, r := range m.rows {
		x[i] = r.X
		n[i] = real(r.Params.eval(nm))
	}
	return numeric.NewPCHIP(x, n)
}

// IndexFromX returns the real index at wavelength nm and mixture number x.
func (m *Material) IndexFromX(x, nm float64) (float64, error) {
	if err := m.checkX(x); err != nil {
		return 0, err
	}
	p, err := m.realInterp(nm)
	if err != nil {
		return 0, err
	}
	return p.Eval(x), nil
}

// XFromIndex inverts IndexFromX: it returns the mixture number whose real
// index at wavelength nm equals n.
func (m *Material) XFromIndex(n, nm float64) (float64, error) {
	if m.kind != Mixture {
		return 0, fmt.Errorf("mixture number for %s: %w", m.name, ErrKind)
	}
	p, err := m.realInterp(nm)
	if err != nil {
		return 0, err
	}
	x, err := p.Invert(n)
	switch {
	case errors.Is(err, numeric.ErrNotMonotonic):
		return 0, &MonotonicityError{Material: m.name, Wavelength: nm}
	case errors.Is(err, numeric.ErrOutOfRange):
		lo, hi := m.IndexRange(nm)
		return 0, &RangeError{Material: m.name, Value: n, Min: lo, Max: hi}
	case err != nil:
		return 0, err
	}
	return x, nil
}
