package film

import (
	"fmt"
	"strings"

	"github.com/cwbudde/thinfilm/internal/abeles"
	"github.com/cwbudde/thinfilm/internal/grid"
)

// Quantity is a spectral quantity of a filter.
type Quantity int

const (
	Reflectance Quantity = iota
	Transmittance
	Absorptance
	ReflectedPhase
	TransmittedPhase
	ReflectedGD
	TransmittedGD
	ReflectedGDD
	TransmittedGDD
)

var quantityNames = [...]string{"R", "T", "A", "phaseR", "phaseT", "GDR", "GDT", "GDDR", "GDDT"}

func (q Quantity) String() string {
	if q < 0 || int(q) >= len(quantityNames) {
		return fmt.Sprintf("Quantity(%d)", int(q))
	}
	return quantityNames[q]
}

// ParseQuantity accepts the names printed by String, case insensitive.
// "phase", "GD" and "GDD" alone select the reflected quantity.
func ParseQuantity(s string) (Quantity, error) {
	switch strings.ToLower(s) {
	case "phase":
		return ReflectedPhase, nil
	case "gd":
		return ReflectedGD, nil
	case "gdd":
		return ReflectedGDD, nil
	}
	for i, n := range quantityNames {
		if strings.EqualFold(n, s) {
			return Quantity(i), nil
		}
	}
	return 0, fmt.Errorf("film: unknown quantity %q", s)
}

// Energy reports whether q is R, T or A.
func (q Quantity) Energy() bool { return q <= Absorptance }

func (q Quantity) phaseKind() abeles.PhaseKind {
	if q == TransmittedPhase || q == TransmittedGD || q == TransmittedGDD {
		return abeles.Transmitted
	}
	return abeles.Reflected
}

// order is 0 for the phase, 1 for GD and 2 for GDD.
func (q Quantity) order() int {
	switch q {
	case ReflectedGD, TransmittedGD:
		return 1
	case ReflectedGDD, TransmittedGDD:
		return 2
	}
	return 0
}

func (q Quantity) stencil(w *grid.Wavelengths, phase []float64, derivative bool) ([]float64, error) {
	switch {
	case q.order() == 1 && derivative:
		return abeles.DGroupDelay(w, phase)
	case q.order() == 1:
		return abeles.GroupDelay(w, phase)
	case q.order() == 2 && derivative:
		return abeles.DGDD(w, phase)
	case q.order() == 2:
		return abeles.GDD(w, phase)
	}
	return phase, nil
}

// perturbation returns the B, C changes of a solved stack for a batch of
// perturbations of one filter layer. idx lists the stack layers of the
// filter layer and flipped tells whether stack depth runs opposite to
// layer depth. The result is indexed [column][wavelength].
type perturbation func(sens *abeles.Sensitivity, idx []int, flipped bool) ([][]abeles.Delta, error)

// reversedIndices maps stack layer indices onto the reversed stack.
func reversedIndices(sens *abeles.Sensitivity, idx []int) []int {
	n := sens.Layers()
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = n - 1 - j
	}
	return out
}

type weighted struct {
	ps *polSystem
	w  float64
}

// evaluation is a system solved for one quantity.
type evaluation struct {
	sys  *system
	q    Quantity
	pols []weighted
}

func (s *system) evaluate(q Quantity, sensitivities bool) (*evaluation, error) {
	e := &evaluation{sys: s, q: q}
	if q.Energy() {
		wp, ws := s.opts.weights()
		if wp > 0 {
			e.pols = append(e.pols, weighted{s.solve(abeles.P, sensitivities), wp})
		}
		if ws > 0 {
			e.pols = append(e.pols, weighted{s.solve(abeles.S, sensitivities), ws})
		}
		return e, nil
	}
	pol, err := s.opts.pure()
	if err != nil {
		return nil, err
	}
	if q.order() > 0 && s.w.Len() < 3 {
		return nil, abeles.ErrTooFewWavelengths
	}
	e.pols = []weighted{{s.solve(pol, sensitivities), 1}}
	return e, nil
}

func energyOf(q Quantity, r, t float64) float64 {
	switch q {
	case Reflectance:
		return r
	case Transmittance:
		return t
	}
	return -r - t
}

// values returns the quantity on the system wavelengths.
func (e *evaluation) values() ([]float64, error) {
	n := e.sys.w.Len()
	if !e.q.Energy() {
		return e.q.stencil(e.sys.w, e.pols[0].ps.inc.Phase(e.q.phaseKind()), false)
	}
	out := make([]float64, n)
	if e.q == Absorptance {
		for i := range out {
			out[i] = 1
		}
	}
	for _, p := range e.pols {
		r, t := p.ps.energies()
		for i := range out {
			out[i] += p.w * energyOf(e.q, r[i], t[i])
		}
	}
	return out, nil
}

// derivatives returns the change of the quantity for each column of the
// perturbation of filter layer key, indexed [column][wavelength].
func (e *evaluation) derivatives(key layerKey, cols int, pert perturbation) ([][]float64, error) {
	n := e.sys.w.Len()
	out := make([][]float64, cols)
	for c := range out {
		out[c] = make([]float64, n)
	}
	r, ok := e.sys.refs[key]
	if !ok {
		// The layer does not take part in this calculation.
		return out, nil
	}

	if !e.q.Energy() {
		if r.exit {
			return out, nil
		}
		ps := e.pols[0].ps
		deltas, err := pert(ps.incS, r.layers, r.flipped)
		if err != nil {
			return nil, err
		}
		for c, d := range deltas {
			dp, err := e.q.stencil(e.sys.w, ps.inc.DPhase(e.q.phaseKind(), d), true)
			if err != nil {
				return nil, err
			}
			out[c] = dp
		}
		return out, nil
	}

	for _, p := range e.pols {
		dr, dt, err := p.ps.energyDerivatives(r, pert)
		if err != nil {
			return nil, err
		}
		for c := range out {
			for i := range out[c] {
				out[c][i] += p.w * energyOf(e.q, dr[c][i], dt[c][i])
			}
		}
	}
	return out, nil
}

// energyDerivatives returns dR and dT of every perturbation column.
func (ps *polSystem) energyDerivatives(r *ref, pert perturbation) (dr, dt [][]float64, err error) {
	if ps.exit == nil {
		deltas, err := pert(ps.incS, r.layers, r.flipped)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range deltas {
			dr = append(dr, ps.inc.DR(d))
			dt = append(dt, ps.inc.DT(d))
		}
		return dr, dt, nil
	}

	var front, rev, back [][]abeles.Delta
	if r.exit {
		if back, err = pert(ps.exitS, r.layers, r.flipped); err != nil {
			return nil, nil, err
		}
	} else {
		if front, err = pert(ps.incS, r.layers, r.flipped); err != nil {
			return nil, nil, err
		}
		if rev, err = pert(ps.revS, reversedIndices(ps.revS, r.layers), !r.flipped); err != nil {
			return nil, nil, err
		}
	}
	cols := len(front) + len(back)

	n := ps.sys.w.Len()
	zero := make([]float64, n)
	r0, t0 := ps.inc.R(), ps.inc.T()
	rr, tr := ps.rev.R(), ps.rev.T()
	br, bt := ps.exit.R(), ps.exit.T()
	for c := 0; c < cols; c++ {
		fr, ft, frr, ftr, dbr, dbt := zero, zero, zero, zero, zero, zero
		if r.exit {
			dbr, dbt = ps.exit.DR(back[c]), ps.exit.DT(back[c])
		} else {
			fr, ft = ps.inc.DR(front[c]), ps.inc.DT(front[c])
			frr, ftr = ps.rev.DR(rev[c]), ps.rev.DT(rev[c])
		}
		colR := make([]float64, n)
		colT := make([]float64, n)
		for i := 0; i < n; i++ {
			f0, b0 := ps.surfaces(i, r0, t0, rr, tr, br, bt)
			df, db := ps.surfaces(i, fr, ft, frr, ftr, dbr, dbt)
			colR[i], colT[i] = abeles.IncoherentDerivative(f0, b0, df, db, ps.sys.tau[i])
		}
		dr = append(dr, colR)
		dt = append(dt, colT)
	}
	return dr, dt, nil
}

// spectrum evaluates q without holding the busy flag.
func (f *Filter) spectrum(q Quantity, w *grid.Wavelengths, opts Options) ([]float64, error) {
	sys, err := f.newSystem(w, opts)
	if err != nil {
		return nil, err
	}
	e, err := sys.evaluate(q, false)
	if err != nil {
		return nil, err
	}
	return e.values()
}

// Spectrum returns quantity q of the filter on w. Phases are in radians
// in [0, 2π), group delays in fs and GDD in fs². Phase type quantities of
// a filter with a back face describe the face met by the light.
func (f *Filter) Spectrum(q Quantity, w *grid.Wavelengths, opts Options) ([]float64, error) {
	var out []float64
	err := f.guard(func() error {
		var err error
		out, err = f.spectrum(q, w, opts)
		return err
	})
	return out, err
}

// Reflectance returns R on w.
func (f *Filter) Reflectance(w *grid.Wavelengths, opts Options) ([]float64, error) {
	return f.Spectrum(Reflectance, w, opts)
}

// Transmittance returns T on w.
func (f *Filter) Transmittance(w *grid.Wavelengths, opts Options) ([]float64, error) {
	return f.Spectrum(Transmittance, w, opts)
}

// Absorptance returns A = 1 − R − T on w. It is not clamped and may be
// slightly negative.
func (f *Filter) Absorptance(w *grid.Wavelengths, opts Options) ([]float64, error) {
	return f.Spectrum(Absorptance, w, opts)
}

// Phase returns the reflected or transmitted phase on w.
func (f *Filter) Phase(w *grid.Wavelengths, opts Options, transmitted bool) ([]float64, error) {
	if transmitted {
		return f.Spectrum(TransmittedPhase, w, opts)
	}
	return f.Spectrum(ReflectedPhase, w, opts)
}

// GroupDelay returns the reflected or transmitted group delay on w.
func (f *Filter) GroupDelay(w *grid.Wavelengths, opts Options, transmitted bool) ([]float64, error) {
	if transmitted {
		return f.Spectrum(TransmittedGD, w, opts)
	}
	return f.Spectrum(ReflectedGD, w, opts)
}

// GDD returns the reflected or transmitted group delay dispersion on w.
func (f *Filter) GDD(w *grid.Wavelengths, opts Options, transmitted bool) ([]float64, error) {
	if transmitted {
		return f.Spectrum(TransmittedGDD, w, opts)
	}
	return f.Spectrum(ReflectedGDD, w, opts)
}

// Ellipsometry returns Ψ and Δ in degrees of the face met by the light.
func (f *Filter) Ellipsometry(w *grid.Wavelengths, opts Options) (psi, delta []float64, err error) {
	err = f.guard(func() error {
		sys, err := f.newSystem(w, opts)
		if err != nil {
			return err
		}
		rs := sys.inc.Solve(abeles.S).Reflection()
		rp := sys.inc.Solve(abeles.P).Reflection()
		psi, delta = abeles.Ellipsometry(rs, rp)
		return nil
	})
	return psi, delta, err
}

// profile solves the stack met by the light for pure s or p light.
func (f *Filter) profile(w *grid.Wavelengths, opts Options) (*abeles.Sensitivity, error) {
	pol, err := opts.pure()
	if err != nil {
		return nil, err
	}
	sys, err := f.newSystem(w, opts)
	if err != nil {
		return nil, err
	}
	return sys.inc.Solve(pol).Sensitivity(), nil
}

// ElectricField returns |E|² relative to the incident wave, sampled every
// step nm from the incidence medium to the substrate.
func (f *Filter) ElectricField(w *grid.Wavelengths, opts Options, step float64) (abeles.Profile[float64], error) {
	var out abeles.Profile[float64]
	err := f.guard(func() error {
		s, err := f.profile(w, opts)
		if err != nil {
			return err
		}
		out = s.Field(step)
		return nil
	})
	return out, err
}

// AdmittanceLocus returns the admittance H/E sampled every step nm.
func (f *Filter) AdmittanceLocus(w *grid.Wavelengths, opts Options, step float64) (abeles.Profile[complex128], error) {
	var out abeles.Profile[complex128]
	err := f.guard(func() error {
		s, err := f.profile(w, opts)
		if err != nil {
			return err
		}
		out = s.AdmittanceLocus(step)
		return nil
	})
	return out, err
}

// CircleLocus returns the amplitude reflection of the partial stack under
// each sample depth, sampled every step nm.
func (f *Filter) CircleLocus(w *grid.Wavelengths, opts Options, step float64) (abeles.Profile[complex128], error) {
	var out abeles.Profile[complex128]
	err := f.guard(func() error {
		s, err := f.profile(w, opts)
		if err != nil {
			return err
		}
		out = s.CircleLocus(step)
		return nil
	})
	return out, err
}
