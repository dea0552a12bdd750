package film

import (
	"fmt"
	"math"

	"github.com/cwbudde/thinfilm/internal/color"
	"github.com/cwbudde/thinfilm/internal/grid"
)

// Inequality selects how a target value is matched.
type Inequality int

const (
	Equal   Inequality = iota
	AtMost             // only values above the target count
	AtLeast            // only values below the target count
)

func (i Inequality) String() string {
	switch i {
	case AtMost:
		return "<="
	case AtLeast:
		return ">="
	}
	return "="
}

// ParseInequality accepts "=", "<=" and ">=".
func ParseInequality(s string) (Inequality, error) {
	switch s {
	case "", "=", "==":
		return Equal, nil
	case "<=", "<":
		return AtMost, nil
	case ">=", ">":
		return AtLeast, nil
	}
	return 0, fmt.Errorf("inequality %q: %w", s, ErrTarget)
}

// ColorTarget turns a target into a colour target: Values and Tolerances
// hold the chromaticity x, y and the luminance Y of the spectrum.
type ColorTarget struct {
	Observer   color.Observer
	Illuminant color.Illuminant
}

// Target is a set of desired values of one quantity.
type Target struct {
	Quantity Quantity
	Options
	Inequality  Inequality
	Wavelengths *grid.Wavelengths
	Values      []float64
	Tolerances  []float64
	Color       *ColorTarget
}

// tripletSpacing is the relative spacing of the local wavelength triplet
// used for group delay targets of fewer than three wavelengths.
const tripletSpacing = 1e-3

// Validate checks target i against the filter.
func (t *Target) Validate(i int, f *Filter) error {
	bad := func(nm float64, err error) error { return &TargetError{Index: i, Wavelength: nm, Err: err} }
	want := 3
	if t.Color == nil {
		if t.Wavelengths == nil {
			return bad(0, fmt.Errorf("no wavelengths: %w", ErrTarget))
		}
		want = t.Wavelengths.Len()
	} else if !t.Quantity.Energy() {
		return bad(0, fmt.Errorf("colour of %s: %w", t.Quantity, ErrTarget))
	}
	if len(t.Values) != want || len(t.Tolerances) != want {
		return bad(0, fmt.Errorf("%d values and %d tolerances for %d points: %w",
			len(t.Values), len(t.Tolerances), want, ErrTarget))
	}
	for k, tol := range t.Tolerances {
		if !(tol > 0) || math.IsInf(tol, 0) {
			return bad(0, fmt.Errorf("tolerance %d is %g: %w", k, tol, ErrTarget))
		}
	}
	if !t.Quantity.Energy() {
		if _, err := t.Options.pure(); err != nil {
			return bad(0, err)
		}
	}
	if t.Color == nil && f.Wavelengths != nil {
		lo, hi := f.Wavelengths.Range()
		for k := 0; k < t.Wavelengths.Len(); k++ {
			if nm := t.Wavelengths.At(k); nm < lo || nm > hi {
				return bad(nm, ErrWavelength)
			}
		}
	}
	return nil
}

type pick struct{ grid, point int }

// evaluated is one target solved on one wavelength set.
type evaluated struct {
	target *Target
	e      *evaluation
	picks  []pick
	xyz    color.XYZ // colour targets only
	res    []float64
	active []bool
}

func residual(v, want, tol float64, ineq Inequality) (float64, bool) {
	switch {
	case ineq == AtMost && v <= want:
		return 0, false
	case ineq == AtLeast && v >= want:
		return 0, false
	}
	return (v - want) / tol, true
}

// groups splits a target into the wavelength sets it is solved on.
func (t *Target) groups() ([]*grid.Wavelengths, [][]pick, error) {
	if t.Color != nil {
		return []*grid.Wavelengths{color.Wavelengths()}, [][]pick{nil}, nil
	}
	n := t.Wavelengths.Len()
	if t.Quantity.order() == 0 || n >= 3 {
		picks := make([]pick, n)
		for k := range picks {
			picks[k] = pick{k, k}
		}
		return []*grid.Wavelengths{t.Wavelengths}, [][]pick{picks}, nil
	}
	ws := make([]*grid.Wavelengths, n)
	picks := make([][]pick, n)
	for k := 0; k < n; k++ {
		nm := t.Wavelengths.At(k)
		w, err := grid.New([]float64{nm * (1 - tripletSpacing), nm, nm * (1 + tripletSpacing)})
		if err != nil {
			return nil, nil, err
		}
		ws[k] = w
		picks[k] = []pick{{1, k}}
	}
	return ws, picks, nil
}

func (s *Session) evaluateTargets(targets []Target, sensitivities bool) ([]*evaluated, error) {
	var out []*evaluated
	for i := range targets {
		t := &targets[i]
		if err := t.Validate(i, s.f); err != nil {
			return nil, err
		}
		ws, picks, err := t.groups()
		if err != nil {
			return nil, &TargetError{Index: i, Err: err}
		}
		for g, w := range ws {
			ev, err := s.evaluateOne(t, w, picks[g], sensitivities)
			if err != nil {
				return nil, &TargetError{Index: i, Err: err}
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Session) evaluateOne(t *Target, w *grid.Wavelengths, picks []pick, sensitivities bool) (*evaluated, error) {
	sys, err := s.f.newSystem(w, t.Options)
	if err != nil {
		return nil, err
	}
	e, err := sys.evaluate(t.Quantity, sensitivities)
	if err != nil {
		return nil, err
	}
	vals, err := e.values()
	if err != nil {
		return nil, err
	}
	ev := &evaluated{target: t, e: e, picks: picks}
	if t.Color != nil {
		ev.xyz, err = color.Tristimulus(t.Color.Observer, t.Color.Illuminant, vals)
		if err != nil {
			return nil, err
		}
		x, y, lum := ev.xyz.XyY()
		for k, v := range []float64{x, y, lum} {
			r, on := residual(v, t.Values[k], t.Tolerances[k], t.Inequality)
			ev.res = append(ev.res, r)
			ev.active = append(ev.active, on)
		}
		return ev, nil
	}
	for _, p := range picks {
		r, on := residual(vals[p.grid], t.Values[p.point], t.Tolerances[p.point], t.Inequality)
		ev.res = append(ev.res, r)
		ev.active = append(ev.active, on)
	}
	return ev, nil
}

// rows maps derivative columns of the quantity, indexed [column][wavelength],
// onto residual derivatives indexed [column][residual].
func (ev *evaluated) rows(cols [][]float64) ([][]float64, error) {
	t := ev.target
	out := make([][]float64, len(cols))
	for c, col := range cols {
		row := make([]float64, len(ev.res))
		if t.Color != nil {
			dc, err := color.Tristimulus(t.Color.Observer, t.Color.Illuminant, col)
			if err != nil {
				return nil, err
			}
			dx, dy, dlum := color.XyYDerivative(ev.xyz, dc)
			for k, d := range []float64{dx, dy, dlum} {
				if ev.active[k] {
					row[k] = d / t.Tolerances[k]
				}
			}
		} else {
			for k, p := range ev.picks {
				if ev.active[k] {
					row[k] = col[p.grid] / t.Tolerances[p.point]
				}
			}
		}
		out[c] = row
	}
	return out, nil
}

// Residuals returns the weighted residuals (value − target)/tolerance of
// every target point and, when jacobian is set, their derivatives with
// respect to params indexed [residual][parameter]. Inequality targets
// that are met contribute zero residuals and derivatives.
func (s *Session) Residuals(targets []Target, params []Param, jacobian bool) ([]float64, [][]float64, error) {
	groups, err := s.evaluateTargets(targets, jacobian)
	if err != nil {
		return nil, nil, err
	}
	var res []float64
	var jac [][]float64
	for _, g := range groups {
		offset := len(res)
		res = append(res, g.res...)
		if !jacobian {
			continue
		}
		for range g.res {
			jac = append(jac, make([]float64, len(params)))
		}
		for j, p := range params {
			cols, err := g.e.derivatives(p.key(), 1, g.e.sys.paramPerturbation(p, s.ConstantOT))
			if err != nil {
				return nil, nil, err
			}
			rows, err := g.rows(cols)
			if err != nil {
				return nil, nil, err
			}
			for k, d := range rows[0] {
				jac[offset+k][j] = d
			}
		}
	}
	return res, jac, nil
}

// Merit returns the sum of squared residuals of the targets.
func (s *Session) Merit(targets []Target) (float64, error) {
	res, _, err := s.Residuals(targets, nil, false)
	if err != nil {
		return 0, err
	}
	return Chi2(res), nil
}

// Chi2 returns the sum of squares of r.
func Chi2(r []float64) float64 {
	s := 0.0
	for _, v := range r {
		s += v * v
	}
	return s
}
