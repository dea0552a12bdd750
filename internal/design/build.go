package design

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/cwbudde/thinfilm/internal/color"
	"github.com/cwbudde/thinfilm/internal/dispersion"
	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/grid"
)

func (r *Range) grid() (*grid.Wavelengths, error) {
	if r.Points <= 0 {
		return nil, fmt.Errorf("range %g-%g with %d points: %w", r.From, r.To, r.Points, ErrInvalid)
	}
	return grid.Linear(r.From, r.To, r.Points)
}

func (f Formula) params(model, baseDir string) (dispersion.Params, error) {
	urbach := dispersion.Urbach{Ak: f.Ak, Exponent: f.Exponent, Edge: f.Edge}
	switch strings.ToLower(model) {
	case "", "constant":
		return dispersion.Constant{N: f.N, K: f.K}, nil
	case "cauchy":
		return dispersion.Cauchy{A: f.A, B: f.B, C: f.C, Urbach: urbach}, nil
	case "sellmeier":
		return dispersion.Sellmeier{B1: f.B1, C1: f.C1, B2: f.B2, C2: f.C2, B3: f.B3, C3: f.C3, Urbach: urbach}, nil
	case "table":
		if f.CSV == "" {
			return nil, fmt.Errorf("table model without csv: %w", ErrInvalid)
		}
		path := f.CSV
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return dispersion.LoadTable(path)
	}
	return nil, fmt.Errorf("dispersion model %q: %w", model, ErrInvalid)
}

func (m Material) build(baseDir string) (*dispersion.Material, error) {
	if len(m.Mixture) == 0 {
		p, err := m.Formula.params(m.Model, baseDir)
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", m.Name, err)
		}
		return dispersion.New(m.Name, p)
	}
	rows := make([]dispersion.MixtureRow, len(m.Mixture))
	for i, r := range m.Mixture {
		p, err := r.Formula.params(m.Model, baseDir)
		if err != nil {
			return nil, fmt.Errorf("material %q row %d: %w", m.Name, i, err)
		}
		rows[i] = dispersion.MixtureRow{X: r.X, Params: p}
	}
	return dispersion.NewMixture(m.Name, rows)
}

// Material returns a material of the last Build by name.
func (d *Document) Material(name string) (*dispersion.Material, bool) {
	m, ok := d.materials[name]
	return m, ok
}

func (d *Document) buildMaterials() error {
	d.materials = make(map[string]*dispersion.Material, len(d.Materials))
	for _, spec := range d.Materials {
		if spec.Name == "" {
			return fmt.Errorf("material without name: %w", ErrInvalid)
		}
		if _, dup := d.materials[spec.Name]; dup {
			return fmt.Errorf("material %q defined twice: %w", spec.Name, ErrInvalid)
		}
		m, err := spec.build(d.baseDir)
		if err != nil {
			return err
		}
		d.materials[spec.Name] = m
	}
	return nil
}

func (d *Document) lookup(name string) (*dispersion.Material, error) {
	m, ok := d.materials[name]
	if !ok {
		return nil, fmt.Errorf("material %q is not defined: %w", name, ErrInvalid)
	}
	return m, nil
}

func (d *Document) layer(l Layer) (film.Layer, error) {
	m, err := d.lookup(l.Material)
	if err != nil {
		return film.Layer{}, err
	}
	out := film.Layer{Material: m, Thickness: l.Thickness, Index: l.Index}
	if l.Profile != nil {
		out.Profile = &film.Profile{
			Thickness: append([]float64(nil), l.Profile.Thickness...),
			Index:     append([]float64(nil), l.Profile.Index...),
		}
	}
	return out, nil
}

// broadcast repeats a single value n times.
func broadcast(v []float64, n int) []float64 {
	if len(v) == 1 && n > 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v[0]
		}
		return out
	}
	return append([]float64(nil), v...)
}

func (d *Document) target(i int, t Target) (film.Target, error) {
	bad := func(err error) (film.Target, error) {
		return film.Target{}, fmt.Errorf("target %d: %w", i, err)
	}
	q, err := film.ParseQuantity(t.Kind)
	if err != nil {
		return bad(err)
	}
	ineq, err := film.ParseInequality(t.Inequality)
	if err != nil {
		return bad(err)
	}
	out := film.Target{Quantity: q, Inequality: ineq}
	switch {
	case t.Angle != nil:
		out.Angle = *t.Angle
	case t.Reverse:
		out.Angle = d.BackAngle
	default:
		out.Angle = d.Angle
	}
	switch {
	case t.Polarization != nil:
		out.Polarization = *t.Polarization
	case q.Energy():
		out.Polarization = 45
	default:
		out.Polarization = 90
	}
	if t.Reverse {
		out.Direction = film.Reverse
	}

	n := 3
	if t.Color != nil {
		obs, err := color.ObserverByName(t.Color.Observer)
		if err != nil {
			return bad(err)
		}
		ill, err := color.IlluminantByName(t.Color.Illuminant)
		if err != nil {
			return bad(err)
		}
		out.Color = &film.ColorTarget{Observer: obs, Illuminant: ill}
	} else {
		switch {
		case t.Range != nil && len(t.Wavelengths) > 0:
			return bad(fmt.Errorf("both wavelengths and range: %w", ErrInvalid))
		case t.Range != nil:
			out.Wavelengths, err = t.Range.grid()
		default:
			out.Wavelengths, err = grid.New(t.Wavelengths)
		}
		if err != nil {
			return bad(err)
		}
		n = out.Wavelengths.Len()
	}
	out.Values = broadcast(t.Values, n)
	out.Tolerances = broadcast(t.Tolerances, n)
	return out, nil
}

// designRange is the explicit range, or the span of the target
// wavelengths, or nil without targets.
func (d *Document) designRange(targets []film.Target) (*grid.Wavelengths, error) {
	if d.Wavelengths != nil {
		return d.Wavelengths.grid()
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range targets {
		if t.Wavelengths == nil {
			continue
		}
		a, b := t.Wavelengths.Range()
		lo, hi = math.Min(lo, a), math.Max(hi, b)
	}
	if math.IsInf(lo, 1) {
		return nil, nil
	}
	if lo == hi {
		return grid.Single(lo)
	}
	return grid.New([]float64{lo, hi})
}

// Build creates the filter and targets of the document. Materials stay
// available through Material until the next Build.
func (d *Document) Build() (*film.Filter, []film.Target, error) {
	if err := d.buildMaterials(); err != nil {
		return nil, nil, err
	}
	medium, err := d.lookup(d.Medium)
	if err != nil {
		return nil, nil, fmt.Errorf("medium: %w", err)
	}
	substrate, err := d.lookup(d.Substrate)
	if err != nil {
		return nil, nil, fmt.Errorf("substrate: %w", err)
	}
	f, err := film.New(medium, substrate, d.CenterWavelength)
	if err != nil {
		return nil, nil, err
	}
	f.SubstrateThickness = d.SubstrateThickness
	f.Backside = d.Backside
	f.FrontAngle = d.Angle
	f.BackAngle = d.BackAngle

	targets := make([]film.Target, len(d.Targets))
	for i, t := range d.Targets {
		if targets[i], err = d.target(i, t); err != nil {
			return nil, nil, err
		}
	}
	if f.Wavelengths, err = d.designRange(targets); err != nil {
		return nil, nil, fmt.Errorf("design range: %w", err)
	}

	for _, side := range []struct {
		side   film.Side
		layers []Layer
	}{{film.Front, d.Front}, {film.Back, d.Back}} {
		for i, l := range side.layers {
			fl, err := d.layer(l)
			if err != nil {
				return nil, nil, fmt.Errorf("%s layer %d: %w", side.side, i, err)
			}
			if err := f.AppendLayer(side.side, fl); err != nil {
				return nil, nil, fmt.Errorf("%s layer %d: %w", side.side, i, err)
			}
		}
	}

	for i := range targets {
		if err := targets[i].Validate(i, f); err != nil {
			return nil, nil, err
		}
	}
	return f, targets, nil
}

// MaterialNames lists the defined material names in document order.
func (d *Document) MaterialNames() []string {
	out := make([]string, 0, len(d.Materials))
	for _, m := range d.Materials {
		out = append(out, m.Name)
	}
	return out
}
