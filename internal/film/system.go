package film

import (
	"fmt"
	"math"

	"github.com/cwbudde/thinfilm/internal/abeles"
	"github.com/cwbudde/thinfilm/internal/dispersion"
	"github.com/cwbudde/thinfilm/internal/grid"
)

// Direction of the incident light.
type Direction int

const (
	// Forward light comes from the medium onto the front coating.
	Forward Direction = iota
	// Reverse light comes from the other side: from the substrate onto the
	// front coating, or from the back medium when the back face is included.
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Options describe the illumination of a calculation.
type Options struct {
	Angle        float64 // degrees in the incidence medium
	Polarization float64 // degrees, 90 is s and 0 is p
	Direction    Direction
}

// weights returns the p and s weights cos²ψ and sin²ψ.
func (o Options) weights() (wp, ws float64) {
	c := math.Cos(o.Polarization / 180 * math.Pi)
	s := math.Sin(o.Polarization / 180 * math.Pi)
	wp, ws = c*c, s*s
	// Snap the pure states so that they evaluate a single polarization.
	if wp < 1e-15 {
		wp, ws = 0, 1
	}
	if ws < 1e-15 {
		wp, ws = 1, 0
	}
	return wp, ws
}

// pure returns the polarization for s or p light.
func (o Options) pure() (abeles.Pol, error) {
	wp, ws := o.weights()
	switch {
	case ws == 1:
		return abeles.S, nil
	case wp == 1:
		return abeles.P, nil
	}
	return 0, fmt.Errorf("polarization %g: %w", o.Polarization, ErrPolarization)
}

// ref locates a filter layer inside the stacks of a system.
type ref struct {
	layer   Layer
	layers  []int // stack layer indices
	exit    bool  // part of the back face stack
	flipped bool  // stack order runs opposite to the side order
	slope   []complex128
}

type layerKey struct {
	side  Side
	index int
}

// system is a filter prepared for one wavelength set and illumination.
type system struct {
	f    *Filter
	w    *grid.Wavelengths
	opts Options

	inc  *abeles.Stack // coherent stack met by the incident light
	exit *abeles.Stack // back face seen from the substrate, nil when coherent
	tau  []float64

	refs map[layerKey]*ref
}

// indices returns the index spectrum of a homogeneous layer of material m
// at centre wavelength index n.
func (f *Filter) indices(m *dispersion.Material, n float64, w *grid.Wavelengths) ([]complex128, error) {
	if !m.IsMixture() {
		return m.Index(w)
	}
	x, err := m.XFromIndex(n, f.CenterWavelength)
	if err != nil {
		return nil, err
	}
	return m.MixtureIndex(w, x)
}

// indexSlope returns dN/dn_c: the change of the index spectrum per unit
// change of the centre wavelength index.
func (f *Filter) indexSlope(m *dispersion.Material, n float64, w *grid.Wavelengths) ([]complex128, error) {
	x, err := m.XFromIndex(n, f.CenterWavelength)
	if err != nil {
		return nil, err
	}
	dn, err := m.MixtureDerivative(w, x)
	if err != nil {
		return nil, err
	}
	center, err := grid.Single(f.CenterWavelength)
	if err != nil {
		return nil, err
	}
	dc, err := m.MixtureDerivative(center, x)
	if err != nil {
		return nil, err
	}
	scale := complex(1/real(dc[0]), 0)
	for i := range dn {
		dn[i] *= scale
	}
	return dn, nil
}

// expand converts the layers of one side into stack layers; spans[k] lists
// the stack layers of filter layer k.
func (f *Filter) expand(side Side, w *grid.Wavelengths) (layers []abeles.Layer, spans [][]int, err error) {
	for k, l := range f.side(side) {
		var span []int
		if l.Profile == nil {
			n, err := f.indices(l.Material, l.Index, w)
			if err != nil {
				return nil, nil, fmt.Errorf("%s layer %d: %w", side, k, err)
			}
			span = append(span, len(layers))
			layers = append(layers, abeles.Layer{N: n, Thickness: l.Thickness})
		} else {
			if err := l.Material.CheckMonotonicity(w); err != nil {
				return nil, nil, fmt.Errorf("%s layer %d: %w", side, k, err)
			}
			for i, d := range l.Profile.Thickness {
				n, err := f.indices(l.Material, l.Profile.Index[i], w)
				if err != nil {
					return nil, nil, fmt.Errorf("%s layer %d sublayer %d: %w", side, k, i, err)
				}
				span = append(span, len(layers))
				layers = append(layers, abeles.Layer{N: n, Thickness: d})
			}
		}
		spans = append(spans, span)
	}
	return layers, spans, nil
}

func reverseLayers(layers []abeles.Layer, spans [][]int) {
	n := len(layers)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	for _, span := range spans {
		for i := range span {
			span[i] = n - 1 - span[i]
		}
	}
}

func (s *system) addRefs(side Side, spans [][]int, exit, flipped bool) {
	for k, span := range spans {
		s.refs[layerKey{side, k}] = &ref{
			layer:   s.f.side(side)[k],
			layers:  span,
			exit:    exit,
			flipped: flipped,
		}
	}
}

// newSystem prepares f for wavelengths w under opts.
func (f *Filter) newSystem(w *grid.Wavelengths, opts Options) (*system, error) {
	medium, err := f.Medium.Index(w)
	if err != nil {
		return nil, fmt.Errorf("medium: %w", err)
	}
	substrate, err := f.Substrate.Index(w)
	if err != nil {
		return nil, fmt.Errorf("substrate: %w", err)
	}
	front, frontSpans, err := f.expand(Front, w)
	if err != nil {
		return nil, err
	}
	s := &system{f: f, w: w, opts: opts, refs: make(map[layerKey]*ref)}

	if !f.Backside {
		if opts.Direction == Forward {
			s.inc = abeles.NewStack(w, medium, substrate, opts.Angle, front)
			s.addRefs(Front, frontSpans, false, false)
		} else {
			reverseLayers(front, frontSpans)
			s.inc = abeles.NewStack(w, substrate, medium, opts.Angle, front)
			s.addRefs(Front, frontSpans, false, true)
		}
		return s, nil
	}

	back, backSpans, err := f.expand(Back, w)
	if err != nil {
		return nil, err
	}
	if opts.Direction == Forward {
		s.inc = abeles.NewStack(w, medium, substrate, opts.Angle, front)
		s.exit = &abeles.Stack{W: w, Medium: substrate, Substrate: medium, Sin2: s.inc.Sin2, Layers: back}
		s.addRefs(Front, frontSpans, false, false)
		s.addRefs(Back, backSpans, true, false)
	} else {
		reverseLayers(back, backSpans)
		reverseLayers(front, frontSpans)
		s.inc = abeles.NewStack(w, medium, substrate, opts.Angle, back)
		s.exit = &abeles.Stack{W: w, Medium: substrate, Substrate: medium, Sin2: s.inc.Sin2, Layers: front}
		s.addRefs(Back, backSpans, false, true)
		s.addRefs(Front, frontSpans, true, true)
	}
	s.tau = make([]float64, w.Len())
	for i := range s.tau {
		s.tau[i] = abeles.Attenuation(substrate[i], s.inc.Sin2[i], w.At(i), f.SubstrateThickness)
	}
	return s, nil
}

// polSystem holds the solved stacks of a system for one polarization.
type polSystem struct {
	sys  *system
	pol  abeles.Pol
	inc  *abeles.Solution
	rev  *abeles.Solution // incidence stack lit from the substrate
	exit *abeles.Solution

	incS, revS, exitS *abeles.Sensitivity
}

func (s *system) solve(pol abeles.Pol, sensitivities bool) *polSystem {
	ps := &polSystem{sys: s, pol: pol, inc: s.inc.Solve(pol)}
	if s.exit != nil {
		ps.rev = s.inc.Reverse().Solve(pol)
		ps.exit = s.exit.Solve(pol)
	}
	if sensitivities {
		ps.incS = ps.inc.Sensitivity()
		if s.exit != nil {
			ps.revS = ps.rev.Sensitivity()
			ps.exitS = ps.exit.Sensitivity()
		}
	}
	return ps
}

func (ps *polSystem) surfaces(i int, r, t, rr, tr, br, bt []float64) (abeles.Surface, abeles.Surface) {
	return abeles.Surface{R: r[i], T: t[i], Rr: rr[i], Tr: tr[i]}, abeles.Surface{R: br[i], T: bt[i]}
}

// energies returns R and T, combining both faces when the back face is included.
func (ps *polSystem) energies() (r, t []float64) {
	r, t = ps.inc.R(), ps.inc.T()
	if ps.exit == nil {
		return r, t
	}
	rr, tr := ps.rev.R(), ps.rev.T()
	br, bt := ps.exit.R(), ps.exit.T()
	outR := make([]float64, len(r))
	outT := make([]float64, len(r))
	for i := range r {
		front, back := ps.surfaces(i, r, t, rr, tr, br, bt)
		outR[i], outT[i] = abeles.Incoherent(front, back, ps.sys.tau[i])
	}
	return outR, outT
}
