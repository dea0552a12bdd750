package abeles

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/thinfilm/internal/grid"
)

// Stack is a coherent multilayer between an incidence medium and a
// semi-infinite substrate. Layers are ordered from the medium toward the
// substrate.
type Stack struct {
	W         *grid.Wavelengths
	Medium    []complex128
	Substrate []complex128
	Sin2      []complex128
	Layers    []Layer
}

// NewStack returns a stack lit at angle degrees from the medium.
func NewStack(w *grid.Wavelengths, medium, substrate []complex128, angle float64, layers []Layer) *Stack {
	return &Stack{
		W:         w,
		Medium:    medium,
		Substrate: substrate,
		Sin2:      Sin2(medium, angle),
		Layers:    layers,
	}
}

// Reverse returns the same stack lit from the substrate side. The Snell
// invariant and the index slices are shared with s.
func (s *Stack) Reverse() *Stack {
	layers := make([]Layer, len(s.Layers))
	for i, l := range s.Layers {
		layers[len(layers)-1-i] = l
	}
	return &Stack{W: s.W, Medium: s.Substrate, Substrate: s.Medium, Sin2: s.Sin2, Layers: layers}
}

// Solution holds the characteristic matrices of a stack for one polarization.
type Solution struct {
	Pol   Pol
	Stack *Stack

	Eta0, EtaS []complex128
	M          []Matrix // global matrix per wavelength
	B, C       []complex128

	terms [][]layerTerms // [layer][wavelength]
	mats  [][]Matrix     // [layer][wavelength]
}

// Solve multiplies the layer matrices from the medium to the substrate.
func (s *Stack) Solve(pol Pol) *Solution {
	nw := s.W.Len()
	sol := &Solution{
		Pol:   pol,
		Stack: s,
		Eta0:  Admittances(s.Medium, s.Sin2, pol),
		EtaS:  Admittances(s.Substrate, s.Sin2, pol),
		M:     make([]Matrix, nw),
		B:     make([]complex128, nw),
		C:     make([]complex128, nw),
		terms: make([][]layerTerms, len(s.Layers)),
		mats:  make([][]Matrix, len(s.Layers)),
	}
	for j, l := range s.Layers {
		sol.terms[j] = make([]layerTerms, nw)
		sol.mats[j] = make([]Matrix, nw)
		for i := 0; i < nw; i++ {
			t := newLayerTerms(l.N[i], s.Sin2[i], s.W.At(i), pol)
			sol.terms[j][i] = t
			sol.mats[j][i] = t.matrix(l.Thickness)
		}
	}
	for i := 0; i < nw; i++ {
		m := Identity
		for j := range s.Layers {
			m = m.Mul(sol.mats[j][i])
		}
		sol.M[i] = m
		sol.B[i], sol.C[i] = m.Apply(1, sol.EtaS[i])
	}
	return sol
}

// Amplitudes returns r and t for a global matrix between media of
// admittance eta0 and etaS.
func Amplitudes(m Matrix, eta0, etaS complex128) (r, t complex128) {
	b, c := m.Apply(1, etaS)
	return amplitudes(eta0, b, c)
}

func amplitudes(eta0, b, c complex128) (r, t complex128) {
	if cmplx.IsInf(eta0) {
		return 1, 2 / b
	}
	d := eta0*b + c
	return (eta0*b - c) / d, 2 * eta0 / d
}

// Reflection returns the amplitude reflection coefficient per wavelength.
func (sol *Solution) Reflection() []complex128 {
	out := make([]complex128, len(sol.B))
	for i := range out {
		out[i], _ = amplitudes(sol.Eta0[i], sol.B[i], sol.C[i])
	}
	return out
}

// Transmission returns the amplitude transmission coefficient per wavelength.
func (sol *Solution) Transmission() []complex128 {
	out := make([]complex128, len(sol.B))
	for i := range out {
		_, out[i] = amplitudes(sol.Eta0[i], sol.B[i], sol.C[i])
	}
	return out
}

// R returns the reflectance |r|².
func (sol *Solution) R() []float64 {
	out := make([]float64, len(sol.B))
	for i := range out {
		r, _ := amplitudes(sol.Eta0[i], sol.B[i], sol.C[i])
		out[i] = sqAbs(r)
	}
	return out
}

// transmittanceFactor is Re(η_s)/Re(η₀), zero for an infinite or purely
// imaginary η₀.
func (sol *Solution) transmittanceFactor(i int) float64 {
	if cmplx.IsInf(sol.Eta0[i]) || real(sol.Eta0[i]) == 0 {
		return 0
	}
	return real(sol.EtaS[i]) / real(sol.Eta0[i])
}

// T returns the transmittance Re(η_s)/Re(η₀)·|t|².
func (sol *Solution) T() []float64 {
	out := make([]float64, len(sol.B))
	for i := range out {
		_, t := amplitudes(sol.Eta0[i], sol.B[i], sol.C[i])
		out[i] = sol.transmittanceFactor(i) * sqAbs(t)
	}
	return out
}

// A returns the absorptance 1 − R − T. It is not clamped to be non-negative.
func (sol *Solution) A() []float64 {
	r, t := sol.R(), sol.T()
	out := make([]float64, len(r))
	for i := range out {
		out[i] = 1 - r[i] - t[i]
	}
	return out
}

// PhaseKind selects the reflected or transmitted phase.
type PhaseKind int

const (
	Reflected PhaseKind = iota
	Transmitted
)

// phaseArg returns the complex number whose argument is the phase:
// (η₀B − C)·conj(η₀B + C) for r and η₀·conj(η₀B + C) for t.
func phaseArg(kind PhaseKind, eta0, b, c complex128) complex128 {
	if cmplx.IsInf(eta0) {
		if kind == Reflected {
			return 1
		}
		return cmplx.Conj(b)
	}
	d := eta0*b + c
	if kind == Reflected {
		return (eta0*b - c) * cmplx.Conj(d)
	}
	return eta0 * cmplx.Conj(d)
}

// Arg maps the argument of z into [0, 2π). The argument of zero is 0.
func Arg(z complex128) float64 {
	if real(z) == 0 && imag(z) == 0 {
		return 0
	}
	phi := math.Atan2(imag(z), real(z))
	if phi < 0 {
		phi += 2 * math.Pi
	}
	if phi >= 2*math.Pi {
		phi -= 2 * math.Pi
	}
	return phi
}

// Phase returns the reflected or transmitted phase in [0, 2π) radians.
func (sol *Solution) Phase(kind PhaseKind) []float64 {
	out := make([]float64, len(sol.B))
	for i := range out {
		out[i] = Arg(phaseArg(kind, sol.Eta0[i], sol.B[i], sol.C[i]))
	}
	return out
}

func sqAbs(z complex128) float64 { return real(z)*real(z) + imag(z)*imag(z) }
