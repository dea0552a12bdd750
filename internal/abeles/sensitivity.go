package abeles

import "math/cmplx"

// Delta is the first-order change of B and C, the components of
// M·(1, η_s), caused by a parameter change.
type Delta struct {
	B, C complex128
}

// Scale returns f·d.
func (d Delta) Scale(f float64) Delta {
	return Delta{complex(f, 0) * d.B, complex(f, 0) * d.C}
}

// Add returns d+e.
func (d Delta) Add(e Delta) Delta { return Delta{d.B + e.B, d.C + e.C} }

// Sensitivity caches the partial products on both sides of every layer,
// so the change of the global matrix caused by a change of layer j is
// pre_j · dM_j · post_j·(1, η_s) without multiplying the stack again.
type Sensitivity struct {
	sol  *Solution
	pre  [][]Matrix        // [layer][wavelength] product of the layers in front of j
	tail [][][2]complex128 // [layer][wavelength] post_j·(1, η_s)
}

// Sensitivity builds the partial products of the solved stack.
func (sol *Solution) Sensitivity() *Sensitivity {
	nl := len(sol.mats)
	nw := len(sol.M)
	s := &Sensitivity{
		sol:  sol,
		pre:  make([][]Matrix, nl),
		tail: make([][][2]complex128, nl),
	}
	for j := 0; j < nl; j++ {
		s.pre[j] = make([]Matrix, nw)
		s.tail[j] = make([][2]complex128, nw)
	}
	for i := 0; i < nw; i++ {
		m := Identity
		for j := 0; j < nl; j++ {
			s.pre[j][i] = m
			m = m.Mul(sol.mats[j][i])
		}
		e, h := complex(1, 0), sol.EtaS[i]
		for j := nl - 1; j >= 0; j-- {
			s.tail[j][i] = [2]complex128{e, h}
			e, h = sol.mats[j][i].Apply(e, h)
		}
	}
	return s
}

// Solution returns the solution the sensitivity was built from.
func (s *Sensitivity) Solution() *Solution { return s.sol }

// Layers is the number of layers in the stack.
func (s *Sensitivity) Layers() int { return len(s.pre) }

// Pre returns the product of the layers in front of layer j at wavelength i.
func (s *Sensitivity) Pre(j, i int) Matrix { return s.pre[j][i] }

// Tail returns the tangential fields (E, H) at the back of layer j at
// wavelength i, normalized to E = 1 in the substrate.
func (s *Sensitivity) Tail(j, i int) (complex128, complex128) {
	return s.tail[j][i][0], s.tail[j][i][1]
}

// through propagates a change dm of layer j at wavelength i to (dB, dC).
func (s *Sensitivity) through(j, i int, dm Matrix) Delta {
	u := s.tail[j][i]
	e, h := dm.Apply(u[0], u[1])
	b, c := s.pre[j][i].Apply(e, h)
	return Delta{b, c}
}

// dMdPhi is ∂M/∂φ for cos φ = c, sin φ = s.
func (t layerTerms) dMdPhi(c, s complex128) Matrix {
	return Matrix{-s, 1i * c / t.eta, 1i * t.eta * c, -s}
}

// thicknessDerivative is dM/dd = k N_s ∂M/∂φ, written without dividing by
// N_s: dM/dd = k [−N_s sin φ, i cos φ N_s/η; i η N_s cos φ, −N_s sin φ].
func (t layerTerms) thicknessDerivative(d float64) Matrix {
	phi := complex(t.k*d, 0) * t.ns
	c, s := cmplx.Cos(phi), cmplx.Sin(phi)
	k := complex(t.k, 0)
	if t.isS() {
		return Matrix{-k * t.ns * s, 1i * k * c, 1i * k * t.ns * t.ns * c, -k * t.ns * s}
	}
	n2 := t.n * t.n
	return Matrix{-k * t.ns * s, 1i * k * c * t.ns * t.ns / n2, 1i * k * c * n2, -k * t.ns * s}
}

// indexDerivative is dM/dN · dn for a sublayer of thickness d with
// cos φ = c and sin φ = s:
//
//	dN_s = N dN / N_s,  dη_p = dN (2N/N_s − N³/N_s³),
//	dM = ∂M/∂φ · k d dN_s + ∂M/∂η · dη,  ∂M/∂η = [0, −i sin φ/η²; i sin φ, 0].
func (t layerTerms) indexDerivative(d float64, c, s, dn complex128) Matrix {
	dns := t.n * dn / t.ns
	deta := dns
	if !t.isS() {
		r := t.n / t.ns
		deta = dn * (2*r - r*r*r)
	}
	dphi := complex(t.k*d, 0) * dns
	m := t.dMdPhi(c, s).Scale(dphi)
	return m.Add(Matrix{0, -1i * s / (t.eta * t.eta) * deta, 1i * s * deta, 0})
}

// Thickness returns the derivative with respect to the thickness of layer j (per nm).
func (s *Sensitivity) Thickness(j int) []Delta {
	out := make([]Delta, len(s.sol.M))
	d := s.sol.Stack.Layers[j].Thickness
	for i := range out {
		out[i] = s.through(j, i, s.sol.terms[j][i].thicknessDerivative(d))
	}
	return out
}

// Index returns the derivative with respect to the index of layer j, for a
// change of its index spectrum by dN per unit parameter.
func (s *Sensitivity) Index(j int, dN []complex128) []Delta {
	out := make([]Delta, len(s.sol.M))
	d := s.sol.Stack.Layers[j].Thickness
	for i := range out {
		t := s.sol.terms[j][i]
		phi := complex(t.k*d, 0) * t.ns
		out[i] = s.through(j, i, t.indexDerivative(d, cmplx.Cos(phi), cmplx.Sin(phi), dN[i]))
	}
	return out
}

// Sum adds derivative bundles wavelength by wavelength, scaling bundle k by f[k].
func Sum(f []float64, ds ...[]Delta) []Delta {
	out := make([]Delta, len(ds[0]))
	for k, d := range ds {
		for i := range out {
			out[i] = out[i].Add(d[i].Scale(f[k]))
		}
	}
	return out
}
