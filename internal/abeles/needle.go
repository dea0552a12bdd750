package abeles

import "math/cmplx"

// hostTrig holds cos φ, sin φ and sin φ/N_s of a host sublayer.
type hostTrig struct {
	c, s, sinc complex128
}

func (t layerTerms) trig(d float64) hostTrig {
	phi := complex(t.k*d, 0) * t.ns
	h := hostTrig{c: cmplx.Cos(phi), s: cmplx.Sin(phi), sinc: complex(t.k*d, 0)}
	if t.ns != 0 {
		h.sinc = h.s / t.ns
	}
	return h
}

// minus returns the trig terms of d − z given those of d and z.
func (t layerTerms) minus(d, z hostTrig, dz float64) hostTrig {
	h := hostTrig{
		c: d.c*z.c + d.s*z.s,
		s: d.s*z.c - d.c*z.s,
	}
	if t.ns != 0 {
		h.sinc = h.s / t.ns
	} else {
		h.sinc = complex(t.k*dz, 0)
	}
	return h
}

// Needle returns the derivatives of B and C with respect to the thickness
// of a needle of each material in needles, inserted at each position
// (nm from the front of layer j) and displacing the host material:
//
//	dM = M_h(z) · (G_n − G_h) · M_h(d − z),  G = k N_s [0, i/η; iη, 0].
//
// The result is indexed [material][position][wavelength]. The host terms
// are shared by every needle material and position; each position costs
// one complex cos/sin pair.
func (s *Sensitivity) Needle(j int, positions []float64, needles [][]complex128) [][][]Delta {
	sol := s.sol
	st := sol.Stack
	nw := len(sol.M)
	count := len(positions)

	out := make([][][]Delta, len(needles))
	for m := range out {
		out[m] = make([][]Delta, count)
		for p := range out[m] {
			out[m][p] = make([]Delta, nw)
		}
	}

	d := st.Layers[j].Thickness
	dg := make([]Matrix, len(needles))
	for i := 0; i < nw; i++ {
		host := sol.terms[j][i]
		gh := host.generator()
		for m, nn := range needles {
			needle := newLayerTerms(nn[i], st.Sin2[i], st.W.At(i), sol.Pol)
			dg[m] = needle.generator().Add(gh.Scale(-1))
		}
		pre := s.pre[j][i]
		u := s.tail[j][i]
		full := host.trig(d)
		for p, z := range positions {
			tz := host.trig(z)
			front := pre.Mul(host.fromTrig(tz.c, tz.s, tz.sinc))
			tb := host.minus(full, tz, d-z)
			e, h := host.fromTrig(tb.c, tb.s, tb.sinc).Apply(u[0], u[1])
			for m := range needles {
				de, dh := dg[m].Apply(e, h)
				b, c := front.Apply(de, dh)
				out[m][p][i] = Delta{b, c}
			}
		}
	}
	return out
}

// Step returns the derivatives of B and C with respect to an index step
// Δ at each position of layer j: the front part [0, z] takes the index
// N − Δ/2·dN and the back part [z, d] takes N + Δ/2·dN, so
//
//	dM/dΔ = −½ ∂M(z)·M(d − z) + ½ M(z)·∂M(d − z).
//
// The result is indexed [position][wavelength].
func (s *Sensitivity) Step(j int, positions []float64, dN []complex128) [][]Delta {
	sol := s.sol
	nw := len(sol.M)
	out := make([][]Delta, len(positions))
	for p := range out {
		out[p] = make([]Delta, nw)
	}

	d := sol.Stack.Layers[j].Thickness
	for i := 0; i < nw; i++ {
		host := sol.terms[j][i]
		pre := s.pre[j][i]
		u := s.tail[j][i]
		full := host.trig(d)
		for p, z := range positions {
			tz := host.trig(z)
			tb := host.minus(full, tz, d-z)
			mf := host.fromTrig(tz.c, tz.s, tz.sinc)
			mb := host.fromTrig(tb.c, tb.s, tb.sinc)
			df := host.indexDerivative(z, tz.c, tz.s, dN[i])
			db := host.indexDerivative(d-z, tb.c, tb.s, dN[i])
			dm := df.Mul(mb).Scale(-0.5).Add(mf.Mul(db).Scale(0.5))
			b, c := pre.Apply(dm.Apply(u[0], u[1]))
			out[p][i] = Delta{b, c}
		}
	}
	return out
}
