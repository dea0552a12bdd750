package abeles

import (
	"math/cmplx"
)

// DReflection returns dr for the changes d of B and C:
// dr = 2η₀(C dB − B dC)/D², D = η₀B + C.
func (sol *Solution) DReflection(d []Delta) []complex128 {
	out := make([]complex128, len(d))
	for i := range out {
		eta0 := sol.Eta0[i]
		if cmplx.IsInf(eta0) {
			continue
		}
		den := eta0*sol.B[i] + sol.C[i]
		out[i] = 2 * eta0 * (sol.C[i]*d[i].B - sol.B[i]*d[i].C) / (den * den)
	}
	return out
}

// DTransmission returns dt = −2η₀(η₀ dB + dC)/D².
func (sol *Solution) DTransmission(d []Delta) []complex128 {
	out := make([]complex128, len(d))
	for i := range out {
		eta0 := sol.Eta0[i]
		if cmplx.IsInf(eta0) {
			out[i] = -2 * d[i].B / (sol.B[i] * sol.B[i])
			continue
		}
		den := eta0*sol.B[i] + sol.C[i]
		out[i] = -2 * eta0 * (eta0*d[i].B + d[i].C) / (den * den)
	}
	return out
}

// DR returns dR = 2 Re(conj(r) dr).
func (sol *Solution) DR(d []Delta) []float64 {
	r := sol.Reflection()
	dr := sol.DReflection(d)
	out := make([]float64, len(d))
	for i := range out {
		out[i] = 2 * real(cmplx.Conj(r[i])*dr[i])
	}
	return out
}

// DT returns dT = Re(η_s)/Re(η₀) · 2 Re(conj(t) dt).
func (sol *Solution) DT(d []Delta) []float64 {
	t := sol.Transmission()
	dt := sol.DTransmission(d)
	out := make([]float64, len(d))
	for i := range out {
		out[i] = sol.transmittanceFactor(i) * 2 * real(cmplx.Conj(t[i])*dt[i])
	}
	return out
}

// DA returns dA = −dR − dT.
func (sol *Solution) DA(d []Delta) []float64 {
	dr, dt := sol.DR(d), sol.DT(d)
	out := make([]float64, len(d))
	for i := range out {
		out[i] = -dr[i] - dt[i]
	}
	return out
}

// DPhase returns the derivative of Phase(kind). For φ = arg z the change
// is Im(conj(z) dz)/|z|², zero where z vanishes.
func (sol *Solution) DPhase(kind PhaseKind, d []Delta) []float64 {
	out := make([]float64, len(d))
	for i := range out {
		eta0, b, c := sol.Eta0[i], sol.B[i], sol.C[i]
		z := phaseArg(kind, eta0, b, c)
		var dz complex128
		switch {
		case cmplx.IsInf(eta0) && kind == Reflected:
			dz = 0
		case cmplx.IsInf(eta0):
			dz = cmplx.Conj(d[i].B)
		case kind == Reflected:
			num := eta0*b - c
			den := eta0*b + c
			dnum := eta0*d[i].B - d[i].C
			dden := eta0*d[i].B + d[i].C
			dz = dnum*cmplx.Conj(den) + num*cmplx.Conj(dden)
		default:
			dz = eta0 * cmplx.Conj(eta0*d[i].B+d[i].C)
		}
		if z2 := sqAbs(z); z2 != 0 {
			out[i] = imag(cmplx.Conj(z)*dz) / z2
		}
	}
	return out
}
