package abeles

import "math"

// Surface holds the energy coefficients of one coated face of a substrate:
// R and T seen from outside, Rr seen from inside the substrate.
type Surface struct {
	R, T, Rr, Tr float64
}

// Attenuation returns the single-pass intensity transmission
// exp(2k·Im(N_s)·d) through a substrate of thickness d (nm).
func Attenuation(substrate, sin2 complex128, nm, d float64) float64 {
	ns := Normal(substrate, sin2)
	return math.Exp(2 * wavenumber(nm) * imag(ns) * d)
}

// Incoherent combines the front and back faces of a thick substrate by
// summing intensities of the multiple reflections inside it:
//
//	R = R_F + T_F T_F' R_B τ² / (1 − R_F' R_B τ²)
//	T = T_F T_B τ / (1 − R_F' R_B τ²)
func Incoherent(front, back Surface, tau float64) (r, t float64) {
	den := 1 - front.Rr*back.R*tau*tau
	r = front.R + front.T*front.Tr*back.R*tau*tau/den
	t = front.T * back.T * tau / den
	return r, t
}

// IncoherentDerivative is the derivative of Incoherent given the
// derivatives of the face coefficients. τ is a fixed substrate property.
func IncoherentDerivative(front, back, dfront, dback Surface, tau float64) (dr, dt float64) {
	t2 := tau * tau
	den := 1 - front.Rr*back.R*t2
	dden := -(dfront.Rr*back.R + front.Rr*dback.R) * t2

	num := front.T * front.Tr * back.R * t2
	dnum := (dfront.T*front.Tr*back.R + front.T*dfront.Tr*back.R + front.T*front.Tr*dback.R) * t2
	dr = dfront.R + (dnum*den-num*dden)/(den*den)

	tn := front.T * back.T * tau
	dtn := (dfront.T*back.T + front.T*dback.T) * tau
	dt = (dtn*den - tn*dden) / (den * den)
	return dr, dt
}
