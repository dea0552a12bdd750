package abeles

import (
	"math"
	"math/cmplx"
)

// Layer is a homogeneous film of index N (one value per wavelength) and
// physical thickness in nm.
type Layer struct {
	N         []complex128
	Thickness float64
}

// wavenumber returns 2π/λ for λ in nm.
func wavenumber(nm float64) float64 { return 2 * math.Pi / nm }

// layerTerms are the per-wavelength quantities a layer matrix is built from.
type layerTerms struct {
	n, ns, eta complex128
	k          float64
	pol        Pol
}

func newLayerTerms(n, sin2 complex128, nm float64, pol Pol) layerTerms {
	ns := Normal(n, sin2)
	eta := ns
	if pol == P {
		eta = cmplx.Inf()
		if ns != 0 {
			eta = n * n / ns
		}
	}
	return layerTerms{n: n, ns: ns, eta: eta, k: wavenumber(nm), pol: pol}
}

// matrix returns the characteristic matrix for thickness d:
//
//	[cos φ, i sin φ / η; i η sin φ, cos φ],  φ = k N_s d.
//
// The off-diagonal terms are written through sin φ / N_s so that N_s = 0
// gives the finite limit.
func (t layerTerms) matrix(d float64) Matrix {
	phi := complex(t.k*d, 0) * t.ns
	c, s := cmplx.Cos(phi), cmplx.Sin(phi)
	sinc := complex(t.k*d, 0) // sin φ / N_s
	if t.ns != 0 {
		sinc = s / t.ns
	}
	return t.fromTrig(c, s, sinc)
}

// fromTrig builds the matrix from cos φ, sin φ and sin φ / N_s.
func (t layerTerms) fromTrig(c, s, sinc complex128) Matrix {
	if t.ns == 0 {
		// s: η = 0, p: η = ∞; only the sinc limits survive.
		if t.isS() {
			return Matrix{c, 1i * sinc, 0, c}
		}
		return Matrix{c, 0, 1i * t.n * t.n * sinc, c}
	}
	return Matrix{c, 1i * s / t.eta, 1i * t.eta * s, c}
}

func (t layerTerms) isS() bool { return t.pol == S }

// generator returns dM/dd at d = 0, k N_s [0, i/η; iη, 0].
func (t layerTerms) generator() Matrix {
	k := complex(t.k, 0)
	if t.isS() {
		return Matrix{0, 1i * k, 1i * k * t.ns * t.ns, 0}
	}
	return Matrix{0, 1i * k * t.ns * t.ns / (t.n * t.n), 1i * k * t.n * t.n, 0}
}

// LayerMatrix returns the characteristic matrix of a layer of index n and
// thickness d (nm) at wavelength nm.
func LayerMatrix(n complex128, d, nm float64, sin2 complex128, pol Pol) Matrix {
	return newLayerTerms(n, sin2, nm, pol).matrix(d)
}
