package abeles

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Pol is a pure polarization state.
type Pol int

const (
	S Pol = iota
	P
)

func (p Pol) String() string {
	switch p {
	case S:
		return "s"
	case P:
		return "p"
	default:
		return fmt.Sprintf("Pol(%d)", int(p))
	}
}

// Sin2 returns the Snell invariant (N₀·sin θ)² per wavelength for
// incidence at angle degrees in a medium of index medium.
func Sin2(medium []complex128, angle float64) []complex128 {
	s := math.Sin(angle / 180 * math.Pi)
	out := make([]complex128, len(medium))
	for i, n := range medium {
		v := n * complex(s, 0)
		out[i] = v * v
	}
	return out
}

// Normal returns the normal component N_s = √(N² − sin²) of a medium of
// index n. When the real part of the root is exactly zero the negative
// root is taken.
func Normal(n, sin2 complex128) complex128 {
	v := n*n - sin2
	if imag(v) == 0 {
		// Normalize −0 so the branch below does not depend on the sign of zero.
		v = complex(real(v), 0)
	}
	ns := cmplx.Sqrt(v)
	if real(ns) == 0 {
		ns = -ns
	}
	return ns
}

// Admittance returns the tilted admittance of a medium: N_s for s and
// N²/N_s for p. A p admittance with N_s = 0 is infinite.
func Admittance(n, sin2 complex128, pol Pol) complex128 {
	ns := Normal(n, sin2)
	if pol == S {
		return ns
	}
	if ns == 0 {
		return cmplx.Inf()
	}
	return n * n / ns
}

// Admittances evaluates Admittance at every wavelength.
func Admittances(n, sin2 []complex128, pol Pol) []complex128 {
	out := make([]complex128, len(n))
	for i := range n {
		out[i] = Admittance(n[i], sin2[i], pol)
	}
	return out
}
