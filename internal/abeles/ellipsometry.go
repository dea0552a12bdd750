package abeles

import (
	"math"
	"math/cmplx"
)

// Ellipsometry returns Ψ = atan(|r_p|/|r_s|) and Δ = arg(−r_p/r_s) in
// degrees, Δ in [0, 360). A bare substrate at normal incidence gives Δ = 180.
func Ellipsometry(rs, rp []complex128) (psi, delta []float64) {
	psi = make([]float64, len(rs))
	delta = make([]float64, len(rs))
	for i := range rs {
		psi[i] = math.Atan2(cmplx.Abs(rp[i]), cmplx.Abs(rs[i])) * 180 / math.Pi
		var z complex128
		if rs[i] != 0 {
			z = -rp[i] / rs[i]
		}
		delta[i] = Arg(z) * 180 / math.Pi
	}
	return psi, delta
}
