package abeles

import "math/cmplx"

// Profile is a quantity sampled in depth. Depth is measured in nm from the
// medium side of the stack; Values is indexed [sample][wavelength].
type Profile[T any] struct {
	Depth  []float64
	Values [][]T
}

// depths returns the sample positions inside a layer of thickness d: 0,
// step, 2·step, ... below d. A non-positive step samples the front
// surface only.
func depths(d, step float64) []float64 {
	if step <= 0 || d <= 0 {
		return []float64{0}
	}
	var out []float64
	for z := 0.0; z < d-1e-9*step; z += step {
		out = append(out, z)
	}
	return out
}

// sample walks the stack from the medium to the substrate and calls f with
// the tangential fields (E, H) at every sample, normalized to E = 1 in the
// substrate.
func (s *Sensitivity) sample(step float64, f func(i int, e, h complex128)) []float64 {
	var depth []float64
	offset := 0.0
	nw := len(s.sol.M)
	for j, l := range s.sol.Stack.Layers {
		for _, z := range depths(l.Thickness, step) {
			depth = append(depth, offset+z)
			for i := 0; i < nw; i++ {
				u := s.tail[j][i]
				m := s.sol.terms[j][i].matrix(l.Thickness - z)
				e, h := m.Apply(u[0], u[1])
				f(i, e, h)
			}
		}
		offset += l.Thickness
	}
	depth = append(depth, offset)
	for i := 0; i < nw; i++ {
		f(i, 1, s.sol.EtaS[i])
	}
	return depth
}

// Field returns |E(z)|² relative to the incident wave.
func (s *Sensitivity) Field(step float64) Profile[float64] {
	var values [][]float64
	var row []float64
	nw := len(s.sol.M)
	depth := s.sample(step, func(i int, e, _ complex128) {
		if i == 0 {
			row = make([]float64, nw)
			values = append(values, row)
		}
		eta0 := s.sol.Eta0[i]
		var ratio complex128
		if cmplx.IsInf(eta0) {
			ratio = 2 * e / s.sol.B[i]
		} else {
			ratio = 2 * eta0 * e / (eta0*s.sol.B[i] + s.sol.C[i])
		}
		row[i] = sqAbs(ratio)
	})
	return Profile[float64]{Depth: depth, Values: values}
}

// AdmittanceLocus returns the admittance Y = H/E seen at every depth.
func (s *Sensitivity) AdmittanceLocus(step float64) Profile[complex128] {
	var values [][]complex128
	var row []complex128
	nw := len(s.sol.M)
	depth := s.sample(step, func(i int, e, h complex128) {
		if i == 0 {
			row = make([]complex128, nw)
			values = append(values, row)
		}
		row[i] = h / e
	})
	return Profile[complex128]{Depth: depth, Values: values}
}

// CircleLocus returns the amplitude reflection (η₀ − Y)/(η₀ + Y) the stack
// below each depth would show against the incidence medium.
func (s *Sensitivity) CircleLocus(step float64) Profile[complex128] {
	loc := s.AdmittanceLocus(step)
	for _, row := range loc.Values {
		for i, y := range row {
			eta0 := s.sol.Eta0[i]
			if cmplx.IsInf(eta0) {
				row[i] = 1
				continue
			}
			row[i] = (eta0 - y) / (eta0 + y)
		}
	}
	return loc
}
