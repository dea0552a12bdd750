// Package abeles computes the optical response of coherent multilayer
// stacks with 2×2 characteristic matrices, together with the analytic
// derivatives used by the optimisers.
//
// Indices follow the N = n − ik convention. Every quantity is evaluated per
// wavelength and per polarization; nothing is cached between calls.
package abeles

// Matrix is a 2×2 complex matrix stored row major: m11, m12, m21, m22.
type Matrix [4]complex128

// Identity is the unit matrix.
var Identity = Matrix{1, 0, 0, 1}

// Mul returns a·b.
func (a Matrix) Mul(b Matrix) Matrix {
	return Matrix{
		a[0]*b[0] + a[1]*b[2],
		a[0]*b[1] + a[1]*b[3],
		a[2]*b[0] + a[3]*b[2],
		a[2]*b[1] + a[3]*b[3],
	}
}

// Add returns a+b.
func (a Matrix) Add(b Matrix) Matrix {
	return Matrix{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

// Scale returns s·a.
func (a Matrix) Scale(s complex128) Matrix {
	return Matrix{s * a[0], s * a[1], s * a[2], s * a[3]}
}

// Apply returns a·(e, h).
func (a Matrix) Apply(e, h complex128) (complex128, complex128) {
	return a[0]*e + a[1]*h, a[2]*e + a[3]*h
}

// Reversed returns the product of the same layer matrices taken in the
// opposite order. Layer matrices have equal diagonal elements, which makes
// the reversed product the matrix with its diagonal exchanged.
func (a Matrix) Reversed() Matrix {
	return Matrix{a[3], a[1], a[2], a[0]}
}
