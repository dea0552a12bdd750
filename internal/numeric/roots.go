package numeric

import (
	"math"
	"sort"
)

// LinearRoots returns the root of a·x + b = 0, or none when a is zero.
func LinearRoots(a, b float64) []float64 {
	if a == 0 {
		return nil
	}
	return []float64{-b / a}
}

// QuadraticRoots returns the distinct real roots of a·x² + b·x + c = 0 in
// increasing order. A zero leading coefficient falls back to LinearRoots.
// The larger-magnitude root is formed without cancellation and the other
// one from the product of the roots.
func QuadraticRoots(a, b, c float64) []float64 {
	if a == 0 {
		return LinearRoots(b, c)
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	if disc == 0 {
		return []float64{-b / (2 * a)}
	}
	q := -0.5 * (b + math.Copysign(math.Sqrt(disc), b))
	if q == 0 {
		return []float64{0}
	}
	r1, r2 := q/a, c/q
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	return []float64{r1, r2}
}

// CubicRoots returns the distinct real roots of a·x³ + b·x² + c·x + d = 0 in
// increasing order. A zero leading coefficient falls back to QuadraticRoots.
// Double and triple roots are reported once.
func CubicRoots(a, b, c, d float64) []float64 {
	if a == 0 {
		return QuadraticRoots(b, c, d)
	}
	A, B, C := b/a, c/a, d/a
	Q := (A*A - 3*B) / 9
	R := (2*A*A*A - 9*A*B + 27*C) / 54
	Q3 := Q * Q * Q
	R2 := R * R
	shift := A / 3

	var roots []float64
	if Q3-R2 > 1e-14*math.Max(math.Abs(Q3), R2) {
		sq := math.Sqrt(Q)
		arg := math.Max(-1, math.Min(1, R/math.Sqrt(Q3)))
		theta := math.Acos(arg)
		roots = []float64{
			-2*sq*math.Cos(theta/3) - shift,
			-2*sq*math.Cos((theta+2*math.Pi)/3) - shift,
			-2*sq*math.Cos((theta-2*math.Pi)/3) - shift,
		}
	} else {
		s := math.Sqrt(math.Max(0, R2-Q3))
		u := -math.Copysign(math.Cbrt(math.Abs(R)+s), R)
		v := 0.0
		if u != 0 {
			v = Q / u
		}
		r := polishCubic(u+v-shift, A, B, C)
		roots = append([]float64{r}, deflatedRoots(r, A, B)...)
	}

	for i, r := range roots {
		roots[i] = polishCubic(r, A, B, C)
	}
	sort.Float64s(roots)

	out := roots[:1]
	for _, r := range roots[1:] {
		last := out[len(out)-1]
		if math.Abs(r-last) > 1e-9*math.Max(1, math.Abs(r)) {
			out = append(out, r)
		}
	}
	return out
}

// deflatedRoots returns the roots of the quadratic left after dividing
// x³ + A x² + B x + C by (x - r). A discriminant that is negative only by
// rounding is read as a double root.
func deflatedRoots(r, A, B float64) []float64 {
	p := A + r
	q := B + r*p
	disc := p*p - 4*q
	if disc < 0 && -disc <= 1e-10*math.Max(1, p*p) {
		return []float64{-p / 2}
	}
	return QuadraticRoots(1, p, q)
}

// polishCubic applies Newton steps to x³ + A x² + B x + C = 0 while they improve the residual.
func polishCubic(x, A, B, C float64) float64 {
	f := func(t float64) float64 { return ((t+A)*t+B)*t + C }
	for i := 0; i < 3; i++ {
		fx := f(x)
		df := (3*x+2*A)*x + B
		if df == 0 || fx == 0 {
			break
		}
		next := x - fx/df
		if math.Abs(f(next)) >= math.Abs(fx) {
			break
		}
		x = next
	}
	return x
}
