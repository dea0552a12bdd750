package numeric

import "fmt"

// Newton is an interpolating polynomial of degree 1 to 3 in Newton form,
//
//	p(t) = c0 + c1(t-x0) + c2(t-x0)(t-x1) + c3(t-x0)(t-x1)(t-x2).
type Newton struct {
	x []float64
	c []float64
}

// NewNewton builds the polynomial through 2, 3 or 4 points with distinct abscissae.
func NewNewton(x, y []float64) (*Newton, error) {
	n := len(x)
	if n != len(y) {
		panic("numeric: Newton abscissae and ordinates differ in length")
	}
	if n < 2 || n > 4 {
		return nil, fmt.Errorf("newton polynomial through %d points: %w", n, ErrTooFewPoints)
	}
	c := append([]float64(nil), y...)
	for level := 1; level < n; level++ {
		for i := n - 1; i >= level; i-- {
			dx := x[i] - x[i-level]
			if dx == 0 {
				return nil, singular("NewNewton", 0)
			}
			c[i] = (c[i] - c[i-1]) / dx
		}
	}
	return &Newton{x: append([]float64(nil), x...), c: c}, nil
}

// NewtonLinear is the line through (x0,y0), (x1,y1).
func NewtonLinear(x0, y0, x1, y1 float64) (*Newton, error) {
	return NewNewton([]float64{x0, x1}, []float64{y0, y1})
}

// NewtonQuadratic is the parabola through three points.
func NewtonQuadratic(x, y [3]float64) (*Newton, error) {
	return NewNewton(x[:], y[:])
}

// NewtonCubic is the cubic through four points.
func NewtonCubic(x, y [4]float64) (*Newton, error) {
	return NewNewton(x[:], y[:])
}

// Degree of the polynomial.
func (p *Newton) Degree() int { return len(p.c) - 1 }

// Coefficients returns the divided differences c0..cn.
func (p *Newton) Coefficients() []float64 { return append([]float64(nil), p.c...) }

// evaluate returns p(t), p'(t) and p''(t) by nested multiplication.
func (p *Newton) evaluate(t float64) (v, d1, d2 float64) {
	n := len(p.c) - 1
	v = p.c[n]
	for k := n - 1; k >= 0; k-- {
		dt := t - p.x[k]
		d2 = d2*dt + 2*d1
		d1 = d1*dt + v
		v = v*dt + p.c[k]
	}
	return v, d1, d2
}

// Eval returns p(t).
func (p *Newton) Eval(t float64) float64 {
	v, _, _ := p.evaluate(t)
	return v
}

// Derivative returns p'(t).
func (p *Newton) Derivative(t float64) float64 {
	_, d1, _ := p.evaluate(t)
	return d1
}

// SecondDerivative returns p''(t).
func (p *Newton) SecondDerivative(t float64) float64 {
	_, _, d2 := p.evaluate(t)
	return d2
}

// Roots returns the real roots of the polynomial in increasing order.
func (p *Newton) Roots() []float64 {
	a := p.Power()
	switch len(a) {
	case 2:
		return LinearRoots(a[1], a[0])
	case 3:
		return QuadraticRoots(a[2], a[1], a[0])
	default:
		return CubicRoots(a[3], a[2], a[1], a[0])
	}
}

// Power returns the coefficients a0..an of the power basis a0 + a1 t + ...
func (p *Newton) Power() []float64 {
	n := len(p.c) - 1
	a := make([]float64, n+1)
	a[0] = p.c[n]
	deg := 0
	for k := n - 1; k >= 0; k-- {
		// a <- a*(t - x_k) + c_k
		deg++
		for i := deg; i >= 1; i-- {
			a[i] = a[i-1] - p.x[k]*a[i]
		}
		a[0] = -p.x[k]*a[0] + p.c[k]
	}
	return a
}
