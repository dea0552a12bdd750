package numeric

import (
	"fmt"
	"math"
	"sort"
)

// PCHIP is a piecewise cubic Hermite interpolant with Fritsch-Carlson
// slopes. It preserves the monotonicity of the data and extends the end
// cubics outside the tabulated range.
type PCHIP struct {
	x, y, d []float64
}

// NewPCHIP builds the interpolant through (x[i], y[i]); x must be strictly
// increasing and hold at least two points. The slices are copied.
func NewPCHIP(x, y []float64) (*PCHIP, error) {
	n := len(x)
	if n != len(y) {
		panic("numeric: PCHIP abscissae and ordinates differ in length")
	}
	if n < 2 {
		return nil, fmt.Errorf("pchip through %d points: %w", n, ErrTooFewPoints)
	}
	for i := 1; i < n; i++ {
		if !(x[i] > x[i-1]) {
			return nil, fmt.Errorf("pchip abscissa %d (%g): %w", i, x[i], ErrNotMonotonic)
		}
	}
	p := &PCHIP{
		x: append([]float64(nil), x...),
		y: append([]float64(nil), y...),
		d: make([]float64, n),
	}
	p.slopes()
	return p, nil
}

func (p *PCHIP) slopes() {
	n := len(p.x)
	h := make([]float64, n-1)
	del := make([]float64, n-1)
	for k := 0; k < n-1; k++ {
		h[k] = p.x[k+1] - p.x[k]
		del[k] = (p.y[k+1] - p.y[k]) / h[k]
	}
	if n == 2 {
		p.d[0], p.d[1] = del[0], del[0]
		return
	}
	for k := 1; k < n-1; k++ {
		if del[k-1]*del[k] <= 0 {
			p.d[k] = 0
			continue
		}
		w1 := 2*h[k] + h[k-1]
		w2 := h[k] + 2*h[k-1]
		p.d[k] = (w1 + w2) / (w1/del[k-1] + w2/del[k])
	}
	p.d[0] = endSlope(h[0], h[1], del[0], del[1])
	p.d[n-1] = endSlope(h[n-2], h[n-3], del[n-2], del[n-3])
}

// endSlope is the shape-preserving three-point end condition.
func endSlope(h0, h1, del0, del1 float64) float64 {
	d := ((2*h0+h1)*del0 - h0*del1) / (h0 + h1)
	switch {
	case math.Signbit(d) != math.Signbit(del0) || del0 == 0:
		return 0
	case math.Signbit(del0) != math.Signbit(del1) && math.Abs(d) > math.Abs(3*del0):
		return 3 * del0
	}
	return d
}

// segment returns the interval index used for t, clamped to the end
// intervals for extrapolation.
func (p *PCHIP) segment(t float64) int {
	n := len(p.x)
	k := sort.SearchFloat64s(p.x, t) - 1
	if k < 0 {
		k = 0
	}
	if k > n-2 {
		k = n - 2
	}
	return k
}

// coefficients returns y = a + b s + c s² + e s³ with s = t - x[k].
func (p *PCHIP) coefficients(k int) (a, b, c, e float64) {
	h := p.x[k+1] - p.x[k]
	del := (p.y[k+1] - p.y[k]) / h
	a = p.y[k]
	b = p.d[k]
	c = (3*del - 2*p.d[k] - p.d[k+1]) / h
	e = (p.d[k] + p.d[k+1] - 2*del) / (h * h)
	return a, b, c, e
}

// Eval returns the interpolated value at t.
func (p *PCHIP) Eval(t float64) float64 {
	k := p.segment(t)
	a, b, c, e := p.coefficients(k)
	s := t - p.x[k]
	return a + s*(b+s*(c+s*e))
}

// Derivative returns the slope of the interpolant at t.
func (p *PCHIP) Derivative(t float64) float64 {
	k := p.segment(t)
	_, b, c, e := p.coefficients(k)
	s := t - p.x[k]
	return b + s*(2*c+3*s*e)
}

// EvalAll evaluates the interpolant at every ts[i].
func (p *PCHIP) EvalAll(ts []float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = p.Eval(t)
	}
	return out
}

// Domain returns the first and last abscissa.
func (p *PCHIP) Domain() (float64, float64) { return p.x[0], p.x[len(p.x)-1] }

// Invert returns t with Eval(t) = v for strictly increasing data, v inside
// [y[0], y[n-1]]. The segment cubic is solved with CubicRoots and polished
// with Newton steps.
func (p *PCHIP) Invert(v float64) (float64, error) {
	n := len(p.y)
	for i := 1; i < n; i++ {
		if !(p.y[i] > p.y[i-1]) {
			return 0, fmt.Errorf("pchip inversion: %w", ErrNotMonotonic)
		}
	}
	if v < p.y[0] || v > p.y[n-1] {
		return 0, fmt.Errorf("pchip inversion of %g outside [%g, %g]: %w", v, p.y[0], p.y[n-1], ErrOutOfRange)
	}
	k := sort.SearchFloat64s(p.y, v) - 1
	if k < 0 {
		k = 0
	}
	if k > n-2 {
		k = n - 2
	}

	a, b, c, e := p.coefficients(k)
	h := p.x[k+1] - p.x[k]
	s := -1.0
	for _, r := range CubicRoots(e, c, b, a-v) {
		if r >= -1e-9*h && r <= h*(1+1e-9) {
			s = r
			break
		}
	}
	if s < 0 {
		// Fall back to the linear estimate inside the segment.
		s = h * (v - p.y[k]) / (p.y[k+1] - p.y[k])
	}
	s = math.Max(0, math.Min(h, s))

	for i := 0; i < 4; i++ {
		f := a + s*(b+s*(c+s*e)) - v
		df := b + s*(2*c+3*s*e)
		if f == 0 || df == 0 {
			break
		}
		next := s - f/df
		if next < 0 || next > h {
			break
		}
		s = next
	}
	return p.x[k] + s, nil
}
