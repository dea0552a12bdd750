package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewtonReproducesPolynomials(t *testing.T) {
	f := func(x float64) float64 { return 2*x*x*x - x*x + 3*x - 5 }
	df := func(x float64) float64 { return 6*x*x - 2*x + 3 }
	d2f := func(x float64) float64 { return 12*x - 2 }

	x := [4]float64{-1, 0.5, 2, 3}
	var y [4]float64
	for i := range x {
		y[i] = f(x[i])
	}
	p, err := NewtonCubic(x, y)
	require.NoError(t, err)
	require.Equal(t, 3, p.Degree())

	for _, tt := range []float64{-2, 0, 1.3, 4} {
		require.InDelta(t, f(tt), p.Eval(tt), 1e-10)
		require.InDelta(t, df(tt), p.Derivative(tt), 1e-10)
		require.InDelta(t, d2f(tt), p.SecondDerivative(tt), 1e-10)
	}

	pw := p.Power()
	require.InDeltaSlice(t, []float64{-5, 3, -1, 2}, pw, 1e-10)
}

func TestNewtonQuadraticDerivativeAtCenter(t *testing.T) {
	p, err := NewtonQuadratic([3]float64{1, 2, 4}, [3]float64{1, 4, 16})
	require.NoError(t, err)
	require.InDelta(t, 4.0, p.Derivative(2), 1e-12)
	require.InDelta(t, 2.0, p.SecondDerivative(0), 1e-12)
	require.InDeltaSlice(t, []float64{0}, p.Roots(), 1e-6)
}

func TestNewtonRejectsDuplicateAbscissae(t *testing.T) {
	_, err := NewtonLinear(1, 2, 1, 3)
	require.ErrorIs(t, err, ErrSingular)

	_, err = NewNewton([]float64{1}, []float64{1})
	require.ErrorIs(t, err, ErrTooFewPoints)
}

func TestQuadraticRootsStable(t *testing.T) {
	// roots 1e8 and 1e-8: the naive formula loses the small one
	r := QuadraticRoots(1, -(1e8 + 1e-8), 1)
	require.Len(t, r, 2)
	require.InEpsilon(t, 1e-8, r[0], 1e-12)
	require.InEpsilon(t, 1e8, r[1], 1e-12)

	require.Empty(t, QuadraticRoots(1, 0, 1))
	require.Equal(t, []float64{-1}, QuadraticRoots(1, 2, 1))
	require.Equal(t, []float64{2}, QuadraticRoots(0, 3, -6))
	require.Empty(t, QuadraticRoots(0, 0, 1))
}

func TestCubicRoots(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d float64
		want       []float64
	}{
		{"three distinct", 1, -6, 11, -6, []float64{1, 2, 3}},
		{"one real", 1, 0, 1, -2, []float64{1}},
		{"double root", 1, -4, 5, -2, []float64{1, 2}},
		{"triple root", 1, -3, 3, -1, []float64{1}},
		{"falls back to quadratic", 0, 1, -3, 2, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CubicRoots(tt.a, tt.b, tt.c, tt.d)
			for _, w := range tt.want {
				found := false
				for _, g := range got {
					if math.Abs(g-w) < 1e-6 {
						found = true
					}
				}
				require.True(t, found, "root %g missing from %v", w, got)
			}
			for _, g := range got {
				v := ((tt.a*g+tt.b)*g+tt.c)*g + tt.d
				require.InDelta(t, 0.0, v, 1e-9)
			}
		})
	}
}
