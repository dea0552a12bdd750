package abeles

import (
	"errors"
	"math"

	"github.com/cwbudde/thinfilm/internal/grid"
	"github.com/cwbudde/thinfilm/internal/numeric"
)

// ErrTooFewWavelengths is returned when group delay is requested on fewer
// than three wavelengths.
var ErrTooFewWavelengths = errors.New("abeles: group delay needs at least three wavelengths")

// window returns the first index of the three-point window used at i.
func window(i, n int) int {
	return max(0, min(i-1, n-3))
}

// unwrapWindow shifts the outer points of a window by multiples of 2π so
// that they lie within π of the centre point.
func unwrapWindow(y [3]float64) [3]float64 {
	for _, k := range []int{0, 2} {
		for y[k]-y[1] > math.Pi {
			y[k] -= 2 * math.Pi
		}
		for y[k]-y[1] < -math.Pi {
			y[k] += 2 * math.Pi
		}
	}
	return y
}

// phaseStencil fits quadratics in angular frequency over three-point
// windows and returns −p'(ω_i) (order 1) or −p''(ω_i) (order 2).
func phaseStencil(w *grid.Wavelengths, y []float64, order int, unwrap bool) ([]float64, error) {
	n := w.Len()
	if n < 3 {
		return nil, ErrTooFewWavelengths
	}
	omega := w.Omega()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		a := window(i, n)
		x := [3]float64{omega[a], omega[a+1], omega[a+2]}
		v := [3]float64{y[a], y[a+1], y[a+2]}
		if unwrap {
			v = unwrapWindow(v)
		}
		p, err := numeric.NewtonQuadratic(x, v)
		if err != nil {
			return nil, err
		}
		if order == 1 {
			out[i] = -p.Derivative(omega[i])
		} else {
			out[i] = -p.SecondDerivative(omega[i])
		}
	}
	return out, nil
}

// GroupDelay returns GD = −dφ/dω in fs from a phase spectrum.
func GroupDelay(w *grid.Wavelengths, phase []float64) ([]float64, error) {
	return phaseStencil(w, phase, 1, true)
}

// GDD returns −d²φ/dω² in fs² from a phase spectrum.
func GDD(w *grid.Wavelengths, phase []float64) ([]float64, error) {
	return phaseStencil(w, phase, 2, true)
}

// DGroupDelay applies the GroupDelay stencil to a phase derivative.
func DGroupDelay(w *grid.Wavelengths, dphase []float64) ([]float64, error) {
	return phaseStencil(w, dphase, 1, false)
}

// DGDD applies the GDD stencil to a phase derivative.
func DGDD(w *grid.Wavelengths, dphase []float64) ([]float64, error) {
	return phaseStencil(w, dphase, 2, false)
}
